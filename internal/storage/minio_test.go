package storage

import (
	"strings"
	"testing"
)

func TestVisitorImageKey(t *testing.T) {
	key := VisitorImageKey("selfie.jpg")

	if !strings.HasPrefix(key, "visitors/") {
		t.Errorf("expected visitors/ prefix, got %q", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("expected original extension preserved, got %q", key)
	}
}

func TestVisitorImageKey_NoExtension(t *testing.T) {
	key := VisitorImageKey("camera-frame")
	if strings.Contains(key, ".") {
		t.Errorf("expected no extension, got %q", key)
	}
}

func TestVisitorImageKey_Unique(t *testing.T) {
	a := VisitorImageKey("selfie.jpg")
	b := VisitorImageKey("selfie.jpg")
	if a == b {
		t.Errorf("expected unique keys for identical filenames, got %q twice", a)
	}
}
