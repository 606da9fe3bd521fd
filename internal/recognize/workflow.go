package recognize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/your-org/greeter/internal/models"
	"github.com/your-org/greeter/internal/observability"
)

// MaxImageSize is the upload size limit in bytes.
const MaxImageSize = 10 << 20 // 10 MiB

var (
	// ErrImageTooLarge rejects uploads over MaxImageSize.
	ErrImageTooLarge = errors.New("image exceeds maximum size")
	// ErrNotImage rejects uploads whose MIME type is not image/*.
	ErrNotImage = errors.New("only image files are allowed")
	// ErrNoFace terminates a run when the detector finds no face.
	ErrNoFace = errors.New("no face detected in image")
)

// VisitorStore is the identity-store surface the workflow needs.
type VisitorStore interface {
	CreateVisitor(ctx context.Context, imageKey string, descriptor []float32) (*models.Visitor, error)
	RecordSighting(ctx context.Context, id int64, imageKey string) (*models.Visitor, error)
}

// ImageStore holds uploaded visitor images.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Notifier receives the outcome of a resolved run. Delivery is best-effort
// and must never fail the workflow.
type Notifier interface {
	VisitorResolved(ctx context.Context, robotID string, v *models.Visitor, isReturning bool, confidence float32)
}

// Outcome is the terminal state of a successful reconciliation run.
type Outcome struct {
	Visitor     *models.Visitor
	IsReturning bool
	Confidence  float32
}

// Workflow reconciles an uploaded image against known visitor identities:
// validate, store the image, detect a face, match against the remote
// reference set, then update or create the visitor record and notify.
//
// Each step runs exactly once; there are no retries. Two concurrent uploads
// of the same physical person can both take the new-visitor branch and
// create duplicate records; there is no fingerprint-level serialization.
type Workflow struct {
	detector Detector
	matcher  Matcher
	visitors VisitorStore
	images   ImageStore
	notifier Notifier
	keyFn    func(filename string) string
}

func NewWorkflow(detector Detector, matcher Matcher, visitors VisitorStore, images ImageStore, notifier Notifier, keyFn func(string) string) *Workflow {
	return &Workflow{
		detector: detector,
		matcher:  matcher,
		visitors: visitors,
		images:   images,
		notifier: notifier,
		keyFn:    keyFn,
	}
}

// Process runs one reconciliation for an uploaded image. Validation failures
// are reported before any store or network access. The stored image object
// is released on every path that does not end in a resolved visitor.
func (w *Workflow) Process(ctx context.Context, robotID, filename, contentType string, data []byte) (*Outcome, error) {
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotImage
	}

	key := w.keyFn(filename)
	if err := w.images.Put(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	resolved := false
	defer func() {
		if !resolved {
			if err := w.images.Delete(ctx, key); err != nil {
				slog.Warn("release uploaded image", "key", key, "error", err)
			}
		}
	}()

	det, err := w.detector.Detect(data)
	if err != nil {
		return nil, fmt.Errorf("detect face: %w", err)
	}
	if !det.Detected {
		return nil, ErrNoFace
	}

	match := w.matcher.Match(ctx, det.Descriptor)

	var visitor *models.Visitor
	if match.Match {
		visitor, err = w.visitors.RecordSighting(ctx, match.VisitorID, key)
		if err != nil {
			return nil, fmt.Errorf("record sighting: %w", err)
		}
		observability.VisitorsResolved.WithLabelValues("returning").Inc()
	} else {
		visitor, err = w.visitors.CreateVisitor(ctx, key, det.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("create visitor: %w", err)
		}
		observability.VisitorsResolved.WithLabelValues("new").Inc()
	}
	resolved = true

	w.notifier.VisitorResolved(ctx, robotID, visitor, match.Match, match.Confidence)

	return &Outcome{
		Visitor:     visitor,
		IsReturning: match.Match,
		Confidence:  match.Confidence,
	}, nil
}
