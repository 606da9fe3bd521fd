package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/greeter/internal/models"
	"github.com/your-org/greeter/internal/notify"
	"github.com/your-org/greeter/internal/recognize"
	"github.com/your-org/greeter/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// greetStore is an in-memory greet.Store.
type greetStore struct {
	mu        sync.Mutex
	greetings []models.Greeting
	failWith  error
}

func (s *greetStore) CreateGreeting(_ context.Context, name, greeting string, ts time.Time) (*models.Greeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	g := models.Greeting{ID: int64(len(s.greetings) + 1), Name: name, Greeting: greeting, Timestamp: ts}
	s.greetings = append(s.greetings, g)
	return &g, nil
}

func (s *greetStore) ListGreetings(_ context.Context, limit int) ([]models.Greeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Greeting, 0, limit)
	for i := len(s.greetings) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.greetings[i])
	}
	return out, nil
}

func (s *greetStore) CountGreetings(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.greetings)), nil
}

// visitorStore implements recognize.VisitorStore and VisitorDirectory.
type visitorStore struct {
	mu       sync.Mutex
	visitors map[int64]*models.Visitor
	nextID   int64
	nameErr  error
}

func newVisitorStore() *visitorStore {
	return &visitorStore{visitors: map[int64]*models.Visitor{}}
}

func (s *visitorStore) CreateVisitor(_ context.Context, imageKey string, descriptor []float32) (*models.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	v := &models.Visitor{ID: s.nextID, ImagePath: imageKey, Descriptor: descriptor, LastSeen: time.Now(), VisitCount: 1}
	s.visitors[v.ID] = v
	return v, nil
}

func (s *visitorStore) RecordSighting(_ context.Context, id int64, imageKey string) (*models.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	v.VisitCount++
	v.LastSeen = time.Now()
	v.ImagePath = imageKey
	return v, nil
}

func (s *visitorStore) GetVisitor(_ context.Context, id int64) (*models.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (s *visitorStore) ListVisitors(_ context.Context, limit int) ([]models.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Visitor, 0, limit)
	for id := s.nextID; id > 0 && len(out) < limit; id-- {
		if v, ok := s.visitors[id]; ok {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *visitorStore) SetVisitorName(_ context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameErr != nil {
		return s.nameErr
	}
	v, ok := s.visitors[id]
	if !ok {
		return storage.ErrNotFound
	}
	v.Name = name
	return nil
}

// imageStore implements recognize.ImageStore.
type imageStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes []string
}

func newImageStore() *imageStore {
	return &imageStore{objects: map[string][]byte{}}
}

func (s *imageStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *imageStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *imageStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deletes = append(s.deletes, key)
	return nil
}

// staticMatcher implements recognize.Matcher with a fixed answer.
type staticMatcher struct {
	result recognize.MatchResult
}

func (m staticMatcher) Match(context.Context, []float32) recognize.MatchResult {
	return m.result
}

// eventSink records fanned-out events.
type eventSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *eventSink) Name() string { return "recording" }

func (s *eventSink) Deliver(_ context.Context, ev notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) all() []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Event(nil), s.events...)
}

// multipartBody builds a multipart form with one file part and optional
// extra text fields.
func multipartBody(t *testing.T, field, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create form part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form part: %v", err)
	}

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write form field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	return body, w.FormDataContentType()
}
