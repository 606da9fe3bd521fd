package greet

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/your-org/greeter/internal/models"
	"github.com/your-org/greeter/internal/observability"
)

// ErrNameRequired is returned when the submitted name is empty after trimming.
var ErrNameRequired = errors.New("name is required")

// MaxNameLen is the greeting-name limit; visitor names use MaxVisitorNameLen.
const (
	MaxNameLen        = 50
	MaxVisitorNameLen = 100
)

var templates = []string{
	"Hello {name}! I'm your friendly robot assistant.",
	"Greetings {name}! How can I help you today?",
	"Welcome {name}! Ready to explore together?",
	"Hi there {name}! Your robot companion is online and ready.",
	"Salutations {name}! Let's make today awesome together!",
}

// Sanitize trims whitespace, strips the characters <>&"' and truncates the
// result to maxLen runes. Sanitizing an already-sanitized name is a no-op.
func Sanitize(name string, maxLen int) string {
	s := strings.TrimSpace(name)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '&', '"', '\'':
			return -1
		}
		return r
	}, s)
	runes := []rune(s)
	if len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	return s
}

// Store is the persistence surface the greeting log needs.
type Store interface {
	CreateGreeting(ctx context.Context, name, greeting string, ts time.Time) (*models.Greeting, error)
	ListGreetings(ctx context.Context, limit int) ([]models.Greeting, error)
	CountGreetings(ctx context.Context) (int64, error)
}

// Service is the greeting log: validate, sanitize, fill a random template,
// persist.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Append validates and sanitizes name, renders a random greeting template
// and persists the record. Returns ErrNameRequired for names that are empty
// after trimming. Validation precedes sanitization, so a name made up
// entirely of stripped characters is accepted and stored empty.
func (s *Service) Append(ctx context.Context, name string) (*models.Greeting, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	sanitized := Sanitize(name, MaxNameLen)

	template := templates[rand.Intn(len(templates))]
	greeting := strings.ReplaceAll(template, "{name}", sanitized)

	g, err := s.store.CreateGreeting(ctx, sanitized, greeting, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("append greeting: %w", err)
	}

	observability.GreetingsCreated.Inc()
	return g, nil
}

// Recent returns the newest greetings, most recent first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Greeting, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListGreetings(ctx, limit)
}

// Count returns the total number of greetings ever appended.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.CountGreetings(ctx)
}
