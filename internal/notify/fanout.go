package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/greeter/internal/models"
)

// Event types delivered to sinks. Names match the wire events the dashboard
// listens for.
const (
	EventNewGreeting       = "newGreeting"
	EventVisitorDetected   = "visitorDetected"
	EventVisitorIdentified = "visitorIdentified"
	EventRobotStatus       = "robotStatusUpdate"
	EventHardwareDetection = "hardwareVisitorDetection"
)

// Event is one notification fanned out to all registered sinks.
type Event struct {
	Type        string
	RobotID     string
	Greeting    *models.Greeting
	Visitor     *models.Visitor
	IsReturning bool
	Confidence  float32
	VisitorID   int64
	Name        string
	Raw         json.RawMessage // passthrough payload from the device bus
}

// Sink is one delivery target. Deliver must not block indefinitely; a
// returned error is logged and never propagated to the event's producer.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Fanout is an explicit observer registry: events are delivered to every
// registered sink, best-effort. Notifying with zero sinks is a no-op.
// Failure of one sink does not block the others.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewFanout() *Fanout {
	return &Fanout{}
}

func (f *Fanout) Register(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

func (f *Fanout) Unregister(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, registered := range f.sinks {
		if registered == s {
			f.sinks = append(f.sinks[:i], f.sinks[i+1:]...)
			return
		}
	}
}

// Notify delivers ev to all registered sinks.
func (f *Fanout) Notify(ctx context.Context, ev Event) {
	f.mu.RLock()
	sinks := make([]Sink, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			slog.Warn("notification delivery failed", "sink", s.Name(), "event", ev.Type, "error", err)
		}
	}
}

// GreetingCreated fans out a newly appended greeting.
func (f *Fanout) GreetingCreated(ctx context.Context, g *models.Greeting) {
	f.Notify(ctx, Event{Type: EventNewGreeting, Greeting: g})
}

// VisitorResolved fans out the outcome of a reconciliation run. Implements
// the workflow's Notifier.
func (f *Fanout) VisitorResolved(ctx context.Context, robotID string, v *models.Visitor, isReturning bool, confidence float32) {
	f.Notify(ctx, Event{
		Type:        EventVisitorDetected,
		RobotID:     robotID,
		Visitor:     v,
		IsReturning: isReturning,
		Confidence:  confidence,
	})
}

// VisitorIdentified fans out a human-assigned visitor name.
func (f *Fanout) VisitorIdentified(ctx context.Context, visitorID int64, name string) {
	f.Notify(ctx, Event{Type: EventVisitorIdentified, VisitorID: visitorID, Name: name})
}

// RobotStatusUpdate relays an inbound device status payload.
func (f *Fanout) RobotStatusUpdate(ctx context.Context, robotID string, payload json.RawMessage) {
	f.Notify(ctx, Event{Type: EventRobotStatus, RobotID: robotID, Raw: payload})
}

// HardwareDetection relays an inbound hardware visitor-detection payload.
func (f *Fanout) HardwareDetection(ctx context.Context, robotID string, payload json.RawMessage) {
	f.Notify(ctx, Event{Type: EventHardwareDetection, RobotID: robotID, Raw: payload})
}

// timestamp formats event times the way the HTTP API does.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
