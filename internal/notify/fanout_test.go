package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/your-org/greeter/internal/models"
	"github.com/your-org/greeter/pkg/dto"
)

type recordingSink struct {
	name   string
	events []Event
	err    error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, ev Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func TestFanout_NoSinksIsNoop(t *testing.T) {
	f := NewFanout()
	// Must not panic or block.
	f.GreetingCreated(context.Background(), &models.Greeting{ID: 1, Name: "Alice"})
}

func TestFanout_DeliversToAllSinks(t *testing.T) {
	f := NewFanout()
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	f.Register(a)
	f.Register(b)

	f.VisitorIdentified(context.Background(), 3, "Bob")

	for _, s := range []*recordingSink{a, b} {
		if len(s.events) != 1 {
			t.Fatalf("sink %s: expected 1 event, got %d", s.name, len(s.events))
		}
		ev := s.events[0]
		if ev.Type != EventVisitorIdentified || ev.VisitorID != 3 || ev.Name != "Bob" {
			t.Errorf("sink %s: unexpected event %+v", s.name, ev)
		}
	}
}

func TestFanout_FailingSinkDoesNotBlockOthers(t *testing.T) {
	f := NewFanout()
	failing := &recordingSink{name: "failing", err: errors.New("client gone")}
	healthy := &recordingSink{name: "healthy"}
	f.Register(failing)
	f.Register(healthy)

	f.GreetingCreated(context.Background(), &models.Greeting{ID: 1, Name: "Alice", Greeting: "Hello, Alice!"})

	if len(healthy.events) != 1 {
		t.Errorf("expected healthy sink to receive the event, got %d", len(healthy.events))
	}
}

func TestFanout_Unregister(t *testing.T) {
	f := NewFanout()
	s := &recordingSink{name: "s"}
	f.Register(s)
	f.Unregister(s)

	f.VisitorIdentified(context.Background(), 1, "Alice")

	if len(s.events) != 0 {
		t.Errorf("expected no events after unregister, got %d", len(s.events))
	}
}

func TestFanout_VisitorResolvedEvent(t *testing.T) {
	f := NewFanout()
	s := &recordingSink{name: "s"}
	f.Register(s)

	v := &models.Visitor{ID: 9, Name: "Carol", VisitCount: 4, LastSeen: time.Now()}
	f.VisitorResolved(context.Background(), "lobby-bot", v, true, 0.87)

	if len(s.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(s.events))
	}
	ev := s.events[0]
	if ev.Type != EventVisitorDetected {
		t.Errorf("expected %s event, got %s", EventVisitorDetected, ev.Type)
	}
	if ev.RobotID != "lobby-bot" || ev.Visitor != v || !ev.IsReturning || ev.Confidence != 0.87 {
		t.Errorf("unexpected event %+v", ev)
	}
}

type fakeBroadcaster struct {
	events []string
	data   []any
}

func (b *fakeBroadcaster) Broadcast(event string, data any) {
	b.events = append(b.events, event)
	b.data = append(b.data, data)
}

func TestWSSink_NewGreeting(t *testing.T) {
	hub := &fakeBroadcaster{}
	sink := NewWSSink(hub)

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	err := sink.Deliver(context.Background(), Event{
		Type:     EventNewGreeting,
		Greeting: &models.Greeting{ID: 5, Name: "Alice", Greeting: "Hello, Alice!", Timestamp: ts},
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(hub.events) != 1 || hub.events[0] != EventNewGreeting {
		t.Fatalf("expected one newGreeting broadcast, got %v", hub.events)
	}
	payload, ok := hub.data[0].(dto.GreetingResponse)
	if !ok {
		t.Fatalf("unexpected payload type %T", hub.data[0])
	}
	if payload.ID != 5 || payload.Name != "Alice" || payload.Timestamp != "2026-08-30T12:00:00Z" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestWSSink_SkipsGreetingEventWithoutGreeting(t *testing.T) {
	hub := &fakeBroadcaster{}
	if err := NewWSSink(hub).Deliver(context.Background(), Event{Type: EventNewGreeting}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(hub.events) != 0 {
		t.Errorf("expected nothing broadcast, got %v", hub.events)
	}
}

type fakePublisher struct {
	deviceIDs []string
	payloads  []any
	err       error
}

func (p *fakePublisher) PublishGreeting(deviceID string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.deviceIDs = append(p.deviceIDs, deviceID)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestBusSink_ReturningVisitor(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewBusSink(pub)

	seen := time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)
	err := sink.Deliver(context.Background(), Event{
		Type:        EventVisitorDetected,
		RobotID:     "lobby-bot",
		Visitor:     &models.Visitor{ID: 2, Name: "Carol", VisitCount: 4, LastSeen: seen},
		IsReturning: true,
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(pub.deviceIDs) != 1 || pub.deviceIDs[0] != "lobby-bot" {
		t.Fatalf("expected publish to lobby-bot, got %v", pub.deviceIDs)
	}
	payload, ok := pub.payloads[0].(dto.ReturningVisitorGreeting)
	if !ok {
		t.Fatalf("unexpected payload type %T", pub.payloads[0])
	}
	if payload.Type != "returning_visitor" || payload.Name != "Carol" || payload.VisitCount != 4 {
		t.Errorf("unexpected payload %+v", payload)
	}
	if payload.LastSeen != "2026-08-29T09:30:00Z" {
		t.Errorf("unexpected last seen %q", payload.LastSeen)
	}
}

func TestBusSink_NewVisitor(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewBusSink(pub)

	err := sink.Deliver(context.Background(), Event{
		Type:    EventVisitorDetected,
		RobotID: "door-bot",
		Visitor: &models.Visitor{ID: 11, VisitCount: 1},
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	payload, ok := pub.payloads[0].(dto.NewVisitorGreeting)
	if !ok {
		t.Fatalf("unexpected payload type %T", pub.payloads[0])
	}
	if payload.Type != "new_visitor" || payload.VisitorID != 11 {
		t.Errorf("unexpected payload %+v", payload)
	}
	if payload.Timestamp == "" {
		t.Error("expected timestamp set")
	}
}

func TestBusSink_IgnoresNonDetectionEvents(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewBusSink(pub)

	events := []Event{
		{Type: EventNewGreeting, Greeting: &models.Greeting{ID: 1}},
		{Type: EventVisitorIdentified, VisitorID: 1, Name: "Alice"},
		{Type: EventRobotStatus, RobotID: "r1"},
		{Type: EventVisitorDetected}, // no visitor attached
	}
	for _, ev := range events {
		if err := sink.Deliver(context.Background(), ev); err != nil {
			t.Fatalf("Deliver(%s): %v", ev.Type, err)
		}
	}

	if len(pub.payloads) != 0 {
		t.Errorf("expected no publishes, got %d", len(pub.payloads))
	}
}

func TestBusSink_PublishErrorSurfaces(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	sink := NewBusSink(pub)

	err := sink.Deliver(context.Background(), Event{
		Type:    EventVisitorDetected,
		RobotID: "r1",
		Visitor: &models.Visitor{ID: 1},
	})
	if err == nil {
		t.Error("expected error from failed publish")
	}
}
