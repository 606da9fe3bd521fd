package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/your-org/greeter/internal/models"
	"github.com/your-org/greeter/pkg/dto"
)

// Broadcaster pushes a named event to all connected real-time clients.
type Broadcaster interface {
	Broadcast(event string, data any)
}

// WSSink delivers events to the WebSocket hub. Broadcast is at-most-once
// with no acknowledgment; clients that are offline miss the event.
type WSSink struct {
	hub Broadcaster
}

func NewWSSink(hub Broadcaster) *WSSink {
	return &WSSink{hub: hub}
}

func (s *WSSink) Name() string { return "websocket" }

func (s *WSSink) Deliver(_ context.Context, ev Event) error {
	switch ev.Type {
	case EventNewGreeting:
		if ev.Greeting == nil {
			return nil
		}
		s.hub.Broadcast(ev.Type, dto.GreetingResponse{
			ID:        ev.Greeting.ID,
			Name:      ev.Greeting.Name,
			Greeting:  ev.Greeting.Greeting,
			Timestamp: timestamp(ev.Greeting.Timestamp),
		})
	case EventVisitorDetected:
		if ev.Visitor == nil {
			return nil
		}
		s.hub.Broadcast(ev.Type, dto.VisitorDetectedPayload{
			RobotID:     ev.RobotID,
			Visitor:     visitorResponse(ev.Visitor),
			IsReturning: ev.IsReturning,
		})
	case EventVisitorIdentified:
		s.hub.Broadcast(ev.Type, dto.VisitorIdentifiedPayload{ID: ev.VisitorID, Name: ev.Name})
	case EventRobotStatus:
		s.hub.Broadcast(ev.Type, dto.RobotStatusPayload{RobotID: ev.RobotID, Status: ev.Raw})
	case EventHardwareDetection:
		s.hub.Broadcast(ev.Type, dto.HardwareDetectionPayload{RobotID: ev.RobotID, Detection: ev.Raw})
	}
	return nil
}

// DevicePublisher publishes a payload to a device-scoped bus subject,
// fire-and-forget.
type DevicePublisher interface {
	PublishGreeting(deviceID string, payload any) error
}

// BusSink publishes per-device greeting commands for resolved visitors.
// Other event types are not device-addressed and are ignored.
type BusSink struct {
	publisher DevicePublisher
}

func NewBusSink(publisher DevicePublisher) *BusSink {
	return &BusSink{publisher: publisher}
}

func (s *BusSink) Name() string { return "device-bus" }

func (s *BusSink) Deliver(_ context.Context, ev Event) error {
	if ev.Type != EventVisitorDetected || ev.Visitor == nil {
		return nil
	}

	var payload any
	if ev.IsReturning {
		payload = dto.ReturningVisitorGreeting{
			Type:       "returning_visitor",
			Name:       ev.Visitor.Name,
			VisitCount: ev.Visitor.VisitCount,
			LastSeen:   timestamp(ev.Visitor.LastSeen),
		}
	} else {
		payload = dto.NewVisitorGreeting{
			Type:      "new_visitor",
			VisitorID: ev.Visitor.ID,
			Timestamp: timestamp(time.Now()),
		}
	}

	if err := s.publisher.PublishGreeting(ev.RobotID, payload); err != nil {
		return fmt.Errorf("publish device greeting: %w", err)
	}
	return nil
}

func visitorResponse(v *models.Visitor) dto.VisitorResponse {
	return dto.VisitorResponse{
		ID:         v.ID,
		Name:       v.Name,
		LastSeen:   timestamp(v.LastSeen),
		VisitCount: v.VisitCount,
	}
}
