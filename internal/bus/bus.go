// Package bus connects the service to the robot fleet's NATS message bus.
// Publishing is fire-and-forget with no delivery confirmation; inbound
// messages with unparseable JSON are logged and dropped.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/your-org/greeter/internal/observability"
)

const (
	statusSubject    = "device.*.status"
	detectionSubject = "device.*.visitor_detected"
)

// DeviceMessageHandler receives a validated JSON payload from a device.
type DeviceMessageHandler func(deviceID string, payload json.RawMessage)

type Client struct {
	nc *nats.Conn
}

func Connect(natsURL string) (*Client, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Client{nc: nc}, nil
}

// PublishGreeting publishes a greeting command to the device's subject,
// fire-and-forget.
func (c *Client) PublishGreeting(deviceID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal greeting payload: %w", err)
	}

	if err := c.nc.Publish(greetingSubject(deviceID), data); err != nil {
		return fmt.Errorf("publish greeting: %w", err)
	}
	observability.BusMessages.WithLabelValues("greeting_published").Inc()
	return nil
}

// SubscribeStatus subscribes to device status updates.
func (c *Client) SubscribeStatus(handler DeviceMessageHandler) error {
	return c.subscribe(statusSubject, "status", handler)
}

// SubscribeVisitorDetections subscribes to hardware visitor detections.
func (c *Client) SubscribeVisitorDetections(handler DeviceMessageHandler) error {
	return c.subscribe(detectionSubject, "visitor_detected", handler)
}

func (c *Client) subscribe(subject, kind string, handler DeviceMessageHandler) error {
	_, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		deviceID := deviceIDFromSubject(msg.Subject)

		if !json.Valid(msg.Data) {
			slog.Warn("dropping malformed bus message", "subject", msg.Subject)
			observability.BusMessages.WithLabelValues("malformed").Inc()
			return
		}

		observability.BusMessages.WithLabelValues(kind).Inc()
		handler(deviceID, json.RawMessage(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	slog.Info("subscribed to device bus", "subject", subject)
	return nil
}

func (c *Client) Ping() error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (c *Client) Close() {
	c.nc.Close()
}

// greetingSubject builds the per-device greeting subject.
func greetingSubject(deviceID string) string {
	return fmt.Sprintf("device.%s.greeting", deviceID)
}

// deviceIDFromSubject extracts the device identifier from subjects of the
// form device.<id>.<kind>.
func deviceIDFromSubject(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) < 3 {
		return "unknown"
	}
	return parts[1]
}
