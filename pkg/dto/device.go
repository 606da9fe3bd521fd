package dto

// Device-bus greeting payloads published to device.{robotId}.greeting.

type ReturningVisitorGreeting struct {
	Type       string `json:"type"` // always "returning_visitor"
	Name       string `json:"name,omitempty"`
	VisitCount int    `json:"visitCount"`
	LastSeen   string `json:"lastSeen"`
}

type NewVisitorGreeting struct {
	Type      string `json:"type"` // always "new_visitor"
	VisitorID int64  `json:"visitorId"`
	Timestamp string `json:"timestamp"`
}
