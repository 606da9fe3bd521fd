package dto

import "encoding/json"

// WSMessage is the envelope for every server→client WebSocket event.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// RobotStatus is sent to each client on connect.
type RobotStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type VisitorDetectedPayload struct {
	RobotID     string          `json:"robotId"`
	Visitor     VisitorResponse `json:"visitor"`
	IsReturning bool            `json:"isReturning"`
}

type VisitorIdentifiedPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RobotStatusPayload struct {
	RobotID string          `json:"robotId"`
	Status  json.RawMessage `json:"status"`
}

type HardwareDetectionPayload struct {
	RobotID   string          `json:"robotId"`
	Detection json.RawMessage `json:"detection"`
}

// IdentifyCommand is the client→server identifyVisitor payload.
type IdentifyCommand struct {
	VisitorID int64  `json:"visitorId"`
	Name      string `json:"name"`
}
