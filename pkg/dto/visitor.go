package dto

type VisitorResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name,omitempty"`
	LastSeen   string `json:"last_seen"`
	VisitCount int    `json:"visit_count"`
}

type UploadResponse struct {
	Success     bool            `json:"success"`
	Visitor     VisitorResponse `json:"visitor"`
	IsReturning bool            `json:"isReturning"`
	Confidence  float32         `json:"confidence"`
}

type IdentifyRequest struct {
	Name string `json:"name"`
}

type IdentifyResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
}
