package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the generic envelope for client messages.
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage is pushed at each pipeline stage boundary.
type WSProgressMessage struct {
	Type    string    `json:"type"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// WSCompleteMessage carries the resulting plan id.
type WSCompleteMessage struct {
	Type   string `json:"type"`
	JobID  string `json:"jobId"`
	PlanID string `json:"planId"`
}

// WSErrorMessage is pushed when the job reaches failed.
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
