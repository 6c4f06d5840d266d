package api

import (
	"time"

	"folio/internal/scheduler"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Time     time.Time         `json:"time"`
	Services map[string]string `json:"services"`
	Tasks    []scheduler.Task  `json:"tasks,omitempty"`
}

// MessageResponse carries a plain confirmation
type MessageResponse struct {
	Message string `json:"message"`
}
