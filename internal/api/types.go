package api

import "github.com/satriahrh/transcribe-relay/domain/entities"

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Connections int    `json:"connections"`
}

// ConnectionsResponse represents a page of connection records
type ConnectionsResponse struct {
	Connections []*entities.ConnectionRecord `json:"connections"`
	Count       int                          `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
