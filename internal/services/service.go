// Package services defines the lifecycle shared by the background workers
// that run next to the forwarder.
package services

import (
	"context"
)

// ServiceStatus is a point-in-time view of a service, reported by the
// health endpoint.
type ServiceStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	// Error is the most recent failure, cleared by the next success.
	Error string `json:"error,omitempty"`
}

// Service is a background worker started after the listener is up and
// stopped before it closes.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	// Stop must be safe to call more than once.
	Stop(ctx context.Context) error
	Status() ServiceStatus
}
