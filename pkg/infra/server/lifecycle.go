// Package server provides the server manager that owns the HTTP transport
// and the lifecycle of the resources the service depends on.
package server

import "context"

// Lifecycle defines the lifecycle interface for servers.
type Lifecycle interface {
	// Start starts the server.
	Start(ctx context.Context) error
	// Stop stops the server gracefully.
	Stop(ctx context.Context) error
}

// Runnable represents a component that can be started and stopped.
type Runnable interface {
	Lifecycle
	// Name returns the server name for identification.
	Name() string
}

// CloseFunc releases a resource during shutdown.
type CloseFunc func(ctx context.Context) error
