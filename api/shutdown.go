// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by components that own resources needing
// an orderly, blocking teardown.
type GracefulShutdown interface {
	// Shutdown stops the component and releases its resources, returning
	// an error if teardown could not complete cleanly.
	Shutdown() error
}
