// Package worker provides background task infrastructure for Phenotrack.
package worker

import "context"

// Worker is a long-running background task.
type Worker interface {
	// Run blocks until ctx is cancelled or an unrecoverable error occurs.
	Run(ctx context.Context) error
	// Name returns the worker identifier for logs.
	Name() string
}
