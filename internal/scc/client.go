// Package scc talks to the Single Calculus Chain service. The pipeline only
// depends on the Client interface; the HTTP implementation lives in
// httpclient.go.
package scc

import (
	"context"
	"fmt"
)

// Processing status codes reported by the SCC for each chain stage.
const (
	StatusNotStarted = 0
	StatusInProgress = 1
	StatusOK         = 127
	StatusFailed     = -127
)

// ProcessingResult is the terminal state of a measurement's remote
// processing chain.
type ProcessingResult struct {
	ELPP int
	ELDA int
}

// Succeeded reports whether the preprocessing stage completed.
func (r ProcessingResult) Succeeded() bool {
	return r.ELPP == StatusOK
}

// Client is the contract with the remote processing service.
type Client interface {
	// Login establishes the session. Not needed for convert-only runs.
	Login(ctx context.Context) error

	// Exists reports whether a measurement with the given ID is already
	// known to the service.
	Exists(ctx context.Context, measurementID string) (bool, error)

	// Upload sends a converted file and starts the processing chain.
	Upload(ctx context.Context, filePath, systemID string, replace bool) error

	// Rerun triggers reprocessing of an existing measurement without
	// re-sending any data.
	Rerun(ctx context.Context, measurementID string) error

	// MonitorProcessing blocks until the measurement's processing chain
	// reaches a terminal state, downloading the products on success.
	MonitorProcessing(ctx context.Context, measurementID string) (ProcessingResult, error)

	// ProductVersion returns the processing chain version descriptor for a
	// downloaded measurement.
	ProductVersion(ctx context.Context, measurementID string) (string, error)

	// OutputDir is where downloaded products are stored.
	OutputDir() string
}

// RemoteError wraps a failure of the remote processing chain for one
// measurement. It never aborts the run; the item is recorded as failed.
type RemoteError struct {
	MeasurementID string
	Err           error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote processing of %s failed: %v", e.MeasurementID, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
