package health

import (
	"context"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeExec    CheckType = "exec"
	CheckTypeQuorate CheckType = "quorate"
	CheckTypeUnits   CheckType = "units"
)

// Result represents the outcome of a health check
type Result struct {
	Name    string
	Healthy bool
	Message string
	// Output is the command's stdout, shown to the operator verbatim
	Output    string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Name identifies the check in reports
	Name() string

	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}
