package journal

import (
	"time"

	"github.com/cuemby/quorum-rescue/pkg/types"
)

// Record is the audit entry for one apply, restore or repair run
type Record struct {
	ID         string          `json:"id"`
	Operation  types.Operation `json:"operation"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	// Result is success, noop or failure
	Result     string             `json:"result"`
	ErrorKind  string             `json:"error_kind,omitempty"`
	Error      string             `json:"error,omitempty"`
	BackupPath string             `json:"backup_path,omitempty"`
	FinalState types.ServiceState `json:"final_state,omitempty"`
	Target     string             `json:"target,omitempty"`
}

// Duration returns how long the run took
func (r *Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists run records
type Store interface {
	// Append stores r, assigning an ID when it has none
	Append(r *Record) error
	// List returns up to limit records, newest first; limit <= 0 means all
	List(limit int) ([]*Record, error)
	Close() error
}
