package types

import (
	"fmt"
	"time"
)

// ServiceState describes the operating mode of the clustered-filesystem daemon
type ServiceState string

const (
	// ServiceStateNormal means both daemons run under the service manager
	ServiceStateNormal ServiceState = "normal"

	// ServiceStateStopped means the membership and filesystem daemons are down
	ServiceStateStopped ServiceState = "stopped"

	// ServiceStateLocalAuthoritative means the filesystem daemon runs in local
	// mode and accepts writes without membership quorum
	ServiceStateLocalAuthoritative ServiceState = "local-authoritative"
)

// Gauge returns the numeric value exported for the state
func (s ServiceState) Gauge() float64 {
	switch s {
	case ServiceStateStopped:
		return 0
	case ServiceStateLocalAuthoritative:
		return 1
	case ServiceStateNormal:
		return 2
	default:
		return -1
	}
}

// Operation names one of the top-level operations
type Operation string

const (
	OperationApply   Operation = "apply"
	OperationDryRun  Operation = "dry-run"
	OperationRestore Operation = "restore"
	OperationRepair  Operation = "repair"
)

// NodeIdentity is the membership identity written into totem and nodelist.
// It is built once by identity discovery and never mutated afterwards.
type NodeIdentity struct {
	ClusterName string `validate:"required,max=64"`
	NodeName    string `validate:"required,max=255"`
	NodeID      int    `validate:"gte=1"`
	RingAddress string `validate:"required,ipv4"`
}

func (id NodeIdentity) String() string {
	return fmt.Sprintf("%s/%s (nodeid=%d, ring0=%s)", id.ClusterName, id.NodeName, id.NodeID, id.RingAddress)
}

// QuorumSettings is the structured content of the quorum block
type QuorumSettings struct {
	Provider              string
	ExpectedVotes         int
	TwoNode               int
	WaitForAll            int
	AutoTieBreaker        int
	LastManStanding       int
	LastManStandingWindow int
}

// SingleNodeQuorum returns the settings that make one node always quorate
func SingleNodeQuorum() QuorumSettings {
	return QuorumSettings{
		Provider:              "corosync_votequorum",
		ExpectedVotes:         1,
		TwoNode:               1,
		WaitForAll:            0,
		AutoTieBreaker:        0,
		LastManStanding:       1,
		LastManStandingWindow: 0,
	}
}

// Backup describes a snapshot of the cluster configuration file
type Backup struct {
	Path       string
	Source     string
	CapturedAt time.Time
	Size       int64
}
