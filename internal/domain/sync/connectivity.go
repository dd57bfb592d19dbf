package sync

import "time"

// ConnectivityState is the tri-state network signal. Checking is the initial
// state and the state a probe returns to on timeout: transient slowness is
// never conflated with being offline.
type ConnectivityState string

const (
	ConnectivityChecking ConnectivityState = "checking"
	ConnectivityOnline   ConnectivityState = "online"
	ConnectivityOffline  ConnectivityState = "offline"
)

// ConnectivitySnapshot is the externally visible connectivity status.
// BackendReachable is nil while indeterminate, which is distinct from false:
// only a confirmed protocol-level failure may set it to false.
type ConnectivitySnapshot struct {
	State            ConnectivityState `json:"state"`
	BackendReachable *bool             `json:"backend_reachable"`
	LastProbeAt      time.Time         `json:"last_probe_at"`
	LastOnlineAt     time.Time         `json:"last_online_at,omitempty"`
}

// Online reports whether the backend is confirmed reachable.
func (s ConnectivitySnapshot) Online() bool {
	return s.State == ConnectivityOnline && s.BackendReachable != nil && *s.BackendReachable
}

// SyncCycleState is the ephemeral orchestration state guarding against
// overlapping background sync runs.
type SyncCycleState struct {
	InProgress bool      `json:"in_progress"`
	LastRunAt  time.Time `json:"last_run_at"`
}
