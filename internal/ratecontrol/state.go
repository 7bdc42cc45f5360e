package ratecontrol

// State is the lifecycle state of a controller.
type State int32

const (
	// StateRunning means the controller is accepting and delivering arguments.
	StateRunning State = iota
	// StateRestarting means the controller is waiting out a failure backoff.
	StateRestarting
	// StateFailed means the wrapped function failed and delivery ended.
	StateFailed
	// StateStopped means the scheduler stopped the controller.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
