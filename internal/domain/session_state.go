package domain

// SessionState is the lifecycle state of a monitoring session.
type SessionState string

const (
	SessionCreated SessionState = "created"
	SessionRunning SessionState = "running"
	SessionStopped SessionState = "stopped"
)

// CanTransitionSessionState enforces forward-only progression; a stopped
// session never runs again.
func CanTransitionSessionState(current, next SessionState) bool {
	if current == "" || next == "" {
		return false
	}
	return sessionStateOrder(current) < sessionStateOrder(next)
}

func sessionStateOrder(state SessionState) int {
	switch state {
	case SessionCreated:
		return 1
	case SessionRunning:
		return 2
	case SessionStopped:
		return 3
	default:
		return 0
	}
}
