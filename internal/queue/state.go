package queue

// State is the lifecycle state of a Queue.
type State int

const (
	// StateUninitialized means Initialize has not completed yet.
	StateUninitialized State = iota

	// StateReady means the queue is serving and no prefetch or refresh is running.
	StateReady

	// StateRefreshing means a prefetch or refresh is in flight.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// State reports the current lifecycle state.
func (q *Queue) State() State {
	q.mu.Lock()
	ready, rebuilding := q.ready, q.rebuilding
	q.mu.Unlock()

	switch {
	case rebuilding || q.refreshing.Load():
		return StateRefreshing
	case !ready:
		return StateUninitialized
	default:
		return StateReady
	}
}
