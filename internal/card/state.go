package card

import "sync"

// Status is the lifecycle state of one feature fetch on a card.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Tracker guards a single feature's fetch lifecycle. Each feature on a card
// owns one tracker, so failures stay isolated per feature.
type Tracker struct {
	mu     sync.Mutex
	status Status
}

// Begin moves the tracker to Loading. It returns false when a fetch is
// already in flight, which the caller must treat as "do not start another".
// Success and Error both allow a new fetch.
func (t *Tracker) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusLoading {
		return false
	}
	t.status = StatusLoading
	return true
}

// Succeed marks the in-flight fetch as completed.
func (t *Tracker) Succeed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusSuccess
}

// Fail marks the in-flight fetch as failed. The previously displayed value
// is retained by the card; only the status changes.
func (t *Tracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusError
}

// Current returns the tracker's status.
func (t *Tracker) Current() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
