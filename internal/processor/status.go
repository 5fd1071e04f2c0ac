package processor

import "time"

// State is a step of the processing loop.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateDecoding    State = "decoding"
	StateAggregating State = "aggregating"
	StateScoring     State = "scoring"
	StateCommitting  State = "committing"
	// StateFailed is absorbing: the processor stops until an operator restarts it.
	StateFailed State = "failed"
)

var allStates = []string{
	string(StateIdle), string(StateFetching), string(StateDecoding), string(StateAggregating),
	string(StateScoring), string(StateCommitting), string(StateFailed),
}

// Status is a snapshot of the processor for health and status reporting.
type Status struct {
	State State
	// LastCommitted is only meaningful when HasCheckpoint is set.
	LastCommitted uint64
	HasCheckpoint bool
	Head          uint64
	Lag           uint64
	Deferred      int
	LastError     string
	UpdatedAt     time.Time
}

// Status returns the current status.
func (p *Processor) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status
}

// Healthy reports whether the processor has not failed.
func (p *Processor) Healthy() bool {
	return p.Status().State != StateFailed
}

func (p *Processor) updateStatus(fn func(s *Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&p.status)
	if p.status.HasCheckpoint && p.status.Head > p.status.LastCommitted {
		p.status.Lag = p.status.Head - p.status.LastCommitted
	} else {
		p.status.Lag = 0
	}
	p.status.UpdatedAt = time.Now()
}
