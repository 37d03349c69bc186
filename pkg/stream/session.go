package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/streamfs/pkg/source"
)

// State is the lifecycle state of a streaming session.
type State int

const (
	// StateInit is a freshly created session, range not yet resolved.
	StateInit State = iota

	// StateRangeParsed means the range resolved successfully against the
	// resource and streaming may begin.
	StateRangeParsed

	// StateStreaming means at least one chunk write has started.
	StateStreaming

	// StateCompleted means the full resolved range was delivered.
	StateCompleted

	// StateCancelled means the client disconnected mid-stream.
	StateCancelled

	// StateFailed means range resolution or an I/O operation failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRangeParsed:
		return "range_parsed"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the state is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// validTransitions maps each state to the states it may move to.
var validTransitions = map[State][]State{
	StateInit:        {StateRangeParsed, StateFailed},
	StateRangeParsed: {StateStreaming, StateCompleted, StateCancelled, StateFailed},
	StateStreaming:   {StateCompleted, StateCancelled, StateFailed},
}

// Session tracks one in-flight transfer: the resource being streamed, the
// resolved range, the progress cursor, and the lifecycle state. A session is
// created per request and never shared across requests; its methods are
// safe for the responder and scheduler to call from the same request's
// goroutines.
type Session struct {
	ID       string
	Resource source.Resource

	mu       sync.Mutex
	state    State
	rng      ResolvedRange
	streamed int64
	started  time.Time
	err      error
}

// NewSession creates a session in StateInit for the given resource. An
// empty id gets a generated UUID so a session is always traceable in logs
// and metrics.
func NewSession(id string, res source.Resource) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:       id,
		Resource: res,
		state:    StateInit,
		started:  time.Now(),
	}
}

// transition moves the session to next, enforcing the lifecycle graph.
func (s *Session) transition(next State) error {
	for _, allowed := range validTransitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrSessionState, s.state, next)
}

// SetRange records a successfully resolved range and moves the session to
// StateRangeParsed.
func (s *Session) SetRange(rng ResolvedRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(StateRangeParsed); err != nil {
		return err
	}
	s.rng = rng
	return nil
}

// Range returns the resolved range. Valid after SetRange.
func (s *Session) Range() ResolvedRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng
}

// StartStreaming moves the session to StateStreaming before the first chunk
// write. Calling it again once streaming is a no-op.
func (s *Session) StartStreaming() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStreaming {
		return nil
	}
	return s.transition(StateStreaming)
}

// Advance records bytes delivered to the client.
func (s *Session) Advance(n int64) {
	s.mu.Lock()
	s.streamed += n
	s.mu.Unlock()
}

// BytesStreamed returns the number of bytes delivered so far.
func (s *Session) BytesStreamed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamed
}

// Complete marks the session as having delivered the full range.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(StateCompleted)
}

// Cancel marks the session as cancelled by client disconnect. Cancelling a
// session already in a terminal state is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	_ = s.transition(StateCancelled)
}

// Fail marks the session as failed and records the cause. Failing a session
// already in a terminal state keeps the original outcome.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	if s.transition(StateFailed) == nil {
		s.err = err
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure cause when the session is in StateFailed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancelled reports whether the session was cancelled.
func (s *Session) Cancelled() bool {
	return s.State() == StateCancelled
}

// Duration returns the time elapsed since the session was created.
func (s *Session) Duration() time.Duration {
	return time.Since(s.started)
}
