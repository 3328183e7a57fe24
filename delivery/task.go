// Package delivery implements the Delivery Task: the goroutine that
// drains one StreamBuffer.Reader over a TCP socket to a client-supplied
// address (spec.md §4.4).
package delivery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"speechpool/eventbus"
	"speechpool/logger"
	"speechpool/streambuf"
)

// State is a point in a Task's lifecycle:
// connecting -> streaming -> terminated{done, cancelled, errored}.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateDone
	StateCancelled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Task streams one StreamBuffer's contents to ClientAddress. Every
// terminal transition publishes exactly one completion event and
// invokes Deregister exactly once, however the termination happened
// (natural end-of-stream, explicit Stop, or socket error).
type Task struct {
	RequestID     int64
	ClientAddress string
	EventTag      string

	// Deregister is called exactly once, on the first terminal
	// transition, so the owning registry can drop this task's entry.
	// It is set by whoever registers the task; a nil Deregister is a
	// no-op, which keeps the Task usable in isolation for tests.
	Deregister func()

	id     string
	reader *streambuf.Reader
	bus    eventbus.Bus
	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state     atomic.Int32
	terminate sync.Once
}

// New builds a Task ready to Run. parent is the context the task's own
// cancellable context derives from; cancelling parent has the same
// effect as calling Cancel.
func New(parent context.Context, requestID int64, clientAddress, eventTag string,
	reader *streambuf.Reader, bus eventbus.Bus, log logger.Logger) *Task {
	if log == nil {
		log = logger.Default
	}
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		RequestID:     requestID,
		ClientAddress: clientAddress,
		EventTag:      eventTag,
		id:            uuid.NewString(),
		reader:        reader,
		bus:           bus,
		logger:        log,
		ctx:           ctx,
		cancel:        cancel,
	}
	t.state.Store(int32(StateConnecting))
	return t
}

// State reports the task's current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// Cancel requests that the task stop at its next opportunity. Safe to
// call multiple times, and safe to call after the task has already
// reached a terminal state.
func (t *Task) Cancel() {
	t.cancel()
}

// Run drives the task's full lifecycle: dial, stream, terminate. It
// blocks until a terminal state is reached; callers launch it in its
// own goroutine.
func (t *Task) Run() {
	t.logger.Debugf("delivery[%s]: connecting to %s", t.id, t.ClientAddress)

	var d net.Dialer
	conn, err := d.DialContext(t.ctx, "tcp", t.ClientAddress)
	if err != nil {
		t.finish(StateErrored, fmt.Errorf("connect to %s: %w", t.ClientAddress, err))
		return
	}
	defer conn.Close()

	t.state.Store(int32(StateStreaming))

	for {
		chunk, err := t.reader.Read(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil {
				t.finish(StateCancelled, nil)
				return
			}
			// io.EOF: the buffer closed and fully drained.
			t.finish(StateDone, nil)
			return
		}

		if _, err := conn.Write(chunk); err != nil {
			t.finish(StateErrored, fmt.Errorf("write to %s: %w", t.ClientAddress, err))
			return
		}
	}
}

// finish performs the terminal transition exactly once: store the
// final state, publish one completion event, and deregister
// (spec.md P5).
func (t *Task) finish(state State, cause error) {
	t.terminate.Do(func() {
		t.state.Store(int32(state))
		switch state {
		case StateDone:
			t.bus.Publish(fmt.Sprintf("event: %s, done", t.EventTag))
		case StateCancelled:
			t.bus.Publish(fmt.Sprintf("event: %s, cancelled", t.EventTag))
		case StateErrored:
			t.bus.Publish(fmt.Sprintf("event: %s, error: %v", t.EventTag, cause))
		}
		if t.Deregister != nil {
			t.Deregister()
		}
	})
}
