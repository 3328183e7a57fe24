// Package streambuf implements the single-writer, many-reader, blocking
// byte-chunk buffer that backs every cached conversion (spec.md §4.1).
package streambuf

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// State is a point in the buffer's lifecycle: START -> RECEIVING ->
// {CLOSED, CLOSED_INCOMPLETE}. There is no transition back out of
// either closed state.
type State int32

const (
	StateStart State = iota
	StateReceiving
	StateClosed
	StateClosedIncomplete
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateReceiving:
		return "receiving"
	case StateClosed:
		return "closed"
	case StateClosedIncomplete:
		return "closed_incomplete"
	default:
		return "unknown"
	}
}

var (
	// ErrWriterExists is returned by MakeWriter when a writer has
	// already been created for this buffer, or the buffer is past the
	// START state.
	ErrWriterExists = errors.New("streambuf: a writer already exists for this buffer")
	// ErrNotReceiving is returned by Write/Close when called outside
	// the RECEIVING state.
	ErrNotReceiving = errors.New("streambuf: write/close called outside the receiving state")
)

// StreamBuffer holds the chunks written by a single Writer and fans
// them out to any number of Readers, including readers created after
// the buffer has already closed — a cache hit must be able to replay
// the full history from offset zero (spec.md §4.1 P2/P3).
//
// Chunks are appended to an unbounded slice rather than a fixed ring:
// the cache's whole purpose is replay-from-scratch, which a ring
// buffer that overwrites old entries cannot support.
type StreamBuffer struct {
	mu         sync.Mutex
	chunks     []*bytebufferpool.ByteBuffer
	state      State
	writerMade bool
	// wake is closed and replaced every time new data or a close is
	// published, waking every reader blocked on it. This is the same
	// channel-swap broadcast idiom the original stream coordinator
	// uses, chosen (over sync.Cond) because it composes with
	// ctx.Done() in a select.
	wake chan struct{}
}

// New returns an empty StreamBuffer in the START state.
func New() *StreamBuffer {
	return &StreamBuffer{
		state: StateStart,
		wake:  make(chan struct{}),
	}
}

// State reports the buffer's current lifecycle state.
func (b *StreamBuffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Corrupted reports whether the buffer closed incomplete, meaning the
// cache should evict it rather than serve it to new readers.
func (b *StreamBuffer) Corrupted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateClosedIncomplete
}

// broadcast wakes every reader currently blocked in Read. Must be
// called with b.mu held.
func (b *StreamBuffer) broadcast() {
	close(b.wake)
	b.wake = make(chan struct{})
}

// MakeWriter transitions START -> RECEIVING and returns the buffer's
// one and only Writer. A second call, or a call after the buffer has
// left START, fails with ErrWriterExists.
func (b *StreamBuffer) MakeWriter() (*Writer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writerMade || b.state != StateStart {
		return nil, ErrWriterExists
	}
	b.writerMade = true
	b.state = StateReceiving
	return &Writer{buf: b}, nil
}

// MakeReader returns a new Reader positioned at offset zero. Valid in
// any state, including after close.
func (b *StreamBuffer) MakeReader() *Reader {
	return &Reader{buf: b}
}

// Writer is the single producer side of a StreamBuffer.
type Writer struct {
	buf *StreamBuffer
}

// Write appends chunk to the buffer and wakes every blocked reader.
// chunk's bytes are copied into pool-backed storage owned by the
// buffer for the rest of its life (the pool buffer is deliberately
// never returned to bytebufferpool — the cache's retention contract
// requires chunks to remain valid for as long as the buffer is
// reachable). The caller's slice may be reused immediately after
// Write returns.
func (w *Writer) Write(chunk []byte) error {
	b := w.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReceiving {
		return ErrNotReceiving
	}
	bb := bytebufferpool.Get()
	_, _ = bb.Write(chunk)
	b.chunks = append(b.chunks, bb)
	b.broadcast()
	return nil
}

// Close transitions RECEIVING -> CLOSED (incomplete=false) or
// RECEIVING -> CLOSED_INCOMPLETE (incomplete=true) and wakes every
// blocked reader. Calling Close outside RECEIVING is an error.
func (w *Writer) Close(incomplete bool) error {
	b := w.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReceiving {
		return ErrNotReceiving
	}
	if incomplete {
		b.state = StateClosedIncomplete
	} else {
		b.state = StateClosed
	}
	b.broadcast()
	return nil
}

// Reader is one consumer's read cursor into a StreamBuffer. A Reader
// is not safe for concurrent use by multiple goroutines, but any
// number of Readers may read the same StreamBuffer concurrently.
type Reader struct {
	buf    *StreamBuffer
	offset int
}

// Read returns the next chunk at the cursor and advances it by one.
// It blocks while the cursor has caught up with the writer and the
// buffer is still RECEIVING; it returns io.EOF once the cursor has
// caught up and the buffer has closed, in either terminal state. It
// never returns a partial chunk, there is no per-reader copy (chunks
// are shared read-only once written), and it is responsive to ctx
// cancellation even while blocked (spec.md §4.4/§5).
func (r *Reader) Read(ctx context.Context) ([]byte, error) {
	b := r.buf
	for {
		b.mu.Lock()
		if r.offset < len(b.chunks) {
			chunk := b.chunks[r.offset]
			r.offset++
			b.mu.Unlock()
			return chunk.Bytes(), nil
		}
		if b.state == StateClosed || b.state == StateClosedIncomplete {
			b.mu.Unlock()
			return nil, io.EOF
		}
		wake := b.wake
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}
