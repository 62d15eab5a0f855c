// Package reassembly accumulates MTU-sized notification chunks into
// complete payloads, one buffer per logical stream.
//
// Every inbound chunk carries an 8-byte unified header declaring its
// position within the stream. Fragments are expected in strictly
// increasing index order; any violation is treated as corruption and the
// stream restarts rather than attempting reordering, because the
// notification channel preserves order on a single characteristic.
package reassembly

import (
	"fmt"
	"time"

	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/wire"
)

// DefaultStaleTimeout is the default idle window after which an
// in-progress buffer is evicted.
const DefaultStaleTimeout = 5 * time.Second

// Registry owns the stream-key → buffer map and its lifecycle.
//
// All methods must be called from a single goroutine, or serialized by
// the owner; the registry itself holds no lock.
type Registry struct {
	pending map[StreamKey]*Buffer
	timeout time.Duration
	onStale func(key StreamKey)

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// NewRegistry creates a Registry with the default stale timeout.
func NewRegistry() *Registry {
	return NewRegistryWithTimeout(DefaultStaleTimeout)
}

// NewRegistryWithTimeout creates a Registry that evicts buffers idle
// longer than timeout. A timeout of 0 disables eviction.
func NewRegistryWithTimeout(timeout time.Duration) *Registry {
	return &Registry{
		pending: make(map[StreamKey]*Buffer),
		timeout: timeout,
		nowFn:   time.Now,
	}
}

// SetStaleHandler sets the callback invoked when an idle buffer is
// evicted. The handler runs synchronously inside HandleChunk.
func (r *Registry) SetStaleHandler(fn func(key StreamKey)) {
	r.onStale = fn
}

// HandleChunk processes one raw notification chunk from the given
// characteristic. It returns a Completed transfer once the final fragment
// of a stream arrives, or (nil, nil) while the stream is pending.
//
// All returned errors are local and recoverable: a malformed chunk never
// disturbs streams other than its own, and none is fatal to the
// connection.
func (r *Registry) HandleChunk(characteristic string, chunk []byte) (*Completed, error) {
	r.expire()

	h, err := wire.ParseUnifiedHeader(chunk)
	if err != nil {
		return nil, err
	}

	total := h.NormalizedTotal()
	if h.FragmentIndex >= total {
		// Malformed or stale device message; drop without touching any buffer.
		return nil, fmt.Errorf("%w: index %d of %d", wire.ErrFragmentIndexOutOfRange, h.FragmentIndex, total)
	}

	payload := fragmentPayload(h, chunk)
	key := StreamKey{Characteristic: characteristic, DataType: h.DataType}
	now := r.nowFn()

	buf, exists := r.pending[key]
	if !exists {
		buf = newBuffer(h, payload, now)
		r.pending[key] = buf
		if h.FragmentIndex != 0 {
			// Mid-stream tail with no buffer behind it (e.g. the head was
			// lost to a reset). Tracked, but surfaced so the caller can
			// re-issue the read.
			return nil, fmt.Errorf("%w: got %d for new stream", wire.ErrOutOfOrderFragment, h.FragmentIndex)
		}
		return r.finish(key, buf)
	}

	if h.FragmentIndex != buf.nextIndex {
		// Protocol violation: discard partial progress and root a fresh
		// attempt at this fragment rather than guessing at a reordering.
		r.pending[key] = newBuffer(h, payload, now)
		return nil, fmt.Errorf("%w: got %d, expected %d", wire.ErrOutOfOrderFragment, h.FragmentIndex, buf.nextIndex)
	}

	buf.append(payload, now)
	return r.finish(key, buf)
}

// finish removes and returns the buffer as a Completed transfer if all
// fragments have arrived.
func (r *Registry) finish(key StreamKey, buf *Buffer) (*Completed, error) {
	if !buf.complete() {
		return nil, nil
	}
	delete(r.pending, key)
	if buf.rootIndex != 0 {
		// The buffer never held the head of the stream; emitting it would
		// hand the decoder a truncated record. Wait for a clean retry.
		return nil, nil
	}
	return &Completed{
		Key:        key,
		Status:     buf.snapshot.Status,
		EntryCount: buf.snapshot.EntryCount,
		Payload:    buf.accumulated,
	}, nil
}

// fragmentPayload extracts this chunk's payload bytes, honoring the
// declared fragment size but never reading past the chunk.
func fragmentPayload(h wire.UnifiedHeader, chunk []byte) []byte {
	data := chunk[wire.UnifiedHeaderSize:]
	size := h.NormalizedSize(len(chunk))
	if size > len(data) {
		size = len(data)
	}
	return data[:size]
}

// expire evicts buffers that have not advanced within the stale timeout.
func (r *Registry) expire() {
	if r.timeout <= 0 {
		return
	}
	now := r.nowFn()
	for key, buf := range r.pending {
		if now.Sub(buf.lastActivity) > r.timeout {
			delete(r.pending, key)
			if r.onStale != nil {
				r.onStale(key)
			}
		}
	}
}

// PendingCount returns the number of in-progress streams.
func (r *Registry) PendingCount() int {
	return len(r.pending)
}

// Pending reports whether a stream is currently in progress for the key.
func (r *Registry) Pending(key StreamKey) bool {
	_, ok := r.pending[key]
	return ok
}

// Clear discards every in-progress buffer. The connection-lifecycle owner
// must call this on every disconnect/reconnect transition: data-type tags
// are small and reused across sessions, so a stale buffer could otherwise
// merge unrelated data.
func (r *Registry) Clear() {
	clear(r.pending)
}
