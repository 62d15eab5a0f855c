package reassembly

import (
	"time"

	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/wire"
)

// StreamKey identifies one in-flight logical transfer: the notifying
// characteristic plus the data-type tag. Two streams that differ only in
// data type on the same characteristic reassemble independently.
type StreamKey struct {
	Characteristic string
	DataType       uint8
}

// Buffer is the in-progress reassembly state for one stream key.
type Buffer struct {
	accumulated  []byte
	expected     uint8 // total fragment count, from the first fragment seen
	rootIndex    uint8 // index of the fragment the buffer was rooted at
	nextIndex    uint8
	snapshot     wire.UnifiedHeader // header of the first fragment
	lastActivity time.Time
}

// newBuffer roots a fresh buffer at the given fragment.
func newBuffer(h wire.UnifiedHeader, payload []byte, now time.Time) *Buffer {
	b := &Buffer{
		expected:     h.NormalizedTotal(),
		rootIndex:    h.FragmentIndex,
		nextIndex:    h.FragmentIndex,
		snapshot:     h,
		lastActivity: now,
	}
	b.append(payload, now)
	return b
}

func (b *Buffer) append(payload []byte, now time.Time) {
	b.accumulated = append(b.accumulated, payload...)
	b.nextIndex++
	b.lastActivity = now
}

func (b *Buffer) complete() bool {
	return b.nextIndex >= b.expected
}

// Completed is the decoder-layer hand-off for one finished logical
// transfer. Status and EntryCount come from the first fragment's header.
type Completed struct {
	Key        StreamKey
	Status     uint8
	EntryCount uint16
	Payload    []byte
}
