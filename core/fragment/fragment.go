// Package fragment splits outbound payloads into transmit-ready chunks.
//
// The first chunk carries the 4-byte write header plus up to 16 payload
// bytes; every following chunk is pure payload continuation of up to 20
// bytes. Chunk order is the transmission order and must be preserved by
// the caller.
package fragment

import (
	"fmt"

	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/wire"
)

// ChannelValidator reports whether a channel ID is valid for the target
// device. The valid range is a property of the device model, so it is
// supplied by the caller (see device/profile).
type ChannelValidator interface {
	ValidChannel(channel uint8) bool
}

// ChunkCount returns the number of chunks a payload of n bytes splits into.
func ChunkCount(n int) int {
	if n <= wire.FirstChunkPayload {
		return 1
	}
	remaining := n - wire.FirstChunkPayload
	return 1 + (remaining+wire.MaxChunkSize-1)/wire.MaxChunkSize
}

// Split turns a payload into an ordered sequence of chunks for the given
// channel. The total size is computed once from the payload length and
// never recomputed mid-stream.
func Split(channelID uint8, payload []byte) ([][]byte, error) {
	if len(payload) > wire.MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", wire.ErrPayloadTooLarge, len(payload))
	}

	header := wire.WriteHeader{
		ChannelID:    channelID,
		FragmentType: wire.FragmentTypeFullLE,
		TotalSize:    uint16(len(payload)),
	}

	firstLen := min(wire.FirstChunkPayload, len(payload))

	chunks := make([][]byte, 0, ChunkCount(len(payload)))

	first := make([]byte, 0, wire.WriteHeaderSize+firstLen)
	first = append(first, header.Encode()...)
	first = append(first, payload[:firstLen]...)
	chunks = append(chunks, first)

	for off := firstLen; off < len(payload); off += wire.MaxChunkSize {
		end := min(off+wire.MaxChunkSize, len(payload))
		chunk := make([]byte, end-off)
		copy(chunk, payload[off:end])
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// SplitValidated is Split with the channel checked against the device's
// valid range first.
func SplitValidated(v ChannelValidator, channelID uint8, payload []byte) ([][]byte, error) {
	if v != nil && !v.ValidChannel(channelID) {
		return nil, fmt.Errorf("%w: %d", wire.ErrInvalidChannel, channelID)
	}
	return Split(channelID, payload)
}
