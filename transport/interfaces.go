// Package transport defines the chunk-level transport interface used to
// reach an autowatering controller.
//
// A transport delivers MTU-bounded chunks from the controller's notify
// characteristics and accepts ordered chunk writes to its command
// characteristic. Connection management, discovery and MTU negotiation
// live entirely inside the transport implementation; the protocol core is
// purely reactive.
package transport

import "context"

// Transport is the base interface for all transport implementations.
type Transport interface {
	// Start begins the transport's connection and chunk handling.
	// The provided context controls the transport's lifetime.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the transport.
	Stop() error
	// IsConnected returns true if the transport is currently connected.
	IsConnected() bool
	// SetChunkHandler sets the callback for inbound notification chunks.
	SetChunkHandler(fn ChunkHandler)
	// SetStateHandler sets the callback for transport state changes.
	SetStateHandler(fn StateHandler)
	// WriteChunk writes a single chunk to the given characteristic.
	// Chunks must be written in the order produced by the fragmenter; the
	// transport delivers them to the controller in submission order.
	WriteChunk(characteristic string, chunk []byte) error
}

// ChunkHandler is called once per received transmission unit. The
// characteristic is the opaque identity of the notifying channel (its
// GATT UUID on BLE-backed transports).
type ChunkHandler func(characteristic string, chunk []byte)

// StateHandler is called when the transport state changes.
type StateHandler func(transport Transport, event Event)

// Event represents transport state change events.
type Event int

const (
	// EventConnected is fired when the transport connects.
	EventConnected Event = iota
	// EventDisconnected is fired when the transport disconnects.
	EventDisconnected
	// EventReconnecting is fired when the transport is attempting to reconnect.
	EventReconnecting
	// EventError is fired when an error occurs.
	EventError
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}
