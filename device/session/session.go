// Package session ties a chunk transport to the fragmentation protocol
// core and exposes the record-level API used by request/response callers.
//
// A Session owns the reassembly registry for one controller connection.
// It fragments outbound payloads onto the command characteristic, feeds
// every inbound notification chunk through the registry, and clears all
// reassembly state on every transport disconnect/reconnect transition so
// no buffer from a dead session leaks into a new one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/fragment"
	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/reassembly"
	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/wire"
	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/device/profile"
	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/transport"
)

// Record is one completed logical transfer, ready for the decoder layer.
type Record struct {
	Characteristic string
	DataType       uint8
	Status         uint8
	EntryCount     uint16
	Payload        []byte
}

// RecordHandler is called exactly once per completed logical transfer.
type RecordHandler func(rec Record)

// ErrorHandler is called for recoverable framing errors. None of them is
// fatal to the connection; the caller decides whether to re-issue the
// read that produced the stream.
type ErrorHandler func(characteristic string, err error)

// Config configures a Session.
type Config struct {
	// Transport carries chunks to and from the controller.
	Transport transport.Transport
	// Profile describes the controller model. Defaults to profile.Default().
	Profile *profile.Profile
	// StaleTimeout is the idle window before an in-progress stream is
	// evicted. Defaults to reassembly.DefaultStaleTimeout; negative
	// disables eviction.
	StaleTimeout time.Duration
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Session is the public facade over one controller connection.
type Session struct {
	cfg  Config
	log  *slog.Logger
	prof *profile.Profile

	mu            sync.Mutex
	reg           *reassembly.Registry
	stale         []reassembly.StreamKey // evictions collected under mu
	recordHandler RecordHandler
	errorHandler  ErrorHandler
	stateHandler  transport.StateHandler
}

// New creates a Session over the given transport.
func New(cfg Config) (*Session, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.Profile == nil {
		cfg.Profile = profile.Default()
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("device profile: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	timeout := cfg.StaleTimeout
	switch {
	case timeout == 0:
		timeout = reassembly.DefaultStaleTimeout
	case timeout < 0:
		timeout = 0
	}

	s := &Session{
		cfg:  cfg,
		log:  cfg.Logger.WithGroup("session"),
		prof: cfg.Profile,
		reg:  reassembly.NewRegistryWithTimeout(timeout),
	}
	// Runs inside HandleChunk, i.e. under s.mu; drained after unlock.
	s.reg.SetStaleHandler(func(key reassembly.StreamKey) {
		s.stale = append(s.stale, key)
	})

	cfg.Transport.SetChunkHandler(s.handleChunk)
	cfg.Transport.SetStateHandler(s.handleState)

	return s, nil
}

// Start starts the underlying transport.
func (s *Session) Start(ctx context.Context) error {
	return s.cfg.Transport.Start(ctx)
}

// Stop stops the underlying transport.
func (s *Session) Stop() error {
	return s.cfg.Transport.Stop()
}

// SetRecordHandler sets the callback for completed transfers.
func (s *Session) SetRecordHandler(fn RecordHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordHandler = fn
}

// SetErrorHandler sets the callback for recoverable framing errors.
func (s *Session) SetErrorHandler(fn ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = fn
}

// SetStateHandler sets a callback for transport state changes, invoked
// after the session has handled the transition itself.
func (s *Session) SetStateHandler(fn transport.StateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateHandler = fn
}

// Send fragments a payload and writes its chunks, in order, to the
// profile's command characteristic.
func (s *Session) Send(channel uint8, payload []byte) error {
	chunks, err := fragment.SplitValidated(s.prof, channel, payload)
	if err != nil {
		return err
	}

	char := s.prof.Characteristics.Command
	for i, chunk := range chunks {
		if err := s.cfg.Transport.WriteChunk(char, chunk); err != nil {
			return fmt.Errorf("writing chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	s.log.Debug("sent payload", "channel", channel, "bytes", len(payload), "chunks", len(chunks))
	return nil
}

// PendingStreams returns the number of in-progress reassemblies.
func (s *Session) PendingStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.PendingCount()
}

// Reset discards all in-progress reassembly state. The transport state
// handler calls this automatically; it is exported for lifecycle owners
// that track resets out of band.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Clear()
}

func (s *Session) handleChunk(characteristic string, chunk []byte) {
	s.mu.Lock()
	done, err := s.reg.HandleChunk(characteristic, chunk)
	evicted := s.stale
	s.stale = nil
	recordHandler := s.recordHandler
	errorHandler := s.errorHandler
	s.mu.Unlock()

	// Callbacks fire outside the lock.
	for _, key := range evicted {
		s.log.Warn("evicted stale stream",
			"characteristic", key.Characteristic,
			"data_type", wire.DataTypeName(key.DataType))
		if errorHandler != nil {
			errorHandler(key.Characteristic, fmt.Errorf("%w: %s", wire.ErrStaleStream, wire.DataTypeName(key.DataType)))
		}
	}

	if err != nil {
		s.log.Debug("framing error", "characteristic", characteristic, "error", err)
		if errorHandler != nil {
			errorHandler(characteristic, err)
		}
	}

	if done != nil {
		s.log.Debug("stream complete",
			"data_type", wire.DataTypeName(done.Key.DataType),
			"status", wire.StatusName(done.Status),
			"entries", done.EntryCount,
			"bytes", len(done.Payload))
		if recordHandler != nil {
			recordHandler(Record{
				Characteristic: done.Key.Characteristic,
				DataType:       done.Key.DataType,
				Status:         done.Status,
				EntryCount:     done.EntryCount,
				Payload:        done.Payload,
			})
		}
	}
}

func (s *Session) handleState(t transport.Transport, event transport.Event) {
	switch event {
	case transport.EventConnected, transport.EventDisconnected, transport.EventReconnecting:
		// Data-type tags are reused across sessions; nothing may survive
		// a connection boundary.
		s.mu.Lock()
		pending := s.reg.PendingCount()
		s.reg.Clear()
		s.mu.Unlock()
		if pending > 0 {
			s.log.Info("cleared reassembly state", "event", event.String(), "discarded", pending)
		}
	}

	s.mu.Lock()
	handler := s.stateHandler
	s.mu.Unlock()
	if handler != nil {
		handler(t, event)
	}
}
