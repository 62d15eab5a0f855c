// Package seriallink provides a serial transport for autowatering
// controllers reachable over a UART debug bridge.
//
// Dev-kit firmware mirrors the GATT characteristic traffic over serial:
// each frame carries a one-byte characteristic tag plus one raw chunk,
// protected by a Fletcher-16 checksum. The tag↔UUID mapping comes from
// the device profile's serial_tags table. The transport exposes the same
// chunk-level interface as the MQTT gateway transport.
package seriallink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/wire"
	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/transport"
	"go.bug.st/serial"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

const (
	// DefaultBaudRate is the default baud rate for the debug bridge.
	DefaultBaudRate = 115200

	// readBufSize is the size of the serial read buffer.
	readBufSize = 1024
)

// Config holds the configuration for a serial transport.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyUSB0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to 115200.
	BaudRate int
	// Tags maps the bridge's characteristic tag byte to the GATT
	// characteristic UUID it mirrors (see profile.SerialTags).
	Tags map[uint8]string
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Transport implements transport.Transport over a serial debug bridge.
type Transport struct {
	cfg          Config
	port         serial.Port
	log          *slog.Logger
	tagByUUID    map[string]uint8
	mu           sync.RWMutex
	connected    bool
	cancel       context.CancelFunc
	done         chan struct{}
	chunkHandler transport.ChunkHandler
	stateHandler transport.StateHandler
}

// New creates a new serial transport with the given configuration.
func New(cfg Config) *Transport {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	tagByUUID := make(map[string]uint8, len(cfg.Tags))
	for tag, uuid := range cfg.Tags {
		tagByUUID[uuid] = tag
	}

	return &Transport{
		cfg:       cfg,
		log:       cfg.Logger.WithGroup("seriallink"),
		tagByUUID: tagByUUID,
	}
}

// Start opens the serial port and begins reading bridge frames.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Port == "" {
		return errors.New("serial port is required")
	}
	if len(t.cfg.Tags) == 0 {
		return errors.New("characteristic tag map is required")
	}

	mode := &serial.Mode{
		BaudRate: t.cfg.BaudRate,
	}

	port, err := serial.Open(t.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}

	t.mu.Lock()
	t.port = port
	t.connected = true
	t.done = make(chan struct{})
	handler := t.stateHandler
	t.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.readLoop(readCtx)

	t.log.Info("connected to serial bridge", "port", t.cfg.Port, "baud", t.cfg.BaudRate)

	if handler != nil {
		handler(t, transport.EventConnected)
	}

	return nil
}

// Stop closes the serial port and stops the read loop.
func (t *Transport) Stop() error {
	t.mu.Lock()
	handler := t.stateHandler
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	t.mu.Lock()
	t.connected = false
	port := t.port
	t.port = nil
	done := t.done
	t.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}

	// Wait for read loop to finish
	if done != nil {
		<-done
	}

	if handler != nil {
		handler(t, transport.EventDisconnected)
	}

	return err
}

// IsConnected returns true if the serial port is open.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// SetChunkHandler sets the callback for inbound notification chunks.
func (t *Transport) SetChunkHandler(fn transport.ChunkHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunkHandler = fn
}

// SetStateHandler sets the callback for transport state changes.
func (t *Transport) SetStateHandler(fn transport.StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandler = fn
}

// WriteChunk wraps a chunk in a bridge frame and writes it to the port.
func (t *Transport) WriteChunk(characteristic string, chunk []byte) error {
	if len(chunk) > wire.MaxChunkSize {
		return fmt.Errorf("chunk exceeds %d bytes", wire.MaxChunkSize)
	}

	tag, ok := t.tagByUUID[characteristic]
	if !ok {
		return fmt.Errorf("no bridge tag for characteristic %s", characteristic)
	}

	t.mu.RLock()
	port := t.port
	connected := t.connected
	t.mu.RUnlock()

	if !connected || port == nil {
		return errors.New("not connected")
	}

	frame, err := EncodeFrame(tag, chunk)
	if err != nil {
		return fmt.Errorf("encoding bridge frame: %w", err)
	}

	_, err = port.Write(frame)
	if err != nil {
		return fmt.Errorf("writing to serial port: %w", err)
	}

	return nil
}

// readLoop continuously reads from the serial port and assembles frames.
func (t *Transport) readLoop(ctx context.Context) {
	defer close(t.done)

	buf := make([]byte, readBufSize)
	var assemblyBuf []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return // context cancelled, clean shutdown
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				t.handleDisconnect(err)
				return
			}
			t.log.Error("serial read error", "error", err)
			t.handleDisconnect(err)
			return
		}

		if n == 0 {
			continue
		}

		assemblyBuf = append(assemblyBuf, buf[:n]...)
		assemblyBuf = t.processFrames(assemblyBuf)
	}
}

// processFrames extracts complete bridge frames from the buffer and
// dispatches the chunks they carry. Returns any remaining bytes that
// don't form a complete frame.
func (t *Transport) processFrames(data []byte) []byte {
	for len(data) >= MinFrameSize {
		frame, remaining, err := DecodeFrame(data)
		if err != nil {
			if errors.Is(err, ErrIncompleteFrame) {
				return data // wait for more data
			}
			// Bad frame — resync on the next magic bytes
			if idx := findMagic(data[1:]); idx >= 0 {
				data = data[1+idx:]
				continue
			}
			// No magic found, discard everything
			return nil
		}

		data = remaining

		uuid, ok := t.cfg.Tags[frame.Tag]
		if !ok {
			t.log.Debug("frame for unknown characteristic tag", "tag", frame.Tag)
			continue
		}

		t.mu.RLock()
		handler := t.chunkHandler
		t.mu.RUnlock()

		if handler != nil {
			handler(uuid, frame.Chunk)
		}
	}

	return data
}

func (t *Transport) handleDisconnect(err error) {
	t.mu.Lock()
	t.connected = false
	handler := t.stateHandler
	t.mu.Unlock()

	if err != nil {
		t.log.Error("serial bridge disconnected", "error", err)
	}

	if handler != nil {
		handler(t, transport.EventDisconnected)
	}
}
