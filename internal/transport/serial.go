// Package transport provides the byte transports the receiver driver runs
// over: a real UART and a simulated receiver for development.
package transport

import (
	"fmt"
	"log"
	"time"

	"go.bug.st/serial"
)

// pollTimeout bounds a single read against the UART. Short enough that the
// driver's deadline loops stay responsive, long enough to catch a sentence
// burst mid-flight.
const pollTimeout = 50 * time.Millisecond

// Serial adapts a UART to the driver's transport contract. The underlying
// library has no pending-byte query, so Available performs one short timed
// read into an internal stash; Read drains the stash before touching the
// port again.
type Serial struct {
	path  string
	baud  int
	port  serial.Port
	stash []byte
	buf   [256]byte
}

// NewSerial returns an unopened transport for the given device path.
func NewSerial(path string, baud int) *Serial {
	return &Serial{path: path, baud: baud}
}

// Connect opens the port at 8N1 and discards any stale input.
func (s *Serial) Connect() error {
	mode := &serial.Mode{
		BaudRate: s.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.path, mode)
	if err != nil {
		return fmt.Errorf("serial: failed to open %s: %w", s.path, err)
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return fmt.Errorf("serial: failed to set timeout: %w", err)
	}
	port.ResetInputBuffer()
	s.port = port
	log.Printf("[serial] opened %s at %d baud", s.path, s.baud)
	return nil
}

// Close releases the port. Safe to call when not connected.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.stash = s.stash[:0]
	return err
}

// Reopen closes the port and opens it again at a new baud rate. Used after
// a CFG-PRT write, when the receiver has already switched.
func (s *Serial) Reopen(baud int) error {
	if err := s.Close(); err != nil {
		return err
	}
	s.baud = baud
	return s.Connect()
}

// Available reports the bytes readable without blocking past one poll.
func (s *Serial) Available() (int, error) {
	if s.port == nil {
		return 0, fmt.Errorf("serial: %s not connected", s.path)
	}
	if len(s.stash) == 0 {
		n, err := s.port.Read(s.buf[:])
		if err != nil {
			return 0, fmt.Errorf("serial: read %s: %w", s.path, err)
		}
		s.stash = append(s.stash, s.buf[:n]...)
	}
	return len(s.stash), nil
}

func (s *Serial) Read(p []byte) (int, error) {
	if s.port == nil {
		return 0, fmt.Errorf("serial: %s not connected", s.path)
	}
	if len(s.stash) > 0 {
		n := copy(p, s.stash)
		s.stash = s.stash[n:]
		return n, nil
	}
	n, err := s.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("serial: read %s: %w", s.path, err)
	}
	return n, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	if s.port == nil {
		return 0, fmt.Errorf("serial: %s not connected", s.path)
	}
	n, err := s.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial: write %s: %w", s.path, err)
	}
	return n, nil
}
