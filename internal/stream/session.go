package stream

import (
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	ErrAlreadyDrained = errors.New("stream handle already drained")
	ErrNilHandle      = errors.New("stream handle is nil")
)

// Session es el estado efimero de un stream: handle, texto acumulado y marca de completado.
type Session struct {
	ID string

	handle io.ReadCloser
	dec    *decoder

	mu        sync.Mutex
	buf       strings.Builder
	completed bool

	started   atomic.Bool
	cancelled atomic.Bool
	closeOnce sync.Once
	closeErr  error
	closes    atomic.Int32
}

// NewSession envuelve un handle todavia no leido.
func NewSession(handle io.ReadCloser) *Session {
	return &Session{
		ID:     uuid.NewString(),
		handle: handle,
		dec:    newDecoder(),
	}
}

// Cancel pide la cancelacion; el handle se cierra una sola vez aunque se llame varias veces.
func (s *Session) Cancel() {
	if s == nil {
		return
	}
	s.cancelled.Store(true)
	s.release()
}

// Cancelled indica si se pidio cancelacion.
func (s *Session) Cancelled() bool {
	return s != nil && s.cancelled.Load()
}

// Completed indica si el stream llego al final sin error ni cancelacion.
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Text devuelve el texto acumulado hasta el momento.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Releases cuenta los cierres efectivos del handle (0 o 1).
func (s *Session) Releases() int {
	return int(s.closes.Load())
}

func (s *Session) begin() bool {
	return s.started.CompareAndSwap(false, true)
}

func (s *Session) append(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.WriteString(text)
	return s.buf.String()
}

func (s *Session) complete() {
	s.mu.Lock()
	s.completed = true
	s.mu.Unlock()
}

func (s *Session) release() error {
	s.closeOnce.Do(func() {
		if s.handle == nil {
			return
		}
		s.closes.Add(1)
		s.closeErr = s.handle.Close()
	})
	return s.closeErr
}
