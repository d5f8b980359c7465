package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"go.uber.org/zap"
)

const defaultReadBufferSize = 4096

// Callbacks agrupa los avisos de Drain. Cualquiera puede ser nil.
type Callbacks struct {
	OnPartial  func(text string)
	OnComplete func(text string)
	OnError    func(err error)
}

// Consumer convierte un handle de bytes en snapshots acumulativos de texto.
type Consumer struct {
	bufSize int
	logger  *zap.Logger
}

// NewConsumer crea un consumidor con el tamaño de lectura indicado (0 usa el valor por defecto).
func NewConsumer(bufSize int, logger *zap.Logger) *Consumer {
	if bufSize <= 0 {
		bufSize = defaultReadBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{bufSize: bufSize, logger: logger}
}

// Snapshots devuelve la secuencia finita y no reiniciable de textos acumulados.
// Cada valor extiende al anterior. Un error se entrega una sola vez, junto al texto parcial, y termina la
// secuencia. Si la secuencia termina sin error, Session.Completed distingue fin de stream de cancelacion.
func (c *Consumer) Snapshots(ctx context.Context, s *Session) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s == nil || s.handle == nil {
			yield("", ErrNilHandle)
			return
		}
		if !s.begin() {
			yield("", ErrAlreadyDrained)
			return
		}
		defer s.release()

		// Cerrar el handle desbloquea una lectura pendiente.
		stop := context.AfterFunc(ctx, s.Cancel)
		defer stop()

		log := c.logger.With(zap.String("stream_id", s.ID))
		buf := make([]byte, c.bufSize)
		total := 0
		for {
			if s.Cancelled() {
				log.Debug("stream cancelled", zap.Int("bytes", total))
				return
			}

			n, err := s.handle.Read(buf)
			if s.Cancelled() {
				log.Debug("stream cancelled", zap.Int("bytes", total))
				return
			}
			if n > 0 {
				total += n
				text, decErr := s.dec.decode(buf[:n], false)
				if decErr != nil {
					yield(s.Text(), fmt.Errorf("decode chunk: %w", decErr))
					return
				}
				if text != "" {
					if !yield(s.append(text), nil) {
						return
					}
				}
			}

			if errors.Is(err, io.EOF) {
				tail, decErr := s.dec.flush()
				if decErr != nil {
					yield(s.Text(), fmt.Errorf("decode tail: %w", decErr))
					return
				}
				if tail != "" {
					if !yield(s.append(tail), nil) {
						return
					}
				}
				s.complete()
				log.Debug("stream complete", zap.Int("bytes", total))
				return
			}
			if err != nil {
				log.Warn("stream read failed", zap.Int("bytes", total), zap.Error(err))
				yield(s.Text(), fmt.Errorf("read chunk: %w", err))
				return
			}
		}
	}
}

// Drain consume el handle invocando OnPartial por cada snapshot y despues OnComplete u OnError, nunca ambos.
// No se invoca ningun callback una vez aceptada la cancelacion.
func (c *Consumer) Drain(ctx context.Context, s *Session, cb Callbacks) {
	for text, err := range c.Snapshots(ctx, s) {
		if s.Cancelled() {
			return
		}
		if err != nil {
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}
		if cb.OnPartial != nil {
			cb.OnPartial(text)
		}
	}
	if s.Cancelled() || !s.Completed() {
		return
	}
	if cb.OnComplete != nil {
		cb.OnComplete(s.Text())
	}
}

// Collect drena el handle y devuelve el texto final.
func (c *Consumer) Collect(ctx context.Context, s *Session) (string, error) {
	var last string
	for text, err := range c.Snapshots(ctx, s) {
		if err != nil {
			return text, err
		}
		last = text
	}
	if !s.Completed() {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		return last, context.Canceled
	}
	return last, nil
}
