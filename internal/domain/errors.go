package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTurnInProgress       = errors.New("turn in progress")
	ErrSendFailed           = errors.New("send failed")
	ErrStreamFailed         = errors.New("stream failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrEmptyMessage         = errors.New("empty message")
	ErrNoStreamingTurn      = errors.New("no streaming turn")
	ErrTurnCancelled        = errors.New("turn cancelled")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrMessageNotEditable   = errors.New("message not editable")
	ErrEmptyTitle           = errors.New("empty title")
)

// SendFailedError indica que no se pudo obtener el stream (antes del primer byte).
type SendFailedError struct {
	Reason error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Reason)
}

// Unwrap permite errors.Is tanto contra ErrSendFailed como contra la causa (p.ej. ErrUnauthorized).
func (e *SendFailedError) Unwrap() []error {
	return []error{ErrSendFailed, e.Reason}
}

// StreamFailedError indica un fallo despues de comenzar el stream; Partial conserva lo recibido.
type StreamFailedError struct {
	Reason  error
	Partial string
}

func (e *StreamFailedError) Error() string {
	return fmt.Sprintf("stream failed after %d bytes: %v", len(e.Partial), e.Reason)
}

func (e *StreamFailedError) Unwrap() []error {
	return []error{ErrStreamFailed, e.Reason}
}

// IsUnauthorized es un atajo para distinguir fallos de credenciales.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
