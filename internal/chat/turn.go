package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"chat-client/internal/domain"
)

// Turn representa un intercambio mensaje de usuario -> respuesta del bot.
type Turn struct {
	ID             string
	ConversationID string

	done chan struct{}
	once sync.Once
	msg  domain.Message
	err  error
}

func newTurn(conversationID string) *Turn {
	return &Turn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		done:           make(chan struct{}),
	}
}

// Done se cierra cuando el turno termina (completo, fallido o cancelado).
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Result devuelve el mensaje final del bot y el error del turno. Solo es valido despues de Done.
func (t *Turn) Result() (domain.Message, error) {
	select {
	case <-t.done:
		return t.msg, t.err
	default:
		return domain.Message{}, nil
	}
}

// Wait bloquea hasta que el turno termina o ctx se cancela.
func (t *Turn) Wait(ctx context.Context) (domain.Message, error) {
	select {
	case <-t.done:
		return t.msg, t.err
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

func (t *Turn) finish(msg domain.Message, err error) {
	t.once.Do(func() {
		t.msg = msg
		t.err = err
		close(t.done)
	})
}
