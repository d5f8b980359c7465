package domain

import "time"

// TurnState es el estado del turno en curso de una conversacion.
type TurnState string

const (
	TurnIdle      TurnState = "idle"
	TurnPending   TurnState = "pending"
	TurnStreaming TurnState = "streaming"
)

// Conversation agrupa mensajes en orden de insercion.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages,omitempty"`
	TurnState TurnState `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone devuelve una copia profunda apta para entregar a observadores.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
		for i := range out.Messages {
			if c.Messages[i].EditedAt != nil {
				t := *c.Messages[i].EditedAt
				out.Messages[i].EditedAt = &t
			}
		}
	}
	return out
}

// IndexOf devuelve la posicion del mensaje con el id dado o -1.
func (c Conversation) IndexOf(messageID string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// PartialCount cuenta mensajes no terminales; nunca deberia superar 1.
func (c Conversation) PartialCount() int {
	n := 0
	for _, m := range c.Messages {
		if !m.Terminal {
			n++
		}
	}
	return n
}
