package domain

import "time"

// Author identifica quien escribio un mensaje.
type Author string

const (
	AuthorUser Author = "user"
	AuthorBot  Author = "bot"
)

// Reaction es la valoracion opcional de un mensaje del bot.
type Reaction string

const (
	ReactionNone    Reaction = ""
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// Message es la unica forma de mensaje; los campos opcionales cubren reacciones y ediciones.
type Message struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Author    Author     `json:"author"`
	CreatedAt time.Time  `json:"created_at"`
	Terminal  bool       `json:"terminal"`
	Failed    bool       `json:"failed,omitempty"`
	Reaction  Reaction   `json:"reaction,omitempty"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

// IsPartial indica si el mensaje sigue recibiendo texto del stream.
func (m Message) IsPartial() bool {
	return !m.Terminal
}
