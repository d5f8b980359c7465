package chat

import (
	"strings"

	"chat-client/internal/domain"
)

// SetReaction alterna la reaccion de un mensaje terminal del bot: repetir la misma la quita.
func (c *Controller) SetReaction(conversationID, messageID string, reaction domain.Reaction) error {
	c.mu.Lock()
	st, msg, err := c.terminalMessageLocked(conversationID, messageID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if msg.Author != domain.AuthorBot {
		c.mu.Unlock()
		return domain.ErrMessageNotEditable
	}
	if msg.Reaction == reaction {
		msg.Reaction = domain.ReactionNone
	} else {
		msg.Reaction = reaction
	}
	c.commit(st)
	return nil
}

// EditMessage reemplaza el contenido de un mensaje terminal manteniendo su posicion.
func (c *Controller) EditMessage(conversationID, messageID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ErrEmptyMessage
	}
	c.mu.Lock()
	st, msg, err := c.terminalMessageLocked(conversationID, messageID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	now := c.now()
	msg.Content = content
	msg.EditedAt = &now
	c.commit(st)
	return nil
}

// DeleteMessage quita un mensaje terminal sin reordenar el resto.
func (c *Controller) DeleteMessage(conversationID, messageID string) error {
	c.mu.Lock()
	st, _, err := c.terminalMessageLocked(conversationID, messageID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	idx := st.conv.IndexOf(messageID)
	st.conv.Messages = append(st.conv.Messages[:idx], st.conv.Messages[idx+1:]...)
	c.commit(st)
	return nil
}

// terminalMessageLocked localiza un mensaje editable. Requiere mu.
func (c *Controller) terminalMessageLocked(conversationID, messageID string) (*conversationState, *domain.Message, error) {
	st, ok := c.convs[conversationID]
	if !ok {
		return nil, nil, domain.ErrConversationNotFound
	}
	idx := st.conv.IndexOf(messageID)
	if idx < 0 {
		return nil, nil, domain.ErrMessageNotFound
	}
	msg := &st.conv.Messages[idx]
	if !msg.Terminal {
		return nil, nil, domain.ErrMessageNotEditable
	}
	return st, msg, nil
}
