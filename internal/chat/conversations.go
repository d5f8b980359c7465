package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chat-client/internal/domain"
)

// ListConversations trae la lista del backend y la combina con el estado local.
// Las conversaciones con turno activo se conservan aunque el backend ya no las liste.
func (c *Controller) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	remote, err := c.transport.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(remote))
	order := make([]string, 0, len(remote))
	for _, rc := range remote {
		if rc.ID == "" || seen[rc.ID] {
			continue
		}
		seen[rc.ID] = true
		order = append(order, rc.ID)
		if st, ok := c.convs[rc.ID]; ok {
			st.conv.Title = rc.Title
			continue
		}
		rc.Messages = nil
		rc.TurnState = domain.TurnIdle
		c.convs[rc.ID] = &conversationState{conv: rc}
	}
	for _, id := range c.order {
		if seen[id] {
			continue
		}
		st := c.convs[id]
		if st != nil && st.conv.TurnState != domain.TurnIdle {
			order = append(order, id)
			continue
		}
		delete(c.convs, id)
	}
	c.order = order
	if _, ok := c.convs[c.current]; !ok {
		c.current = ""
		if len(c.order) > 0 {
			c.current = c.order[0]
		}
	}
	return c.snapshotLocked(), nil
}

// CreateConversation crea una conversacion nueva y la selecciona.
func (c *Controller) CreateConversation(ctx context.Context, title string) (domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultConversationTitle
	}
	conv, err := c.transport.CreateConversation(ctx, title)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	if conv.Title == "" {
		conv.Title = title
	}
	conv.TurnState = domain.TurnIdle
	if conv.Messages == nil {
		conv.Messages = []domain.Message{}
	}

	c.mu.Lock()
	st, ok := c.convs[conv.ID]
	if !ok {
		st = &conversationState{conv: conv}
		c.convs[conv.ID] = st
		c.order = append(c.order, conv.ID)
	}
	c.current = conv.ID
	out := st.conv.Clone()
	c.commit(st)

	c.logger.Info("conversation created", zap.String("conversation_id", conv.ID))
	return out, nil
}

// OpenConversation selecciona la conversacion y carga sus mensajes del backend.
// Si tiene un turno activo no se recarga para no pisar el parcial.
func (c *Controller) OpenConversation(ctx context.Context, id string) (domain.Conversation, error) {
	c.mu.Lock()
	if st, ok := c.convs[id]; ok && st.conv.TurnState != domain.TurnIdle {
		c.current = id
		out := st.conv.Clone()
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	msgs, err := c.transport.FetchMessages(ctx, id)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("fetch messages: %w", err)
	}

	c.mu.Lock()
	st, ok := c.convs[id]
	if !ok {
		st = &conversationState{conv: domain.Conversation{ID: id, Title: DefaultConversationTitle, TurnState: domain.TurnIdle}}
		c.convs[id] = st
		c.order = append(c.order, id)
	}
	c.current = id
	if st.conv.TurnState != domain.TurnIdle {
		// Un envio empezo mientras cargabamos; el estado local manda.
		out := st.conv.Clone()
		c.mu.Unlock()
		return out, nil
	}
	st.conv.Messages = msgs
	out := st.conv.Clone()
	c.commit(st)
	return out, nil
}

// RenameConversation cambia el titulo en el backend y localmente.
func (c *Controller) RenameConversation(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.ErrEmptyTitle
	}
	c.mu.Lock()
	_, ok := c.convs[id]
	c.mu.Unlock()
	if !ok {
		return domain.ErrConversationNotFound
	}

	if err := c.transport.RenameConversation(ctx, id, title); err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}

	c.mu.Lock()
	st, ok := c.convs[id]
	if !ok {
		c.mu.Unlock()
		return domain.ErrConversationNotFound
	}
	st.conv.Title = title
	c.commit(st)
	return nil
}

// DeleteConversation borra en el backend; si habia un turno activo se cancela.
// La seleccion pasa a la primera conversacion restante.
func (c *Controller) DeleteConversation(ctx context.Context, id string) error {
	if err := c.transport.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	c.mu.Lock()
	st, ok := c.convs[id]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	var turn *Turn
	switch st.conv.TurnState {
	case domain.TurnStreaming:
		turn = c.abortLocked(st)
	case domain.TurnPending:
		if st.cancel != nil {
			st.cancel()
		}
	}
	delete(c.convs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.current == id {
		c.current = ""
		if len(c.order) > 0 {
			c.current = c.order[0]
		}
	}
	c.publishRemoved(id)

	if turn != nil {
		turn.finish(domain.Message{}, domain.ErrTurnCancelled)
	}
	c.logger.Info("conversation deleted", zap.String("conversation_id", id))
	return nil
}

// Select cambia la conversacion visible sin tocar su estado.
func (c *Controller) Select(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.convs[id]; !ok {
		return domain.ErrConversationNotFound
	}
	c.current = id
	return nil
}

// Current devuelve el id de la conversacion visible ("" si no hay).
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Conversation devuelve una copia de la conversacion.
func (c *Controller) Conversation(id string) (domain.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.convs[id]
	if !ok {
		return domain.Conversation{}, false
	}
	return st.conv.Clone(), true
}

// TurnState devuelve el estado del turno (idle si la conversacion no existe).
func (c *Controller) TurnState(id string) domain.TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.convs[id]; ok {
		return st.conv.TurnState
	}
	return domain.TurnIdle
}

// Conversations devuelve copias en el orden de la barra lateral.
func (c *Controller) Conversations() []domain.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() []domain.Conversation {
	out := make([]domain.Conversation, 0, len(c.order))
	for _, id := range c.order {
		if st, ok := c.convs[id]; ok {
			out = append(out, st.conv.Clone())
		}
	}
	return out
}
