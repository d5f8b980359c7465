package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-client/internal/domain"
	"chat-client/internal/stream"
)

const DefaultConversationTitle = "New chat"

// SubmitOptions son los parametros opcionales de un envio.
type SubmitOptions struct {
	Model string
}

// conversationState es todo lo que el controlador guarda por id de conversacion.
type conversationState struct {
	conv    domain.Conversation
	turn    *Turn
	session *stream.Session
	botID   string
	cancel  context.CancelFunc
}

func (s *conversationState) clearTurn() {
	s.conv.TurnState = domain.TurnIdle
	s.turn = nil
	s.session = nil
	s.botID = ""
	s.cancel = nil
}

// Controller coordina los turnos de cada conversacion y es el unico que muta sus mensajes.
type Controller struct {
	transport    Transport
	consumer     *stream.Consumer
	logger       *zap.Logger
	defaultModel string
	now          func() time.Time

	mu      sync.Mutex
	convs   map[string]*conversationState
	order   []string
	current string

	// Los eventos se encolan bajo mu en orden de mutacion y se entregan sin ningun lock tomado.
	observers   []Observer
	queue       []event
	queued      uint64
	delivered   uint64
	dispatching bool
	flushed     *sync.Cond
}

// event es una notificacion pendiente para los observadores.
type event struct {
	conv    domain.Conversation
	removed string
}

// NewController crea un controlador sin conversaciones cargadas.
func NewController(transport Transport, consumer *stream.Consumer, defaultModel string, logger *zap.Logger) *Controller {
	if consumer == nil {
		consumer = stream.NewConsumer(0, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		transport:    transport,
		consumer:     consumer,
		logger:       logger,
		defaultModel: defaultModel,
		now:          func() time.Time { return time.Now().UTC() },
		convs:        make(map[string]*conversationState),
	}
	c.flushed = sync.NewCond(&c.mu)
	return c
}

// AddObserver registra un observador. Debe llamarse antes de empezar a operar.
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// SubmitUserMessage agrega el mensaje del usuario, pide el stream y arranca el turno.
// Bloquea hasta obtener el handle (o fallar el envio); la respuesta sigue llegando en segundo plano.
func (c *Controller) SubmitUserMessage(ctx context.Context, conversationID, text string, opts SubmitOptions) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}

	c.mu.Lock()
	st, ok := c.convs[conversationID]
	if !ok {
		c.mu.Unlock()
		return nil, domain.ErrConversationNotFound
	}
	if st.conv.TurnState != domain.TurnIdle {
		c.mu.Unlock()
		c.logger.Debug("submit rejected", zap.String("conversation_id", conversationID), zap.String("state", string(st.conv.TurnState)))
		return nil, domain.ErrTurnInProgress
	}

	st.conv.Messages = append(st.conv.Messages, domain.Message{
		ID:        uuid.NewString(),
		Content:   text,
		Author:    domain.AuthorUser,
		CreatedAt: c.now(),
		Terminal:  true,
	})
	st.conv.TurnState = domain.TurnPending
	turn := newTurn(conversationID)
	// El turno sobrevive a la llamada; ctx solo limita la fase de envio.
	turnCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	st.turn = turn
	st.cancel = cancel
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	c.commit(st)

	log := c.logger.With(zap.String("conversation_id", conversationID), zap.String("turn_id", turn.ID))
	log.Debug("turn pending", zap.String("model", model))

	stop := context.AfterFunc(ctx, cancel)
	handle, err := c.transport.SendMessage(turnCtx, conversationID, text, model)
	if !stop() {
		if handle != nil {
			_ = handle.Close()
			handle = nil
		}
		if err == nil {
			err = ctx.Err()
		}
	}
	if err == nil && handle == nil {
		err = stream.ErrNilHandle
	}
	if err != nil {
		cancel()
		sendErr := &domain.SendFailedError{Reason: err}
		c.mu.Lock()
		if st, ok := c.activeTurn(conversationID, turn); ok {
			st.clearTurn()
			c.commit(st)
		} else {
			c.mu.Unlock()
		}
		turn.finish(domain.Message{}, sendErr)
		if domain.IsUnauthorized(err) {
			log.Warn("send unauthorized", zap.Error(err))
		} else {
			log.Warn("send failed", zap.Error(err))
		}
		return nil, sendErr
	}

	c.mu.Lock()
	st, ok = c.activeTurn(conversationID, turn)
	if !ok {
		// La conversacion se borro o el turno se cancelo durante el envio.
		c.mu.Unlock()
		_ = handle.Close()
		cancel()
		turn.finish(domain.Message{}, domain.ErrTurnCancelled)
		return nil, domain.ErrTurnCancelled
	}
	session := stream.NewSession(handle)
	bot := domain.Message{
		ID:        uuid.NewString(),
		Author:    domain.AuthorBot,
		CreatedAt: c.now(),
	}
	st.conv.Messages = append(st.conv.Messages, bot)
	st.conv.TurnState = domain.TurnStreaming
	st.session = session
	st.botID = bot.ID
	c.commit(st)

	log.Debug("turn streaming", zap.String("stream_id", session.ID))
	go c.drive(turnCtx, cancel, conversationID, turn, session, log)
	return turn, nil
}

func (c *Controller) drive(ctx context.Context, cancel context.CancelFunc, conversationID string, turn *Turn, session *stream.Session, log *zap.Logger) {
	defer cancel()
	c.consumer.Drain(ctx, session, stream.Callbacks{
		OnPartial: func(text string) {
			c.applyPartial(conversationID, turn, text)
		},
		OnComplete: func(text string) {
			c.finalize(conversationID, turn, text, nil)
			log.Debug("turn complete", zap.Int("bytes", len(text)))
		},
		OnError: func(err error) {
			c.finalize(conversationID, turn, session.Text(), err)
			log.Warn("turn stream failed", zap.Error(err))
		},
	})
}

func (c *Controller) applyPartial(conversationID string, turn *Turn, text string) {
	c.mu.Lock()
	st, ok := c.activeTurn(conversationID, turn)
	if !ok || st.conv.TurnState != domain.TurnStreaming {
		c.mu.Unlock()
		return
	}
	idx := st.conv.IndexOf(st.botID)
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	st.conv.Messages[idx].Content = text
	c.commit(st)
}

// finalize cierra el turno. Con streamErr != nil aplica la politica de conservar el parcial marcado como fallido.
func (c *Controller) finalize(conversationID string, turn *Turn, text string, streamErr error) {
	c.mu.Lock()
	st, ok := c.activeTurn(conversationID, turn)
	if !ok || st.conv.TurnState != domain.TurnStreaming {
		c.mu.Unlock()
		return
	}
	var final domain.Message
	if idx := st.conv.IndexOf(st.botID); idx >= 0 {
		msg := &st.conv.Messages[idx]
		msg.Content = text
		msg.Terminal = true
		msg.Failed = streamErr != nil
		final = *msg
	}
	st.clearTurn()
	c.commit(st)

	if streamErr != nil {
		turn.finish(final, &domain.StreamFailedError{Reason: streamErr, Partial: text})
		return
	}
	turn.finish(final, nil)
}

// CancelTurn cancela el turno en streaming y descarta el mensaje parcial del bot.
func (c *Controller) CancelTurn(conversationID string) error {
	c.mu.Lock()
	st, ok := c.convs[conversationID]
	if !ok {
		c.mu.Unlock()
		return domain.ErrConversationNotFound
	}
	if st.conv.TurnState != domain.TurnStreaming {
		c.mu.Unlock()
		return domain.ErrNoStreamingTurn
	}
	turn := c.abortLocked(st)
	c.commit(st)

	turn.finish(domain.Message{}, domain.ErrTurnCancelled)
	c.logger.Debug("turn cancelled", zap.String("conversation_id", conversationID), zap.String("turn_id", turn.ID))
	return nil
}

// abortLocked libera la sesion, quita el parcial y deja la conversacion en idle. Requiere mu.
func (c *Controller) abortLocked(st *conversationState) *Turn {
	turn := st.turn
	if st.session != nil {
		st.session.Cancel()
	}
	if st.cancel != nil {
		st.cancel()
	}
	if idx := st.conv.IndexOf(st.botID); idx >= 0 && st.botID != "" {
		st.conv.Messages = append(st.conv.Messages[:idx], st.conv.Messages[idx+1:]...)
	}
	st.clearTurn()
	return turn
}

// activeTurn devuelve el estado si turn sigue siendo el turno vigente de la conversacion. Requiere mu.
func (c *Controller) activeTurn(conversationID string, turn *Turn) (*conversationState, bool) {
	st, ok := c.convs[conversationID]
	if !ok || st.turn != turn {
		return nil, false
	}
	return st, true
}

// commit publica una copia de la conversacion y libera mu. Requiere mu tomado.
func (c *Controller) commit(st *conversationState) {
	c.publishLocked(event{conv: st.conv.Clone()})
}

func (c *Controller) publishRemoved(id string) {
	c.publishLocked(event{removed: id})
}

// publishLocked encola ev, libera mu y vuelve cuando ev ya fue entregado.
// Si otra goroutine esta entregando, espera a que llegue a ev; si no, entrega ella misma.
func (c *Controller) publishLocked(ev event) {
	c.queue = append(c.queue, ev)
	c.queued++
	mine := c.queued
	for c.delivered < mine {
		if c.dispatching {
			c.flushed.Wait()
			continue
		}
		c.dispatchLocked()
	}
	c.mu.Unlock()
}

// dispatchLocked vacia la cola llamando a los observadores sin mu. Requiere mu y lo devuelve tomado.
func (c *Controller) dispatchLocked() {
	c.dispatching = true
	for len(c.queue) > 0 {
		batch := c.queue
		c.queue = nil
		observers := c.observers
		c.mu.Unlock()
		for _, ev := range batch {
			for _, o := range observers {
				if ev.removed != "" {
					o.ConversationRemoved(ev.removed)
				} else {
					o.ConversationChanged(ev.conv)
				}
			}
		}
		c.mu.Lock()
		c.delivered += uint64(len(batch))
		c.flushed.Broadcast()
	}
	c.dispatching = false
}

// Close cancela todos los turnos activos.
func (c *Controller) Close() {
	c.mu.Lock()
	var turns []*Turn
	for _, st := range c.convs {
		switch st.conv.TurnState {
		case domain.TurnStreaming:
			turns = append(turns, c.abortLocked(st))
		case domain.TurnPending:
			if st.cancel != nil {
				st.cancel()
			}
		}
	}
	c.mu.Unlock()
	for _, t := range turns {
		t.finish(domain.Message{}, domain.ErrTurnCancelled)
	}
}
