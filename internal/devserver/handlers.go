package devserver

import (
	"errors"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-client/internal/domain"
)

const maxTextBody = 1 << 20

// AuthHandler atiende login y refresh.
type AuthHandler struct {
	logger  *zap.Logger
	users   *UserDirectory
	tokens  *TokenService
	limiter LoginLimiter
}

func NewAuthHandler(logger *zap.Logger, users *UserDirectory, tokens *TokenService, limiter LoginLimiter) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{logger: logger, users: users, tokens: tokens, limiter: limiter}
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.limiter != nil && !h.limiter.Allow(req.Username) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}
	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	pair, err := h.tokens.IssuePair(user)
	if err != nil {
		h.logger.Error("issue tokens failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	h.logger.Info("login", zap.String("user_id", user.ID))
	c.JSON(http.StatusOK, pair)
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	pair, err := h.tokens.RefreshPair(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// ChatHandler atiende conversaciones y mensajes.
type ChatHandler struct {
	logger    *zap.Logger
	store     *Store
	responder Responder
}

func NewChatHandler(logger *zap.Logger, store *Store, responder Responder) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{logger: logger, store: store, responder: responder}
}

// ListChats maneja GET /chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.List(ownerOf(c)))
}

// CreateChat maneja POST /chats.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conv := h.store.Create(ownerOf(c), req.Title)
	c.JSON(http.StatusCreated, conv)
}

// RenameChat maneja PUT /chats/:id.
func (h *ChatHandler) RenameChat(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.store.Rename(ownerOf(c), c.Param("id"), req.Title); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteChat maneja DELETE /chats/:id.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	if err := h.store.Delete(ownerOf(c), c.Param("id")); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMessages maneja GET /chats/:id/messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	msgs, err := h.store.Messages(ownerOf(c), c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// PostMessage maneja POST /chats/:id/messages: guarda el mensaje y transmite la respuesta en texto plano.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
		Model   string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	owner, id := ownerOf(c), c.Param("id")
	if _, err := h.store.Append(owner, id, domain.AuthorUser, req.Message); err != nil {
		h.writeStoreError(c, err)
		return
	}
	history, err := h.store.Messages(owner, id)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}

	ctx := c.Request.Context()
	reply, ok := streamText(c, h.responder.Chat(ctx, history, req.Model))
	if !ok {
		h.logger.Info("reply aborted by client", zap.String("conversation_id", id), zap.Int("bytes", len(reply)))
		return
	}
	if _, err := h.store.Append(owner, id, domain.AuthorBot, reply); err != nil {
		// La conversacion pudo borrarse mientras se transmitia.
		h.logger.Warn("store reply failed", zap.String("conversation_id", id), zap.Error(err))
	}
}

func (h *ChatHandler) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, domain.ErrEmptyTitle):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty title"})
	default:
		h.logger.Error("store operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// InterviewHandler atiende los streams del modo entrevista.
type InterviewHandler struct {
	logger    *zap.Logger
	responder Responder
}

func NewInterviewHandler(logger *zap.Logger, responder Responder) *InterviewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterviewHandler{logger: logger, responder: responder}
}

// Question maneja POST /interview/question. El cuerpo es la descripcion del puesto en texto plano.
func (h *InterviewHandler) Question(c *gin.Context) {
	body, err := readTextBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	streamText(c, h.responder.InterviewQuestion(c.Request.Context(), body))
}

// Conduct maneja POST /interview/conduct.
func (h *InterviewHandler) Conduct(c *gin.Context) {
	var req struct {
		Transcript string `json:"interviewTranscript" binding:"required"`
		Question   string `json:"interviewQuestion"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	streamText(c, h.responder.InterviewTurn(c.Request.Context(), req.Transcript, req.Question))
}

// Feedback maneja POST /interview/feedback. El cuerpo es la transcripcion en texto plano.
func (h *InterviewHandler) Feedback(c *gin.Context) {
	body, err := readTextBody(c)
	if err != nil || strings.TrimSpace(body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	streamText(c, h.responder.InterviewFeedback(c.Request.Context(), body))
}

func readTextBody(c *gin.Context) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTextBody))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// streamText escribe cada fragmento y hace flush. Devuelve el texto enviado y si se completo.
func streamText(c *gin.Context, chunks iter.Seq[string]) (string, bool) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	var sent strings.Builder
	for chunk := range chunks {
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return sent.String(), false
		}
		c.Writer.Flush()
		sent.WriteString(chunk)
	}
	return sent.String(), c.Request.Context().Err() == nil
}

func ownerOf(c *gin.Context) string {
	claims, _ := GetAuthClaims(c)
	return claims.UserID
}
