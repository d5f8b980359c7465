package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"chat-client/internal/auth"
	"chat-client/internal/domain"
)

// StatusError describe una respuesta HTTP no exitosa.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Message)
}

// Unwrap expone domain.ErrUnauthorized para respuestas 401.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return domain.ErrUnauthorized
	}
	return nil
}

// Client implementa la frontera de transporte contra el backend de chat.
type Client struct {
	baseURL string
	http    *http.Client
	creds   *auth.Credentials
	logger  *zap.Logger
}

// NewHTTPClient construye el cliente por defecto. No fija http.Client.Timeout porque cortaria los streams;
// el limite aplica a la espera de cabeceras.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: tr}
}

// NewClient crea el cliente. creds puede ser nil para endpoints sin autenticacion.
func NewClient(baseURL string, creds *auth.Credentials, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		creds:   creds,
		logger:  logger,
	}
}

type sendMessageRequest struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SendMessage inicia el intercambio y devuelve el cuerpo de la respuesta como stream de bytes.
func (c *Client) SendMessage(ctx context.Context, conversationID, text, model string) (io.ReadCloser, error) {
	body, err := json.Marshal(sendMessageRequest{Message: text, Model: model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	path := "/chats/" + url.PathEscape(conversationID) + "/messages"
	return c.OpenStream(ctx, path, "application/json", bytes.NewReader(body))
}

// OpenStream hace un POST y devuelve el cuerpo sin leer. El llamador debe cerrarlo.
func (c *Client) OpenStream(ctx context.Context, path, contentType string, body io.Reader) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, c.statusError(req, resp)
	}
	c.logger.Debug("stream opened", zap.String("path", path), zap.Int("status", resp.StatusCode))
	return resp.Body, nil
}

// FetchMessages devuelve los mensajes persistidos de una conversacion, todos terminales.
func (c *Client) FetchMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var out []domain.Message
	if err := c.doJSON(ctx, http.MethodGet, "/chats/"+url.PathEscape(conversationID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Terminal = true
	}
	if out == nil {
		out = []domain.Message{}
	}
	return out, nil
}

// ListConversations devuelve las conversaciones del usuario sin mensajes.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var out []domain.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateConversation(ctx context.Context, title string) (domain.Conversation, error) {
	var out domain.Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/chats", titleRequest{Title: title}, &out); err != nil {
		return domain.Conversation{}, err
	}
	return out, nil
}

func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	return c.doJSON(ctx, http.MethodPut, "/chats/"+url.PathEscape(id), titleRequest{Title: title}, nil)
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/chats/"+url.PathEscape(id), nil, nil)
}

// Login obtiene un par de tokens y lo guarda en el holder de credenciales.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var pair auth.TokenPair
	if err := c.doJSONNoAuth(ctx, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password}, &pair); err != nil {
		return err
	}
	if c.creds == nil {
		return errors.New("credentials holder not configured")
	}
	c.creds.Set(pair)
	return nil
}

// Refresh implementa auth.Refresher.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	var pair auth.TokenPair
	if err := c.doJSONNoAuth(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &pair); err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newJSONRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	return c.roundTrip(req, out)
}

func (c *Client) doJSONNoAuth(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newJSONRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	return c.roundTrip(req, out)
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}
	return req, nil
}

// authorize adjunta el bearer; sin holder la peticion sale sin cabecera.
func (c *Client) authorize(req *http.Request) error {
	if c.creds == nil {
		return nil
	}
	token, err := c.creds.Bearer()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(req, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) statusError(req *http.Request, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			msg = payload.Error
		} else if payload.Message != "" {
			msg = payload.Message
		}
	}
	c.logger.Warn("transport error status",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.String("message", msg),
	)
	return &StatusError{Status: resp.StatusCode, Message: msg}
}
