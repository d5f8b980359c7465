package chat

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chat-client/internal/domain"
)

// countingHandle cuenta los cierres del lado lector del pipe.
type countingHandle struct {
	*io.PipeReader
	closes atomic.Int32
}

func (h *countingHandle) Close() error {
	h.closes.Add(1)
	return h.PipeReader.Close()
}

type sentCall struct {
	conversationID string
	text           string
	model          string
}

type fakeTransport struct {
	mu       sync.Mutex
	nextID   int
	sendErr  error
	sendHook func(ctx context.Context, conversationID string)
	writers  map[string]*io.PipeWriter
	handles  map[string]*countingHandle
	sent     []sentCall
	messages map[string][]domain.Message
	convs    []domain.Conversation
	renamed  map[string]string
	deleted  []string
	opErr    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		writers:  make(map[string]*io.PipeWriter),
		handles:  make(map[string]*countingHandle),
		messages: make(map[string][]domain.Message),
		renamed:  make(map[string]string),
	}
}

func (f *fakeTransport) SendMessage(ctx context.Context, conversationID, text, model string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentCall{conversationID: conversationID, text: text, model: model})
	hook := f.sendHook
	err := f.sendErr
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, conversationID)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	pr, pw := io.Pipe()
	h := &countingHandle{PipeReader: pr}
	f.mu.Lock()
	f.writers[conversationID] = pw
	f.handles[conversationID] = h
	f.mu.Unlock()
	return h, nil
}

func (f *fakeTransport) writer(t *testing.T, conversationID string) *io.PipeWriter {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.writers[conversationID]
	if !ok {
		t.Fatalf("no stream opened for %s", conversationID)
	}
	return w
}

func (f *fakeTransport) handle(conversationID string) *countingHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[conversationID]
}

func (f *fakeTransport) FetchMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return nil, f.opErr
	}
	out := append([]domain.Message{}, f.messages[conversationID]...)
	for i := range out {
		out[i].Terminal = true
	}
	return out, nil
}

func (f *fakeTransport) ListConversations(_ context.Context) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return nil, f.opErr
	}
	return append([]domain.Conversation{}, f.convs...), nil
}

func (f *fakeTransport) CreateConversation(_ context.Context, title string) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return domain.Conversation{}, f.opErr
	}
	f.nextID++
	conv := domain.Conversation{ID: fmt.Sprintf("c%d", f.nextID), Title: title, CreatedAt: time.Now().UTC()}
	f.convs = append(f.convs, conv)
	return conv, nil
}

func (f *fakeTransport) RenameConversation(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.renamed[id] = title
	return nil
}

func (f *fakeTransport) DeleteConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.deleted = append(f.deleted, id)
	for i, c := range f.convs {
		if c.ID == id {
			f.convs = append(f.convs[:i], f.convs[i+1:]...)
			break
		}
	}
	return nil
}

// snapshotRecorder guarda todo lo publicado a observadores.
type snapshotRecorder struct {
	mu      sync.Mutex
	snaps   []domain.Conversation
	removed []string
}

func (r *snapshotRecorder) ConversationChanged(conv domain.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, conv)
}

func (r *snapshotRecorder) ConversationRemoved(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

// botPartials devuelve el contenido de cada snapshot con un parcial no vacio del bot.
func (r *snapshotRecorder) botPartials(conversationID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.snaps {
		if s.ID != conversationID || len(s.Messages) == 0 {
			continue
		}
		last := s.Messages[len(s.Messages)-1]
		if last.Author == domain.AuthorBot && !last.Terminal && last.Content != "" {
			out = append(out, last.Content)
		}
	}
	return out
}

func (r *snapshotRecorder) all() []domain.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Conversation{}, r.snaps...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func waitTurn(t *testing.T, turn *Turn) (domain.Message, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := turn.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatalf("turn did not finish: %v", ctx.Err())
	}
	return msg, err
}
