package devserver

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-client/internal/domain"
)

type storedConversation struct {
	owner string
	conv  domain.Conversation
}

// Store guarda conversaciones en memoria por usuario.
type Store struct {
	mu    sync.RWMutex
	convs map[string]*storedConversation
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		convs: make(map[string]*storedConversation),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List devuelve las conversaciones del usuario sin mensajes, de la mas antigua a la mas nueva.
func (s *Store) List(owner string) []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Conversation, 0)
	for _, sc := range s.convs {
		if sc.owner != owner {
			continue
		}
		c := sc.conv
		c.Messages = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) Create(owner, title string) domain.Conversation {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New chat"
	}
	conv := domain.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  []domain.Message{},
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = &storedConversation{owner: owner, conv: conv}
	return conv
}

func (s *Store) Rename(owner, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.ErrEmptyTitle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.lookupLocked(owner, id)
	if err != nil {
		return err
	}
	sc.conv.Title = title
	return nil
}

func (s *Store) Delete(owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookupLocked(owner, id); err != nil {
		return err
	}
	delete(s.convs, id)
	return nil
}

// Messages devuelve una copia de los mensajes guardados.
func (s *Store) Messages(owner, id string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, err := s.lookupLocked(owner, id)
	if err != nil {
		return nil, err
	}
	return sc.conv.Clone().Messages, nil
}

// Append agrega un mensaje terminal a la conversacion.
func (s *Store) Append(owner, id string, author domain.Author, content string) (domain.Message, error) {
	msg := domain.Message{
		ID:        uuid.NewString(),
		Content:   content,
		Author:    author,
		CreatedAt: s.now(),
		Terminal:  true,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.lookupLocked(owner, id)
	if err != nil {
		return domain.Message{}, err
	}
	sc.conv.Messages = append(sc.conv.Messages, msg)
	return msg, nil
}

func (s *Store) lookupLocked(owner, id string) (*storedConversation, error) {
	sc, ok := s.convs[id]
	if !ok || sc.owner != owner {
		return nil, domain.ErrConversationNotFound
	}
	return sc, nil
}
