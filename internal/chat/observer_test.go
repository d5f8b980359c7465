package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-client/internal/domain"
)

// feed escribe chunks hasta que el handle se cierra.
func feed(w interface{ Write([]byte) (int, error) }) {
	for {
		if _, err := w.Write([]byte("ab")); err != nil {
			return
		}
	}
}

func TestObserverMayReadControllerWhileCancelRuns(t *testing.T) {
	ctrl, tr, rec, id := newTestController(t)

	var reads sync.WaitGroup
	reads.Add(1)
	var once sync.Once
	ctrl.AddObserver(ObserverFuncs{Changed: func(conv domain.Conversation) {
		time.Sleep(time.Millisecond)
		_ = ctrl.Current()
		_ = ctrl.TurnState(conv.ID)
		_, _ = ctrl.Conversation(conv.ID)
		if conv.TurnState == domain.TurnStreaming {
			once.Do(reads.Done)
		}
	}})

	turn, err := ctrl.SubmitUserMessage(context.Background(), id, "hello", SubmitOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	go feed(tr.writer(t, id))
	reads.Wait()
	time.Sleep(20 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- ctrl.CancelTurn(id) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected cancel to succeed, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("cancel blocked while an observer was reading the controller")
	}

	if _, err := waitTurn(t, turn); !errors.Is(err, domain.ErrTurnCancelled) {
		t.Fatalf("expected ErrTurnCancelled, got %v", err)
	}
	if ctrl.TurnState(id) != domain.TurnIdle {
		t.Fatalf("expected idle after cancel, got %q", ctrl.TurnState(id))
	}
	snaps := rec.all()
	last := snaps[len(snaps)-1]
	if last.TurnState != domain.TurnIdle || len(last.Messages) != 1 {
		t.Fatalf("expected last published snapshot idle with only the user message, got %+v", last)
	}
}

func TestObserverReadsDuringConcurrentStreams(t *testing.T) {
	ctrl, tr, rec, first := newTestController(t)
	conv, err := ctrl.CreateConversation(context.Background(), "second")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	second := conv.ID

	ctrl.AddObserver(ObserverFuncs{Changed: func(conv domain.Conversation) {
		_ = ctrl.Current()
		_ = ctrl.Conversations()
	}})

	var turns []*Turn
	for _, id := range []string{first, second} {
		turn, err := ctrl.SubmitUserMessage(context.Background(), id, "hello", SubmitOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		turns = append(turns, turn)
		go feed(tr.writer(t, id))
	}
	waitFor(t, func() bool {
		return len(rec.botPartials(first)) > 5 && len(rec.botPartials(second)) > 5
	})

	done := make(chan struct{})
	go func() {
		_ = ctrl.CancelTurn(first)
		_ = ctrl.CancelTurn(second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("cancel blocked while two conversations were publishing")
	}
	for _, turn := range turns {
		if _, err := waitTurn(t, turn); !errors.Is(err, domain.ErrTurnCancelled) {
			t.Fatalf("expected ErrTurnCancelled, got %v", err)
		}
	}

	// El orden de entrega se mantiene por conversacion.
	for _, id := range []string{first, second} {
		partials := rec.botPartials(id)
		for i := 1; i < len(partials); i++ {
			if !strings.HasPrefix(partials[i], partials[i-1]) {
				t.Fatalf("expected prefix-ordered partials for %s, got %q after %q", id, partials[i], partials[i-1])
			}
		}
	}
}
