package devserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"chat-client/internal/domain"
)

func TestEchoResponder_ChunksReassemble(t *testing.T) {
	r := NewEchoResponder(0)
	history := []domain.Message{
		{Author: domain.AuthorUser, Content: "first"},
		{Author: domain.AuthorBot, Content: "You said: first"},
		{Author: domain.AuthorUser, Content: "how are you"},
	}
	var chunks []string
	for chunk := range r.Chat(context.Background(), history, "gpt-test") {
		chunks = append(chunks, chunk)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %v", chunks)
	}
	if got := strings.Join(chunks, ""); got != "[gpt-test] You said: how are you" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestEchoResponder_StopsOnCancel(t *testing.T) {
	r := NewEchoResponder(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := 0
	for range r.InterviewQuestion(ctx, "go developer") {
		n++
		cancel()
	}
	if n != 1 {
		t.Fatalf("expected a single chunk before cancellation, got %d", n)
	}
}

func TestEchoResponder_InterviewEndsAfterMaxAnswers(t *testing.T) {
	r := &EchoResponder{MaxQuestions: 1}
	var sb strings.Builder
	for chunk := range r.InterviewTurn(context.Background(), "Candidate: hi", "intro") {
		sb.WriteString(chunk)
	}
	if !strings.HasSuffix(sb.String(), EndMarker) {
		t.Fatalf("expected end marker, got %q", sb.String())
	}
}
