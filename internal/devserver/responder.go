package devserver

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"chat-client/internal/domain"
)

// EndMarker indica en la respuesta del entrevistador que la entrevista termino.
const EndMarker = "!END!"

// Responder produce las respuestas del backend como secuencias de fragmentos de texto.
type Responder interface {
	Chat(ctx context.Context, history []domain.Message, model string) iter.Seq[string]
	InterviewQuestion(ctx context.Context, jobDescription string) iter.Seq[string]
	InterviewTurn(ctx context.Context, transcript, question string) iter.Seq[string]
	InterviewFeedback(ctx context.Context, transcript string) iter.Seq[string]
}

// EchoResponder responde repitiendo el ultimo mensaje, palabra por palabra.
type EchoResponder struct {
	Delay        time.Duration
	MaxQuestions int
}

func NewEchoResponder(delay time.Duration) *EchoResponder {
	return &EchoResponder{Delay: delay, MaxQuestions: 3}
}

func (r *EchoResponder) Chat(ctx context.Context, history []domain.Message, model string) iter.Seq[string] {
	last := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Author == domain.AuthorUser {
			last = history[i].Content
			break
		}
	}
	reply := "You said: " + last
	if model != "" {
		reply = fmt.Sprintf("[%s] %s", model, reply)
	}
	return r.words(ctx, reply)
}

func (r *EchoResponder) InterviewQuestion(ctx context.Context, jobDescription string) iter.Seq[string] {
	role := strings.TrimSpace(jobDescription)
	if role == "" {
		role = "this position"
	}
	return r.words(ctx, fmt.Sprintf("Tell me about a project that prepared you for %s.", role))
}

func (r *EchoResponder) InterviewTurn(ctx context.Context, transcript, question string) iter.Seq[string] {
	answers := strings.Count(transcript, "Candidate: ")
	if answers >= r.maxQuestions() {
		return r.words(ctx, "Thank you, that is all I wanted to ask. "+EndMarker)
	}
	return r.words(ctx, fmt.Sprintf("Thanks. Following up on %q, what was the hardest part and how did you solve it?", strings.TrimSpace(question)))
}

func (r *EchoResponder) InterviewFeedback(ctx context.Context, transcript string) iter.Seq[string] {
	answers := 0
	words := 0
	for _, block := range strings.Split(transcript, "\n\n") {
		if text, ok := strings.CutPrefix(block, "Candidate: "); ok {
			answers++
			words += len(strings.Fields(text))
		}
	}
	avg := 0
	if answers > 0 {
		avg = words / answers
	}
	return r.words(ctx, fmt.Sprintf("You answered %d questions with about %d words each. Add concrete numbers to your examples.", answers, avg))
}

func (r *EchoResponder) maxQuestions() int {
	if r.MaxQuestions <= 0 {
		return 3
	}
	return r.MaxQuestions
}

// words parte text conservando los espacios, asi la concatenacion reproduce el texto.
func (r *EchoResponder) words(ctx context.Context, text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for i, chunk := range strings.SplitAfter(text, " ") {
			if chunk == "" {
				continue
			}
			if i > 0 && r.Delay > 0 {
				t := time.NewTimer(r.Delay)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			if ctx.Err() != nil || !yield(chunk) {
				return
			}
		}
	}
}
