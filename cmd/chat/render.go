package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"chat-client/internal/domain"
	"chat-client/internal/interview"
)

// renderer es el observador de la terminal: imprime solo la extension nueva de cada snapshot.
type renderer struct {
	mu      sync.Mutex
	w       io.Writer
	current func() string

	// printed guarda cuanto del mensaje en curso ya se imprimio, por id de mensaje.
	printed   map[string]int
	streaming map[string]string

	interviewShown string

	you, bot, info, warn, dim *color.Color
}

func newRenderer(w io.Writer, current func() string) *renderer {
	return &renderer{
		w:         w,
		current:   current,
		printed:   make(map[string]int),
		streaming: make(map[string]string),
		you:       color.New(color.FgGreen, color.Bold),
		bot:       color.New(color.FgCyan, color.Bold),
		info:      color.New(color.FgYellow),
		warn:      color.New(color.FgRed),
		dim:       color.New(color.Faint),
	}
}

// ConversationChanged implementa chat.Observer.
func (r *renderer) ConversationChanged(conv domain.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conv.ID != r.current() {
		if msgID, ok := r.streaming[conv.ID]; ok && conv.TurnState == domain.TurnIdle {
			delete(r.streaming, conv.ID)
			delete(r.printed, msgID)
			r.info.Fprintf(r.w, "\n[%s] reply finished in background\n", conv.Title)
		}
		return
	}

	msgID, active := r.streaming[conv.ID]
	if n := len(conv.Messages); n > 0 && conv.Messages[n-1].Author == domain.AuthorBot {
		last := conv.Messages[n-1]
		if last.IsPartial() || active && last.ID == msgID {
			r.printDelta(conv.ID, last)
			return
		}
	}
	if active && conv.TurnState == domain.TurnIdle {
		// El parcial desaparecio: turno cancelado.
		delete(r.streaming, conv.ID)
		delete(r.printed, msgID)
		r.warn.Fprintln(r.w, " [cancelled]")
	}
}

// ConversationRemoved implementa chat.Observer.
func (r *renderer) ConversationRemoved(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msgID, ok := r.streaming[id]; ok {
		delete(r.printed, msgID)
		delete(r.streaming, id)
	}
}

func (r *renderer) printDelta(convID string, msg domain.Message) {
	if _, ok := r.streaming[convID]; !ok {
		r.streaming[convID] = msg.ID
		r.bot.Fprint(r.w, "Assistant: ")
	}
	done := r.printed[msg.ID]
	if len(msg.Content) > done {
		fmt.Fprint(r.w, msg.Content[done:])
		r.printed[msg.ID] = len(msg.Content)
	}
	if msg.Terminal {
		if msg.Failed {
			r.warn.Fprint(r.w, " [interrupted]")
		}
		fmt.Fprintln(r.w)
		delete(r.printed, msg.ID)
		delete(r.streaming, convID)
	}
}

// InterviewChanged imprime el avance de la intervencion del entrevistador.
func (r *renderer) InterviewChanged(snap interview.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.Mode != interview.ModeConduct || len(snap.Transcript) == 0 {
		r.interviewShown = ""
		return
	}
	last := snap.Transcript[len(snap.Transcript)-1]
	if last.Candidate {
		r.interviewShown = ""
		return
	}
	switch {
	case r.interviewShown == "":
		r.bot.Fprint(r.w, "Interviewer: ")
	case !strings.HasPrefix(last.Content, r.interviewShown):
		// La devolucion final reemplaza la ultima respuesta.
		fmt.Fprintln(r.w)
		r.bot.Fprint(r.w, "Feedback: ")
		r.interviewShown = ""
	}
	fmt.Fprint(r.w, last.Content[len(r.interviewShown):])
	r.interviewShown = last.Content
	if !snap.Busy {
		fmt.Fprintln(r.w)
		r.interviewShown = ""
	}
}

// Print escribe texto sin formato respetando el lock de la terminal.
func (r *renderer) Print(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.w, text)
}

func (r *renderer) Prompt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.you.Fprint(r.w, "You: ")
}

func (r *renderer) Info(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.Fprintf(r.w, format+"\n", args...)
}

func (r *renderer) Error(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warn.Fprintf(r.w, format+"\n", args...)
}

// Transcript imprime los mensajes de una conversacion recien abierta.
func (r *renderer) Transcript(conv domain.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dim.Fprintf(r.w, "--- %s ---\n", conv.Title)
	for i, m := range conv.Messages {
		who := r.you.Sprint("You")
		if m.Author == domain.AuthorBot {
			who = r.bot.Sprint("Assistant")
		}
		reaction := ""
		if m.Reaction != domain.ReactionNone {
			reaction = r.dim.Sprintf(" (%s)", m.Reaction)
		}
		fmt.Fprintf(r.w, "%d. %s: %s%s\n", i+1, who, m.Content, reaction)
	}
}
