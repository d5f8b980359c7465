package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chat-client/internal/domain"
	"chat-client/internal/stream"
)

// EndMarker aparece en la respuesta del entrevistador cuando no hay mas preguntas.
const EndMarker = "!END!"

// Mode es la etapa del modo entrevista.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeQuestion Mode = "question"
	ModeConduct  Mode = "conduct"
)

var (
	ErrWrongMode         = errors.New("interview: wrong mode")
	ErrInterviewFinished = errors.New("interview: finished")
	ErrEmptyQuestion     = errors.New("interview: empty question")
)

// Entry es una intervencion de la transcripcion.
type Entry struct {
	Candidate bool
	Content   string
	At        time.Time
}

// Snapshot es una copia del estado para la vista.
type Snapshot struct {
	Mode       Mode
	Question   string
	Transcript []Entry
	Busy       bool
	Finished   bool
}

// Session maneja el flujo de una entrevista: borrador de pregunta, conversacion y devolucion final.
type Session struct {
	client   *Client
	consumer *stream.Consumer
	logger   *zap.Logger
	onChange func(Snapshot)
	now      func() time.Time

	mu         sync.Mutex
	mode       Mode
	question   string
	transcript []Entry
	busy       bool
	finished   bool
}

// NewSession crea la sesion en modo deshabilitado. onChange puede ser nil.
func NewSession(client *Client, consumer *stream.Consumer, onChange func(Snapshot), logger *zap.Logger) *Session {
	if consumer == nil {
		consumer = stream.NewConsumer(0, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		client:   client,
		consumer: consumer,
		logger:   logger,
		onChange: onChange,
		now:      func() time.Time { return time.Now().UTC() },
		mode:     ModeDisabled,
	}
}

// Start entra en modo pregunta y descarta cualquier entrevista anterior.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return domain.ErrTurnInProgress
	}
	s.mode = ModeQuestion
	s.question = ""
	s.transcript = nil
	s.finished = false
	s.publishLocked()
	return nil
}

// Stop vuelve al modo deshabilitado.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return domain.ErrTurnInProgress
	}
	s.mode = ModeDisabled
	s.publishLocked()
	return nil
}

// GenerateQuestion transmite el borrador de pregunta para el puesto. onPartial recibe el texto acumulado.
func (s *Session) GenerateQuestion(ctx context.Context, jobDescription string, onPartial func(string)) (string, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return "", domain.ErrEmptyMessage
	}
	if err := s.acquire(ModeQuestion); err != nil {
		return "", err
	}
	defer s.releaseBusy()

	handle, err := s.client.Question(ctx, jobDescription)
	if err != nil {
		return "", &domain.SendFailedError{Reason: err}
	}
	text, err := s.collect(ctx, handle, onPartial)
	if err != nil {
		return text, err
	}
	s.mu.Lock()
	s.question = text
	s.mu.Unlock()
	return text, nil
}

// Begin fija la pregunta (el borrador, posiblemente editado) y pasa a conducir la entrevista.
func (s *Session) Begin(question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return domain.ErrTurnInProgress
	}
	if s.mode != ModeQuestion {
		s.mu.Unlock()
		return ErrWrongMode
	}
	s.question = question
	s.mode = ModeConduct
	s.transcript = nil
	s.finished = false
	s.publishLocked()
	return nil
}

// Answer agrega la respuesta del candidato y transmite la del entrevistador.
// Si la respuesta trae EndMarker, se pide la devolucion final, que ocupa el lugar de esa respuesta.
// Devuelve el texto final del entrevistador y si la entrevista termino.
func (s *Session) Answer(ctx context.Context, text string) (string, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, domain.ErrEmptyMessage
	}
	s.mu.Lock()
	if s.mode != ModeConduct {
		s.mu.Unlock()
		return "", false, ErrWrongMode
	}
	if s.finished {
		s.mu.Unlock()
		return "", false, ErrInterviewFinished
	}
	if s.busy {
		s.mu.Unlock()
		return "", false, domain.ErrTurnInProgress
	}
	s.busy = true
	s.transcript = append(s.transcript, Entry{Candidate: true, Content: text, At: s.now()})
	base := len(s.transcript)
	transcript := TranscriptText(s.transcript)
	question := s.question
	s.publishLocked()
	defer s.releaseBusy()

	handle, err := s.client.Conduct(ctx, transcript, question)
	if err != nil {
		// Sin respuesta del entrevistador la entrada se descarta; reintentar no la duplica.
		s.dropCandidateEntry(base)
		return "", false, &domain.SendFailedError{Reason: err}
	}
	reply, err := s.collect(ctx, handle, func(partial string) {
		if !strings.Contains(partial, EndMarker) {
			s.setInterviewerEntry(base, partial)
		}
	})
	if err != nil {
		return reply, false, err
	}
	if !strings.Contains(reply, EndMarker) {
		s.setInterviewerEntry(base, reply)
		return reply, false, nil
	}

	s.logger.Debug("interview finished, requesting feedback", zap.Int("entries", base))
	handle, err = s.client.Feedback(ctx, transcript)
	if err != nil {
		return "", false, &domain.SendFailedError{Reason: err}
	}
	feedback, err := s.collect(ctx, handle, func(partial string) {
		s.setInterviewerEntry(base, partial)
	})
	if err != nil {
		return feedback, false, err
	}
	s.mu.Lock()
	s.setEntryLocked(base, feedback)
	s.finished = true
	s.publishLocked()
	return feedback, true, nil
}

// Snapshot devuelve una copia del estado actual.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// TranscriptText arma la transcripcion que espera el backend.
func TranscriptText(entries []Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		who := "Interviewer"
		if e.Candidate {
			who = "Candidate"
		}
		parts = append(parts, who+": "+e.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Session) acquire(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != mode {
		return ErrWrongMode
	}
	if s.busy {
		return domain.ErrTurnInProgress
	}
	s.busy = true
	return nil
}

func (s *Session) releaseBusy() {
	s.mu.Lock()
	s.busy = false
	s.publishLocked()
}

func (s *Session) collect(ctx context.Context, handle io.ReadCloser, onPartial func(string)) (string, error) {
	session := stream.NewSession(handle)
	var last string
	for text, err := range s.consumer.Snapshots(ctx, session) {
		if err != nil {
			return text, &domain.StreamFailedError{Reason: err, Partial: text}
		}
		last = text
		if onPartial != nil {
			onPartial(text)
		}
	}
	if !session.Completed() {
		cause := context.Cause(ctx)
		if cause == nil {
			cause = context.Canceled
		}
		return last, fmt.Errorf("interview stream: %w", cause)
	}
	return last, nil
}

func (s *Session) dropCandidateEntry(base int) {
	s.mu.Lock()
	if len(s.transcript) == base && s.transcript[base-1].Candidate {
		s.transcript = s.transcript[:base-1]
	}
	s.publishLocked()
}

// setInterviewerEntry reemplaza (o agrega) la intervencion del entrevistador que sigue al indice base.
func (s *Session) setInterviewerEntry(base int, content string) {
	s.mu.Lock()
	s.setEntryLocked(base, content)
	s.publishLocked()
}

func (s *Session) setEntryLocked(base int, content string) {
	entry := Entry{Content: content, At: s.now()}
	if len(s.transcript) > base {
		s.transcript[base] = entry
		return
	}
	s.transcript = append(s.transcript, entry)
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Mode:       s.mode,
		Question:   s.question,
		Transcript: append([]Entry(nil), s.transcript...),
		Busy:       s.busy,
		Finished:   s.finished,
	}
}

// publishLocked libera mu y notifica la copia.
func (s *Session) publishLocked() {
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(snap)
	}
}
