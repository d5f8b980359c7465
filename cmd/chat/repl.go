package main

import (
	"bufio"
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"chat-client/internal/auth"
	"chat-client/internal/chat"
	"chat-client/internal/domain"
	"chat-client/internal/interview"
	"chat-client/internal/transport"
)

const helpText = `Commands:
  /new [title]      start a conversation
  /list             list conversations
  /open <n>         open conversation n from /list
  /rename <title>   rename the current conversation
  /delete           delete the current conversation
  /cancel           cancel the reply being streamed
  /model <name>     change the model for next messages
  /like <n>         toggle like on message n
  /dislike <n>      toggle dislike on message n
  /interview        practice an interview (/interview stop to leave)
  /login <u> <p>    log in
  /exit             quit`

type repl struct {
	in        *bufio.Scanner
	out       *renderer
	ctrl      *chat.Controller
	api       *transport.Client
	creds     *auth.Credentials
	interview *interview.Session
	model     string
	logger    *zap.Logger

	listed []domain.Conversation
}

func (r *repl) run(ctx context.Context) {
	r.out.Info("Chat client. Type /help for commands.")
	if _, err := r.ctrl.ListConversations(ctx); err != nil {
		r.report(err)
	}
	for {
		r.out.Prompt()
		if !r.in.Scan() {
			return
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return
			}
			continue
		}
		if snap := r.interview.Snapshot(); snap.Mode != interview.ModeDisabled {
			r.interviewInput(ctx, snap, line)
			continue
		}
		r.send(ctx, line)
	}
}

// cancelActive cancela el turno en streaming de la conversacion visible. Devuelve false si no habia.
func (r *repl) cancelActive() bool {
	id := r.ctrl.Current()
	if id == "" || r.ctrl.TurnState(id) != domain.TurnStreaming {
		return false
	}
	return r.ctrl.CancelTurn(id) == nil
}

func (r *repl) send(ctx context.Context, text string) {
	r.refreshIfNeeded(ctx)
	id := r.ctrl.Current()
	if id == "" {
		conv, err := r.ctrl.CreateConversation(ctx, "")
		if err != nil {
			r.report(err)
			return
		}
		id = conv.ID
	}
	turn, err := r.ctrl.SubmitUserMessage(ctx, id, text, chat.SubmitOptions{Model: r.model})
	if err != nil {
		r.report(err)
		return
	}
	<-turn.Done()
	if _, err := turn.Result(); err != nil && !errors.Is(err, domain.ErrTurnCancelled) {
		r.report(err)
	}
}

func (r *repl) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/exit", "/quit":
		return true
	case "/help":
		r.out.Info(helpText)
	case "/new":
		conv, err := r.ctrl.CreateConversation(ctx, arg)
		if err != nil {
			r.report(err)
			return false
		}
		r.out.Info("Created %q", conv.Title)
	case "/list":
		r.list(ctx)
	case "/open":
		r.open(ctx, arg)
	case "/rename":
		if err := r.ctrl.RenameConversation(ctx, r.ctrl.Current(), arg); err != nil {
			r.report(err)
		}
	case "/delete":
		if err := r.ctrl.DeleteConversation(ctx, r.ctrl.Current()); err != nil {
			r.report(err)
			return false
		}
		r.out.Info("Deleted.")
	case "/cancel":
		if err := r.ctrl.CancelTurn(r.ctrl.Current()); err != nil {
			r.report(err)
		}
	case "/model":
		if arg == "" {
			r.out.Info("Model: %s", r.model)
			return false
		}
		r.model = arg
		r.out.Info("Model set to %s", arg)
	case "/like":
		r.react(arg, domain.ReactionLike)
	case "/dislike":
		r.react(arg, domain.ReactionDislike)
	case "/interview":
		r.toggleInterview(arg)
	case "/login":
		user, pass, _ := strings.Cut(arg, " ")
		if err := r.api.Login(ctx, user, strings.TrimSpace(pass)); err != nil {
			r.report(err)
			return false
		}
		r.out.Info("Logged in as %s.", user)
		if _, err := r.ctrl.ListConversations(ctx); err != nil {
			r.report(err)
		}
	default:
		r.out.Error("Unknown command %s. Type /help.", name)
	}
	return false
}

func (r *repl) list(ctx context.Context) {
	r.refreshIfNeeded(ctx)
	convs, err := r.ctrl.ListConversations(ctx)
	if err != nil {
		r.report(err)
		return
	}
	r.listed = convs
	if len(convs) == 0 {
		r.out.Info("No conversations yet. Type a message or /new.")
		return
	}
	current := r.ctrl.Current()
	for i, c := range convs {
		marker := " "
		if c.ID == current {
			marker = "*"
		}
		r.out.Info("%s[%d] %s", marker, i+1, c.Title)
	}
}

func (r *repl) open(ctx context.Context, arg string) {
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 1 || idx > len(r.listed) {
		r.out.Error("Invalid selection; run /list first.")
		return
	}
	conv, err := r.ctrl.OpenConversation(ctx, r.listed[idx-1].ID)
	if err != nil {
		r.report(err)
		return
	}
	r.out.Transcript(conv)
}

func (r *repl) react(arg string, reaction domain.Reaction) {
	conv, ok := r.ctrl.Conversation(r.ctrl.Current())
	idx, err := strconv.Atoi(arg)
	if !ok || err != nil || idx < 1 || idx > len(conv.Messages) {
		r.out.Error("Invalid message number.")
		return
	}
	if err := r.ctrl.SetReaction(conv.ID, conv.Messages[idx-1].ID, reaction); err != nil {
		r.report(err)
	}
}

func (r *repl) toggleInterview(arg string) {
	if arg == "stop" {
		if err := r.interview.Stop(); err != nil {
			r.report(err)
			return
		}
		r.out.Info("Interview mode off.")
		return
	}
	if err := r.interview.Start(); err != nil {
		r.report(err)
		return
	}
	r.out.Info("Interview mode. Paste the job description to get a question.")
}

func (r *repl) interviewInput(ctx context.Context, snap interview.Snapshot, line string) {
	r.refreshIfNeeded(ctx)
	switch snap.Mode {
	case interview.ModeQuestion:
		if snap.Question != "" && strings.EqualFold(line, "ok") {
			if err := r.interview.Begin(snap.Question); err != nil {
				r.report(err)
				return
			}
			r.out.Info("Interview started. Greet the interviewer.")
			return
		}
		if snap.Question != "" && strings.HasPrefix(line, "q:") {
			if err := r.interview.Begin(strings.TrimPrefix(line, "q:")); err != nil {
				r.report(err)
				return
			}
			r.out.Info("Interview started. Greet the interviewer.")
			return
		}
		shown := 0
		question, err := r.interview.GenerateQuestion(ctx, line, func(text string) {
			r.out.Print(text[shown:])
			shown = len(text)
		})
		r.out.Print("\n")
		if err != nil {
			r.report(err)
			return
		}
		if question != "" {
			r.out.Info("Type ok to use this question, or q:<your question> to edit it.")
		}
	case interview.ModeConduct:
		_, finished, err := r.interview.Answer(ctx, line)
		if err != nil {
			r.report(err)
			return
		}
		if finished {
			r.out.Info("Interview finished. /interview to start again.")
		}
	}
}

func (r *repl) refreshIfNeeded(ctx context.Context) {
	if !r.creds.NeedsRefresh() {
		return
	}
	if err := r.creds.Refresh(ctx); err != nil {
		r.logger.Warn("credential refresh failed", zap.Error(err))
	}
}

func (r *repl) report(err error) {
	var sf *domain.StreamFailedError
	switch {
	case domain.IsUnauthorized(err):
		r.out.Error("Not authorized. Use /login <user> <password>.")
	case errors.Is(err, domain.ErrTurnInProgress):
		r.out.Error("Wait for the current reply to finish (or /cancel).")
	case errors.As(err, &sf):
		r.out.Error("Reply interrupted: %v", sf.Reason)
	case errors.Is(err, domain.ErrSendFailed):
		r.out.Error("Message not sent: %v", err)
	case errors.Is(err, domain.ErrConversationNotFound):
		r.out.Error("No conversation selected.")
	default:
		r.out.Error("Error: %v", err)
	}
}
