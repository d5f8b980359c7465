package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chat-client/internal/auth"
	"chat-client/internal/chat"
	"chat-client/internal/config"
	"chat-client/internal/interview"
	"chat-client/internal/stream"
	"chat-client/internal/transport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	creds := auth.NewCredentials(nil)
	if cfg.APIToken != "" || cfg.APIRefreshToken != "" {
		creds.Set(auth.TokenPair{AccessToken: cfg.APIToken, RefreshToken: cfg.APIRefreshToken})
	}
	httpClient := transport.NewHTTPClient(cfg.HTTPTimeout)
	api := transport.NewClient(cfg.APIHost, creds, httpClient, logger)
	creds.SetRefresher(api)
	interviewAPI := transport.NewClient(cfg.InterviewBaseURL(), creds, httpClient, logger)

	consumer := stream.NewConsumer(cfg.StreamReadBuffer, logger)
	ctrl := chat.NewController(api, consumer, cfg.ChatModel, logger)
	defer ctrl.Close()

	out := newRenderer(os.Stdout, ctrl.Current)
	ctrl.AddObserver(out)
	interviewSession := interview.NewSession(interview.NewClient(interviewAPI), consumer, out.InterviewChanged, logger)

	r := &repl{
		in:        bufio.NewScanner(os.Stdin),
		out:       out,
		ctrl:      ctrl,
		api:       api,
		creds:     creds,
		interview: interviewSession,
		model:     cfg.ChatModel,
		logger:    logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C cancela el turno en curso; sin turno activo termina el programa.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigs {
			if sig == os.Interrupt && r.cancelActive() {
				continue
			}
			out.Info("Shutting down...")
			cancel()
			ctrl.Close()
			os.Exit(0)
		}
	}()

	r.run(ctx)
}

// newLogger escribe a stderr para no mezclar logs con la conversacion.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.WarnLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
