package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chat-client/internal/config"
	"chat-client/internal/devserver"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	users, err := devserver.NewUserDirectory(cfg.DevUsers, 0)
	if err != nil {
		logger.Fatal("dev users", zap.Error(err))
	}
	if users.Len() == 0 {
		logger.Warn("no DEV_USERS configured; logins will fail")
	}

	var (
		limiter    devserver.LoginLimiter
		tokenStore devserver.RefreshTokenStore
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using memory stores", zap.Error(err))
		} else {
			limiter = devserver.NewRedisLoginLimiter(redisClient, 10*time.Minute, 5)
			tokenStore = devserver.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}
	if limiter == nil {
		limiter = devserver.NewMemoryLoginLimiter(10*time.Minute, 5)
	}
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	tokens := devserver.NewTokenService(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	responder := devserver.NewEchoResponder(cfg.ReplyChunkDelay)
	router := devserver.NewRouter(logger, tokens,
		devserver.NewAuthHandler(logger, users, tokens, limiter),
		devserver.NewChatHandler(logger, devserver.NewStore(), responder),
		devserver.NewInterviewHandler(logger, responder),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
