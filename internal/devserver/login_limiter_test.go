package devserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestMemoryLoginLimiter_Window(t *testing.T) {
	l := NewMemoryLoginLimiter(time.Minute, 2).(*memoryLoginLimiter)
	now := time.Now().UTC()
	l.now = func() time.Time { return now }

	if !l.Allow("Ana") || !l.Allow(" ana ") {
		t.Fatalf("expected first two attempts allowed")
	}
	if l.Allow("ana") {
		t.Fatalf("expected third attempt denied")
	}
	if !l.Allow("bob") {
		t.Fatalf("expected other user allowed")
	}
	now = now.Add(2 * time.Minute)
	if !l.Allow("ana") {
		t.Fatalf("expected attempt allowed after window")
	}
	if l.Allow("  ") {
		t.Fatalf("expected empty key rejected")
	}
}

func TestRedisLoginLimiter_Allow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisLoginLimiter
		if !l.Allow("ana") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("allow within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := &redisLoginLimiter{client: mock, window: 2 * time.Minute, max: 3, prefix: "chat:login:rl:"}
		if !l.Allow(" Ana ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "chat:login:rl:ana" {
			t.Fatalf("unexpected key normalization, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected TTL seconds=120, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisLoginAllowScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny over max", func(t *testing.T) {
		l := &redisLoginLimiter{client: &mockRedisEvaler{result: 4}, window: time.Minute, max: 3, prefix: "p:"}
		if l.Allow("ana") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisLoginLimiter{client: &mockRedisEvaler{err: errors.New("redis down")}, window: time.Minute, max: 3, prefix: "p:"}
		if !l.Allow("ana") {
			t.Fatalf("expected fail-open on redis errors")
		}
	})
}
