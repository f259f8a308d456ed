package redis

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-orders/pkg/config"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
)

func TestSetNXClaimsOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "k", "1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first claim to succeed, got ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "2", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second claim to fail, got ok=%v err=%v", ok, err)
	}
	value, err := client.Get(ctx, "k")
	if err != nil || value != "1" {
		t.Fatalf("expected original value, got %q (%v)", value, err)
	}

	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "k"); err != Nil {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestDeleteIfValueChecksOwner(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	mock.data["sf:lock:cron"] = "owner-a"

	removed, err := client.DeleteIfValue(ctx, "sf:lock:cron", "owner-b")
	if err != nil || removed {
		t.Fatalf("foreign owner removed the key: removed=%v err=%v", removed, err)
	}
	removed, err = client.DeleteIfValue(ctx, "sf:lock:cron", "owner-a")
	if err != nil || !removed {
		t.Fatalf("owner could not remove the key: removed=%v err=%v", removed, err)
	}
	if _, ok := mock.data["sf:lock:cron"]; ok {
		t.Fatal("key still present")
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error for uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close should be a no-op, got %v", err)
	}
}

func TestSlowCommandHookPassesResultThrough(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "redis-test", Output: &buf})
	hook := slowCommandHook{logg: logg, threshold: time.Nanosecond}
	process := hook.ProcessHook(func(context.Context, redis.Cmder) error {
		time.Sleep(time.Millisecond)
		return nil
	})

	if err := process(context.Background(), redis.NewStatusCmd(context.Background(), "ping")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !strings.Contains(buf.String(), "redis.slow_command") {
		t.Fatalf("expected slow command log, got %q", buf.String())
	}

	buf.Reset()
	hook.threshold = time.Hour
	missing := hook.ProcessHook(func(context.Context, redis.Cmder) error { return redis.Nil })
	if err := missing(context.Background(), redis.NewStringCmd(context.Background(), "get", "k")); err != redis.Nil {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("missing keys must not be logged, got %q", buf.String())
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "sf:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.LockKey("cron"); got != "sf:lock:cron" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.IdempotencyKey("", "id"); got != "sf:idempotency:id" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2, PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options %+v", opts)
	}
	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6380/3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 3 {
		t.Fatalf("unexpected parsed options %+v", opts)
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return m.compareAndDelete(ctx, keys, args)
}

func (m *mockCmdable) EvalSha(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return m.compareAndDelete(ctx, keys, args)
}

func (m *mockCmdable) EvalRO(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return m.compareAndDelete(ctx, keys, args)
}

func (m *mockCmdable) EvalShaRO(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return m.compareAndDelete(ctx, keys, args)
}

func (m *mockCmdable) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (m *mockCmdable) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

// compareAndDelete mirrors the lock release script.
func (m *mockCmdable) compareAndDelete(ctx context.Context, keys []string, args []any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if len(keys) != 1 || len(args) != 1 {
		cmd.SetErr(fmt.Errorf("unexpected eval arity"))
		return cmd
	}
	if v, ok := m.data[keys[0]]; ok && v == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		cmd.SetVal(int64(1))
		return cmd
	}
	cmd.SetVal(int64(0))
	return cmd
}
