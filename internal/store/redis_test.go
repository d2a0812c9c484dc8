package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

type fakeRedis struct {
	data   map[string]string
	getErr error
	setErr error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisBackendMissing(t *testing.T) {
	b := &RedisBackend{rdb: newFakeRedis(), key: "curve"}
	_, err := b.Read(context.Background())
	if !errors.Is(err, ErrStoreMissing) {
		t.Fatalf("expected ErrStoreMissing, got %v", err)
	}
}

func TestRedisBackendMergeAndInit(t *testing.T) {
	fake := newFakeRedis()
	b := &RedisBackend{rdb: fake, key: "curve"}
	ctx := context.Background()

	if err := Init(ctx, b); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if fake.data["curve"] != "{}" {
		t.Fatalf("expected empty document, got %q", fake.data["curve"])
	}

	if _, err := Merge(ctx, b, models.Curve{"2.5": 0.3}); err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	got, err := Merge(ctx, b, models.Curve{"3.0": 0.6})
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	if got["2.5"] != 0.3 || got["3.0"] != 0.6 {
		t.Fatalf("unexpected curve: %v", got)
	}

	if err := b.Close(); err != nil || !fake.closed {
		t.Fatalf("expected client to be closed")
	}
}

func TestRedisBackendErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.data["curve"] = "[]"
	b := &RedisBackend{rdb: fake, key: "curve"}
	if _, err := b.Read(context.Background()); !errors.Is(err, ErrStoreMalformed) {
		t.Fatalf("expected ErrStoreMalformed, got %v", err)
	}

	boom := errors.New("connection refused")
	fake.getErr = boom
	if _, err := b.Read(context.Background()); !errors.Is(err, boom) || errors.Is(err, ErrStoreMissing) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}

	fake.setErr = boom
	if err := b.Write(context.Background(), models.Curve{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped set error, got %v", err)
	}
}
