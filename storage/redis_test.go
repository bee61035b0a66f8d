package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisStore(rdb, "test")
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)

	if err := s.Save(ctx, testRecord()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.AccessCredential != "a1" || rec.Organization == nil || rec.Organization.Name != "Acme Corp" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestRedisStoreLoadMissing(t *testing.T) {
	s := newRedisStore(t)
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRedisStoreClear(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)

	if err := s.Save(ctx, testRecord()); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err after clear = %v, want ErrNotFound", err)
	}

	// Clearing an absent key is fine.
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
}

func TestRedisStoreDefaultPrefix(t *testing.T) {
	s := NewRedisStore(nil, "")
	if got := s.key(); got != "costscope:session:v1" {
		t.Fatalf("key = %q", got)
	}
}
