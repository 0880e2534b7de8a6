package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedis(rdb, ""), mr
}

func TestRedisConformance(t *testing.T) {
	st, _ := newRedisStoreTest(t)
	conformance(t, st)
}

func TestRedisKeyPrefix(t *testing.T) {
	st, mr := newRedisStoreTest(t)
	ctx := context.Background()

	if err := st.Set(ctx, "token", "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, err := mr.Get("sk:token"); err != nil || v != "abc" {
		t.Fatalf("raw key sk:token = (%q, %v), want abc", v, err)
	}
}

func TestRedisCustomPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	st := NewRedis(rdb, "workhive")
	ctx := context.Background()
	if err := st.Set(ctx, "user", "{}"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := mr.Get("workhive:user"); err != nil {
		t.Fatalf("custom prefix not applied: %v", err)
	}
}

func TestRedisUnavailable(t *testing.T) {
	st, mr := newRedisStoreTest(t)
	mr.Close()

	_, _, err := st.Get(context.Background(), "token")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get against a dead backend = %v, want ErrUnavailable", err)
	}
	if err := st.Set(context.Background(), "token", "v"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Set against a dead backend = %v, want ErrUnavailable", err)
	}
}
