package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb)
}

func TestRedisStore_OpenResolveClose(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	if _, err := s.Open(ctx, testSession(30, "/tmp/a", time.Minute), false); err != nil {
		t.Fatalf("open: %v", err)
	}

	got, err := s.Resolve(ctx, 30)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Transcription != "hello world" || got.ArtifactPath != "/tmp/a" {
		t.Fatalf("unexpected session: %+v", got)
	}

	closed, err := s.Close(ctx, 30)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.ArtifactPath != "/tmp/a" {
		t.Fatalf("close returned wrong session: %+v", closed)
	}
	if _, err := s.Resolve(ctx, 30); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after close, got %v", err)
	}
}

func TestRedisStore_RejectAndReplace(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	if _, err := s.Open(ctx, testSession(31, "/tmp/a", time.Minute), false); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Open(ctx, testSession(31, "/tmp/b", time.Minute), false); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	prev, err := s.Open(ctx, testSession(31, "/tmp/c", time.Minute), true)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if prev == nil || prev.ArtifactPath != "/tmp/a" {
		t.Fatalf("expected replaced session returned, got %+v", prev)
	}
}

func TestRedisStore_ReapExpired(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	if _, err := s.Open(ctx, testSession(32, "/tmp/old", -time.Minute), false); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Open(ctx, testSession(33, "/tmp/fresh", time.Hour), false); err != nil {
		t.Fatalf("open: %v", err)
	}

	reaped, err := s.ReapExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(reaped) != 1 || reaped[0].ArtifactPath != "/tmp/old" {
		t.Fatalf("expected only the old session reaped, got %+v", reaped)
	}
	if _, err := s.Resolve(ctx, 33); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
	if _, err := s.Resolve(ctx, 32); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reaped session should be gone, got %v", err)
	}
}

func TestRedisStore_ReapSkipsSessionRenewedAfterScan(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	// a live session whose index score lags behind, as if a new upload
	// replaced the expired one between the reaper's scan and its close
	if _, err := s.Open(ctx, testSession(34, "/tmp/live", time.Hour), false); err != nil {
		t.Fatalf("open: %v", err)
	}
	stale := time.Now().Add(-time.Minute)
	if err := s.rdb.ZAdd(ctx, expiryIndexKey, redis.Z{
		Score:  float64(stale.Unix()),
		Member: int64(34),
	}).Err(); err != nil {
		t.Fatalf("backdate index: %v", err)
	}

	reaped, err := s.ReapExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(reaped) != 0 {
		t.Fatalf("live session must not be reaped, got %+v", reaped)
	}
	if _, err := s.Resolve(ctx, 34); err != nil {
		t.Fatalf("live session should still resolve: %v", err)
	}

	// the stale score was healed, so the next sweep skips the scan hit
	score, err := s.rdb.ZScore(ctx, expiryIndexKey, "34").Result()
	if err != nil {
		t.Fatalf("zscore: %v", err)
	}
	if int64(score) <= stale.Unix() {
		t.Fatalf("expected index score healed past %d, got %d", stale.Unix(), int64(score))
	}
}

func TestRedisStore_LockSerializes(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	unlock, err := s.Lock(ctx, 35)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := s.Lock(ctx, 35)
		if err != nil {
			t.Errorf("second lock: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatalf("second lock acquired while first still held")
	case <-time.After(100 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatalf("second lock never acquired after release")
	}
}
