package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"audioconv/internal/logging"
	"audioconv/internal/queue"
	"audioconv/internal/workflow"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	mr, client := newRedis(t)
	first := workflow.NewRedisLock(client, "tick", time.Minute, logging.NewNop())
	second := workflow.NewRedisLock(client, "tick", time.Minute, logging.NewNop())

	release, ok, err := first.TryLock(context.Background())
	if err != nil || !ok {
		t.Fatalf("first TryLock: ok=%v err=%v", ok, err)
	}
	if _, ok, err := second.TryLock(context.Background()); err != nil || ok {
		t.Fatalf("second TryLock should fail quietly: ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL("tick"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("lock should carry the ttl, got %s", ttl)
	}

	release()
	if mr.Exists("tick") {
		t.Fatal("release should delete the key")
	}
	if _, ok, err := second.TryLock(context.Background()); err != nil || !ok {
		t.Fatalf("lock should be free after release: ok=%v err=%v", ok, err)
	}
}

func TestRedisLockReleaseKeepsForeignToken(t *testing.T) {
	mr, client := newRedis(t)
	lock := workflow.NewRedisLock(client, "tick", time.Minute, logging.NewNop())

	release, ok, err := lock.TryLock(context.Background())
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	if err := mr.Set("tick", "someone-else"); err != nil {
		t.Fatalf("miniredis set: %v", err)
	}
	release()

	value, err := mr.Get("tick")
	if err != nil || value != "someone-else" {
		t.Fatalf("foreign lock must survive release: %q %v", value, err)
	}
}

func TestRunOnceSkipsWhenTickLockHeld(t *testing.T) {
	h := newHarness(t)
	mr, client := newRedis(t)
	job := h.upload(t, "locked")
	mgr := h.manager(workflow.WithTickLock(workflow.NewRedisLock(client, "tick", time.Minute, logging.NewNop())))

	if err := mr.Set("tick", "other-daemon"); err != nil {
		t.Fatalf("miniredis set: %v", err)
	}
	result, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !result.LockHeld || result.Claimed != 0 {
		t.Fatalf("tick should be skipped: %+v", result)
	}
	if status := h.job(t, job.JobID).Status; status != queue.StatusPending {
		t.Fatalf("job must stay pending, got %s", status)
	}

	mr.Del("tick")
	result, err = mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Finished != 1 {
		t.Fatalf("unexpected tick result: %+v", result)
	}
	if mr.Exists("tick") {
		t.Fatal("tick lock should be released after the tick")
	}
}

func TestRunOnceFailsWhenRedisUnavailable(t *testing.T) {
	h := newHarness(t)
	mr, client := newRedis(t)
	mgr := h.manager(workflow.WithTickLock(workflow.NewRedisLock(client, "tick", time.Minute, logging.NewNop())))
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := mgr.RunOnce(ctx); err == nil {
		t.Fatal("expected an error when redis is down")
	}
}
