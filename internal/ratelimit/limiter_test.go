package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestFixedWindowSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimit.json")
	l := New(path, 1, 200*time.Millisecond)
	key := "login:203.0.113.7"
	if !l.Allow(key).Allowed {
		t.Fatal("first attempt should pass")
	}
	if l.Allow(key).Allowed {
		t.Fatal("second attempt should be limited")
	}
	if err := l.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	l2 := New(path, 1, 200*time.Millisecond)
	res := l2.Allow(key)
	if res.Allowed {
		t.Fatal("limit lost across restart")
	}
	time.Sleep(res.RetryAfter(time.Now()) + 20*time.Millisecond)
	if !l2.Allow(key).Allowed {
		t.Fatal("expected allow after window reset")
	}
}

func TestRemainingAndReset(t *testing.T) {
	l := New("", 3, time.Minute)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for want := 2; want >= 0; want-- {
		res := l.Allow("k")
		if !res.Allowed || res.Remaining != want {
			t.Fatalf("want remaining %d, got %+v", want, res)
		}
	}
	res := l.Allow("k")
	if res.Allowed || !res.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("over limit: %+v", res)
	}
	if d := res.RetryAfter(now); d != time.Minute {
		t.Fatalf("retry after %s", d)
	}
	if !l.Allow("other").Allowed {
		t.Fatal("keys must be independent")
	}
	l.Reset("k")
	if !l.Allow("k").Allowed {
		t.Fatal("reset did not clear the key")
	}
}

func TestFlushDropsEndedWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rl.json")
	l := New(path, 5, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(2 * time.Minute)
	if err := l.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(New(path, 5, time.Minute).buckets); n != 0 {
		t.Fatalf("ended window persisted, %d buckets", n)
	}
}
