package auth

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCronSchedulerRunsAndCancels(t *testing.T) {
	s := NewCronScheduler(zerolog.Nop())
	defer s.Stop()

	var runs int32
	fired := make(chan struct{}, 8)
	cancel := s.Every(time.Second, func() {
		atomic.AddInt32(&runs, 1)
		fired <- struct{}{}
	})
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never ran")
	}
	cancel()
	cancel()
	n := atomic.LoadInt32(&runs)
	time.Sleep(1500 * time.Millisecond)
	if got := atomic.LoadInt32(&runs); got != n {
		t.Fatalf("job ran %d more times after cancel", got-n)
	}
}

func TestCronSchedulerSkipsOverlap(t *testing.T) {
	s := NewCronScheduler(zerolog.Nop())
	defer s.Stop()

	var running, overlaps int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	cancel := s.Every(time.Second, func() {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		atomic.AddInt32(&running, -1)
	})
	defer cancel()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never ran")
	}
	time.Sleep(2200 * time.Millisecond)
	close(release)
	if atomic.LoadInt32(&overlaps) != 0 {
		t.Fatalf("job overlapped itself")
	}
}
