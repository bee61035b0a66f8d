package notify

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeNavigator struct {
	mu       sync.Mutex
	location string
	forced   []string
}

func (f *fakeNavigator) Location() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location
}

func (f *fakeNavigator) ForceNavigate(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.location = path
	f.forced = append(f.forced, path)
}

func (f *fakeNavigator) forcedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forced)
}

func TestNotifyExpiredFiresOncePerEpisode(t *testing.T) {
	n := New(Config{LoginPath: "/login"}, nil)
	n.Arm()

	var messages atomic.Int64
	var redirects atomic.Int64
	redirected := make(chan struct{}, 64)
	n.RegisterMessageListener(func(string) { messages.Add(1) })
	n.RegisterRedirectListener(func(string) {
		redirects.Add(1)
		redirected <- struct{}{}
	})

	const callers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(callers)
	winners := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, won := n.NotifyExpired("expired")
			winners <- won
		}()
	}
	close(start)
	wg.Wait()
	close(winners)

	wonCount := 0
	for won := range winners {
		if won {
			wonCount++
		}
	}
	if wonCount != 1 {
		t.Fatalf("expected exactly one winner, got %d", wonCount)
	}
	if got := messages.Load(); got != 1 {
		t.Fatalf("message listener fired %d times, want 1", got)
	}

	select {
	case <-redirected:
	case <-time.After(2 * time.Second):
		t.Fatal("redirect listener never fired")
	}
	if got := redirects.Load(); got != 1 {
		t.Fatalf("redirect listener fired %d times, want 1", got)
	}
}

func TestNotifyExpiredWithoutListenersIsSafe(t *testing.T) {
	n := New(Config{LoginPath: "/login"}, nil)
	n.Arm()

	id, won := n.NotifyExpired("expired")
	if id == "" || !won {
		t.Fatalf("id=%q won=%v", id, won)
	}

	// Same episode: silently absorbed.
	id2, won2 := n.NotifyExpired("expired")
	if id2 != id || won2 {
		t.Fatalf("second call id=%q won=%v", id2, won2)
	}
}

func TestArmStartsNewEpisode(t *testing.T) {
	n := New(Config{LoginPath: "/login"}, nil)

	var messages atomic.Int64
	n.RegisterMessageListener(func(string) { messages.Add(1) })

	first := n.Arm()
	n.NotifyExpired("expired")

	second := n.Arm()
	if second == first {
		t.Fatal("re-arm must mint a new episode ID")
	}
	_, won := n.NotifyExpired("expired again")
	if !won {
		t.Fatal("new episode must notify again")
	}
	if got := messages.Load(); got != 2 {
		t.Fatalf("message listener fired %d times, want 2", got)
	}
}

func TestLazyEpisodeWhenNeverArmed(t *testing.T) {
	n := New(Config{LoginPath: "/login"}, nil)

	// Expiry discovered before any login in this process (restored session).
	id, won := n.NotifyExpired("expired")
	if id == "" || !won {
		t.Fatalf("id=%q won=%v", id, won)
	}
	if _, won := n.NotifyExpired("expired"); won {
		t.Fatal("lazy episode must still be exactly-once")
	}
}

func TestFallbackNavigationWhenRedirectIgnored(t *testing.T) {
	nav := &fakeNavigator{location: "/dashboard"}
	n := New(Config{LoginPath: "/login", VerifyDelay: 10 * time.Millisecond}, nav)
	n.Arm()

	// Redirect listener registered but does not navigate.
	n.RegisterRedirectListener(func(string) {})
	n.NotifyExpired("expired")

	deadline := time.After(2 * time.Second)
	for nav.forcedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a forced navigation")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if nav.Location() != "/login" {
		t.Fatalf("location = %q, want /login", nav.Location())
	}
}

func TestFallbackSkippedWhenListenerNavigated(t *testing.T) {
	nav := &fakeNavigator{location: "/dashboard"}
	n := New(Config{LoginPath: "/login", VerifyDelay: 10 * time.Millisecond}, nav)
	n.Arm()

	n.RegisterRedirectListener(func(path string) {
		nav.mu.Lock()
		nav.location = path
		nav.mu.Unlock()
	})
	n.NotifyExpired("expired")

	time.Sleep(100 * time.Millisecond)
	if nav.forcedCount() != 0 {
		t.Fatal("no forced navigation expected when the listener handled it")
	}
}

func TestClearListeners(t *testing.T) {
	n := New(Config{LoginPath: "/login"}, nil)
	n.Arm()

	var messages atomic.Int64
	n.RegisterMessageListener(func(string) { messages.Add(1) })
	n.ClearMessageListener()
	n.ClearRedirectListener()

	n.NotifyExpired("expired")
	if messages.Load() != 0 {
		t.Fatal("cleared listener must not fire")
	}
}

func TestDefaultLoginPath(t *testing.T) {
	n := New(Config{}, nil)
	n.Arm()

	got := make(chan string, 1)
	n.RegisterRedirectListener(func(path string) { got <- path })
	n.NotifyExpired("expired")

	select {
	case path := <-got:
		if path != "/login" {
			t.Fatalf("path = %q, want /login", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("redirect listener never fired")
	}
}
