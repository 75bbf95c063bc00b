package routing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ambulanceDispatch/internal/geo"
	"ambulanceDispatch/internal/logger"
)

type fakeProvider struct {
	calls  atomic.Int32
	routes []Route
	err    error
	delay  time.Duration
}

func (f *fakeProvider) RouteAlternatives(ctx context.Context, _, _ geo.Point) ([]Route, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.routes, f.err
}

var (
	aster  = geo.Point{Lat: 10.0575, Lon: 76.2652}
	amrita = geo.Point{Lat: 10.0326, Lon: 76.2997}
)

func TestAlternatives_FallsBackOnProviderError(t *testing.T) {
	s := NewService(&fakeProvider{err: errors.New("boom")}, logger.Discard())
	routes := s.Alternatives(context.Background(), aster, amrita)
	if len(routes) != 1 || !routes[0].Fallback {
		t.Fatalf("expected a single fallback route, got %+v", routes)
	}
	if len(routes[0].Polyline) != 2 || routes[0].Polyline[0] != aster || routes[0].Polyline[1] != amrita {
		t.Fatalf("fallback polyline should be the two endpoints, got %+v", routes[0].Polyline)
	}
	if routes[0].DistanceKm <= 0 || routes[0].ETAMinutes <= 0 {
		t.Fatalf("fallback should carry a distance and ETA estimate: %+v", routes[0])
	}
}

func TestAlternatives_NilProviderFallsBack(t *testing.T) {
	s := NewService(nil, logger.Discard())
	if routes := s.Alternatives(context.Background(), aster, amrita); len(routes) != 1 || !routes[0].Fallback {
		t.Fatalf("expected fallback route, got %+v", routes)
	}
}

func TestAlternatives_TruncatesAndLabels(t *testing.T) {
	p := &fakeProvider{routes: make([]Route, 6)}
	s := NewService(p, logger.Discard())
	routes := s.Alternatives(context.Background(), aster, amrita)
	if len(routes) != MaxAlternatives {
		t.Fatalf("got %d routes, want %d", len(routes), MaxAlternatives)
	}
	for i, r := range routes {
		if r.RouteID != i {
			t.Fatalf("route %d has id %d", i, r.RouteID)
		}
	}
	if routes[0].Label != "Fastest" || routes[1].Label != "Alternative 2" {
		t.Fatalf("unexpected labels: %q %q", routes[0].Label, routes[1].Label)
	}
}

func TestAlternatives_CollapsesConcurrentRequests(t *testing.T) {
	p := &fakeProvider{routes: []Route{{ETAMinutes: 12}}, delay: 50 * time.Millisecond}
	s := NewService(p, logger.Discard())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Alternatives(context.Background(), aster, amrita)
		}()
	}
	wg.Wait()
	if n := p.calls.Load(); n >= 8 {
		t.Fatalf("expected concurrent identical requests to share upstream calls, got %d calls", n)
	}
}

// blockingProvider holds every call until release is closed, failing early
// only if its own context ends.
type blockingProvider struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingProvider) RouteAlternatives(ctx context.Context, _, _ geo.Point) ([]Route, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-b.release:
		return []Route{{ETAMinutes: 9}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAlternatives_CancelledCallerDoesNotFailSharedWaiters(t *testing.T) {
	p := &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
	s := NewService(p, logger.Discard())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan []Route, 1)
	go func() { firstDone <- s.Alternatives(firstCtx, aster, amrita) }()
	<-p.started

	secondDone := make(chan []Route, 1)
	go func() { secondDone <- s.Alternatives(context.Background(), aster, amrita) }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case routes := <-firstDone:
		if len(routes) != 1 || !routes[0].Fallback {
			t.Fatalf("cancelled caller should get the direct line, got %+v", routes)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(p.release)
	select {
	case routes := <-secondDone:
		if len(routes) != 1 || routes[0].Fallback || routes[0].ETAMinutes != 9 {
			t.Fatalf("waiter should receive the provider's route, got %+v", routes)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter did not return")
	}
	if n := p.calls.Load(); n != 1 {
		t.Fatalf("provider calls=%d want 1", n)
	}
}
