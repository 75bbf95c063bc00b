// Package routing turns an origin/destination pair into up to four route
// alternatives. Upstream failures never reach callers: they degrade to a
// single straight-line route.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"ambulanceDispatch/internal/geo"
)

// MaxAlternatives is the most routes ever returned for one request.
const MaxAlternatives = 4

// fallbackSpeedKmh is the assumed average speed of the direct-line estimate.
const fallbackSpeedKmh = 40.0

// upstreamTimeout bounds a shared provider call, which runs detached from the
// first caller's context so its cancellation cannot fail the other waiters.
const upstreamTimeout = 10 * time.Second

// ErrUpstreamUnavailable means the routing provider failed, timed out or is not configured.
var ErrUpstreamUnavailable = errors.New("upstream routing unavailable")

// Route is one drivable alternative. ETAMinutes is the raw provider estimate;
// priority adjustment happens at display time.
type Route struct {
	RouteID          int         `json:"route_id"`
	Label            string      `json:"label"`
	Polyline         []geo.Point `json:"polyline"`
	ETAMinutes       float64     `json:"eta_minutes"`
	DistanceKm       float64     `json:"distance_km"`
	TurnInstructions []string    `json:"turn_instructions,omitempty"`
	Fallback         bool        `json:"fallback,omitempty"`
}

// Provider fetches alternatives from an external engine, fastest first.
type Provider interface {
	RouteAlternatives(ctx context.Context, origin, destination geo.Point) ([]Route, error)
}

// Service wraps a Provider with request collapsing and the direct-line fallback.
type Service struct {
	provider Provider
	group    singleflight.Group
	log      zerolog.Logger
}

// NewService returns a Service. A nil provider always falls back.
func NewService(p Provider, log zerolog.Logger) *Service {
	return &Service{provider: p, log: log.With().Str("component", "routing").Logger()}
}

// Alternatives returns between one and MaxAlternatives routes. Concurrent calls
// for the same endpoints share one upstream request.
func (s *Service) Alternatives(ctx context.Context, origin, destination geo.Point) []Route {
	routes, err := s.fetch(ctx, origin, destination)
	if err != nil {
		s.log.Warn().Err(err).
			Float64("origin_lat", origin.Lat).Float64("origin_lon", origin.Lon).
			Float64("dest_lat", destination.Lat).Float64("dest_lon", destination.Lon).
			Msg("routing degraded to direct line")
		return []Route{DirectRoute(origin, destination)}
	}
	return routes
}

func (s *Service) fetch(ctx context.Context, origin, destination geo.Point) ([]Route, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no provider configured: %w", ErrUpstreamUnavailable)
	}
	key := fmt.Sprintf("%.6f,%.6f:%.6f,%.6f", origin.Lat, origin.Lon, destination.Lat, destination.Lon)
	ch := s.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), upstreamTimeout)
		defer cancel()
		return s.provider.RouteAlternatives(callCtx, origin, destination)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
	}
	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	routes, _ := v.([]Route)
	if len(routes) == 0 {
		return nil, fmt.Errorf("provider returned no routes: %w", ErrUpstreamUnavailable)
	}
	return normalize(routes), nil
}

// normalize copies routes so shared singleflight results are never mutated,
// truncates to MaxAlternatives and numbers them in order.
func normalize(in []Route) []Route {
	if len(in) > MaxAlternatives {
		in = in[:MaxAlternatives]
	}
	out := make([]Route, len(in))
	for i, r := range in {
		r.RouteID = i
		if r.Label == "" {
			r.Label = label(i)
		}
		out[i] = r
	}
	return out
}

func label(i int) string {
	if i == 0 {
		return "Fastest"
	}
	return fmt.Sprintf("Alternative %d", i+1)
}

// DirectRoute is the straight line between two points with an ETA at a nominal
// urban speed.
func DirectRoute(origin, destination geo.Point) Route {
	km := geo.HaversineKm(origin, destination)
	return Route{
		RouteID:    0,
		Label:      "Direct",
		Polyline:   []geo.Point{origin, destination},
		ETAMinutes: km / fallbackSpeedKmh * 60,
		DistanceKm: km,
		Fallback:   true,
	}
}
