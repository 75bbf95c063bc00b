package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ambulanceDispatch/internal/geo"
)

// TomTomClient calls the TomTom Calculate Route API.
type TomTomClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewTomTomClient returns a client. An empty baseURL uses the public endpoint.
func NewTomTomClient(apiKey, baseURL string, timeout time.Duration) *TomTomClient {
	if baseURL == "" {
		baseURL = "https://api.tomtom.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TomTomClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type calculateRouteResponse struct {
	Routes []struct {
		Summary struct {
			LengthInMeters      float64 `json:"lengthInMeters"`
			TravelTimeInSeconds float64 `json:"travelTimeInSeconds"`
		} `json:"summary"`
		Legs []struct {
			Points []struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"points"`
		} `json:"legs"`
		Guidance struct {
			Instructions []struct {
				Message string `json:"message"`
			} `json:"instructions"`
		} `json:"guidance"`
	} `json:"routes"`
}

// RouteAlternatives asks for the fastest route plus three alternatives, and tops
// the list up with the shortest and eco routes when fewer come back.
func (c *TomTomClient) RouteAlternatives(ctx context.Context, origin, destination geo.Point) ([]Route, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tomtom api key not set: %w", ErrUpstreamUnavailable)
	}
	routes, err := c.calculate(ctx, origin, destination, "fastest", MaxAlternatives-1)
	if err != nil {
		return nil, err
	}
	for _, extra := range []struct{ kind, label string }{{"shortest", "Shortest"}, {"eco", "Eco"}} {
		if len(routes) >= MaxAlternatives {
			break
		}
		more, err := c.calculate(ctx, origin, destination, extra.kind, 0)
		if err != nil || len(more) == 0 {
			continue
		}
		more[0].Label = extra.label
		routes = append(routes, more[0])
	}
	return routes, nil
}

func (c *TomTomClient) calculate(ctx context.Context, origin, destination geo.Point, routeType string, maxAlternatives int) ([]Route, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("traffic", "true")
	q.Set("routeType", routeType)
	q.Set("instructionsType", "text")
	q.Set("language", "en-US")
	if maxAlternatives > 0 {
		q.Set("maxAlternatives", fmt.Sprint(maxAlternatives))
	}
	endpoint := fmt.Sprintf("%s/routing/1/calculateRoute/%f,%f:%f,%f/json?%s",
		c.baseURL, origin.Lat, origin.Lon, destination.Lat, destination.Lon, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload calculateRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstreamUnavailable, err)
	}

	out := make([]Route, 0, len(payload.Routes))
	for _, r := range payload.Routes {
		route := Route{
			ETAMinutes: r.Summary.TravelTimeInSeconds / 60,
			DistanceKm: r.Summary.LengthInMeters / 1000,
		}
		if len(r.Legs) > 0 {
			for _, p := range r.Legs[0].Points {
				route.Polyline = append(route.Polyline, geo.Point{Lat: p.Latitude, Lon: p.Longitude})
			}
		}
		for _, ins := range r.Guidance.Instructions {
			if ins.Message != "" {
				route.TurnInstructions = append(route.TurnInstructions, ins.Message)
			}
		}
		out = append(out, route)
	}
	return out, nil
}
