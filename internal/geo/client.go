// README: Geocoding/routing client over the Google Maps APIs with bounded retry and timeout.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"

	"fooddash/internal/apperr"
	"fooddash/internal/metrics"
	"fooddash/internal/types"
)

var (
	ErrNoResults = errors.New("no results found for the given address")
	ErrNoRoute   = errors.New("no route found between the given locations")
)

// Provider is the subset of *maps.Client the client calls.
type Provider interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// DeliveryRoute is computed on demand and never persisted.
type DeliveryRoute struct {
	Origin          types.Location   `json:"origin"`
	Destination     types.Location   `json:"destination"`
	Waypoints       []types.Location `json:"waypoints,omitempty"`
	DistanceMeters  int              `json:"distanceMeters"`
	DurationSeconds int              `json:"durationSeconds"`
}

type Options struct {
	// Timeout bounds one operation including its retries.
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

type Client struct {
	provider Provider
	opts     Options
	log      logrus.FieldLogger
}

// NewClient creates a Client backed by Google Maps with the given API key.
func NewClient(apiKey string, opts Options, log logrus.FieldLogger) (*Client, error) {
	mc, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return NewClientWithProvider(mc, opts, log), nil
}

func NewClientWithProvider(p Provider, opts Options, log logrus.FieldLogger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	return &Client{provider: p, opts: opts, log: log}
}

// Geocode converts a free-text address to coordinates using the first result.
func (c *Client) Geocode(ctx context.Context, address string) (types.Location, error) {
	var loc types.Location
	err := c.call(ctx, "geocode", func(ctx context.Context) error {
		results, err := c.provider.Geocode(ctx, &maps.GeocodingRequest{Address: address})
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return ErrNoResults
		}
		r := results[0]
		loc = types.Location{
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
			Address: r.FormattedAddress,
		}
		return nil
	})
	if err != nil {
		return types.Location{}, classify("geocoding failed", err)
	}
	return loc, nil
}

// Route computes a driving route through the optional waypoints. Distance and
// duration are summed over every leg of the first route returned.
func (c *Client) Route(ctx context.Context, origin, destination types.Location, waypoints ...types.Location) (DeliveryRoute, error) {
	req := &maps.DirectionsRequest{
		Origin:      origin.LatLngString(),
		Destination: destination.LatLngString(),
		Mode:        maps.TravelModeDriving,
	}
	for _, wp := range waypoints {
		req.Waypoints = append(req.Waypoints, wp.LatLngString())
	}

	out := DeliveryRoute{Origin: origin, Destination: destination, Waypoints: waypoints}
	err := c.call(ctx, "route", func(ctx context.Context) error {
		routes, _, err := c.provider.Directions(ctx, req)
		if err != nil {
			return err
		}
		if len(routes) == 0 || len(routes[0].Legs) == 0 {
			return ErrNoRoute
		}
		var meters int
		var dur time.Duration
		for _, leg := range routes[0].Legs {
			if leg == nil {
				continue
			}
			meters += leg.Distance.Meters
			dur += leg.Duration
		}
		out.DistanceMeters = meters
		out.DurationSeconds = int(dur.Round(time.Second) / time.Second)
		return nil
	})
	if err != nil {
		return DeliveryRoute{}, classify("route calculation failed", err)
	}
	return out, nil
}

// EstimateArrival is from plus the route duration.
func EstimateArrival(route DeliveryRoute, from time.Time) time.Time {
	return from.Add(time.Duration(route.DurationSeconds) * time.Second)
}

// call runs fn under the operation deadline, retrying transient failures with
// exponential backoff.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.ExternalDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	delay := c.opts.Backoff
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			metrics.ExternalCalls.WithLabelValues(op, "ok").Inc()
			return nil
		}
		if ctx.Err() != nil {
			metrics.ExternalCalls.WithLabelValues(op, "timeout").Inc()
			return ctx.Err()
		}
		if !retryable(err) || attempt >= c.opts.MaxRetries {
			metrics.ExternalCalls.WithLabelValues(op, "error").Inc()
			return err
		}
		metrics.ExternalCalls.WithLabelValues(op, "retry").Inc()
		c.log.WithFields(logrus.Fields{"op": op, "attempt": attempt + 1}).WithError(err).Warn("maps call failed, retrying")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			metrics.ExternalCalls.WithLabelValues(op, "timeout").Inc()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

func classify(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindExternalTimeout, "external service timeout", err)
	}
	return apperr.Wrap(apperr.KindExternal, msg, err)
}
