package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/noelpaton-og/globe-weather-api/internal/observability"
)

// Kind identifies one of the five weather-data categories the gateway serves.
type Kind string

const (
	KindCurrent    Kind = "current"
	KindForecast   Kind = "forecast"
	KindAirQuality Kind = "airquality"
	KindAstronomy  Kind = "astronomy"
	KindTimezone   Kind = "timezone"
)

// endpoint returns the provider resource path for the kind. Air quality data
// rides on current.json with aqi=yes.
func (k Kind) endpoint() string {
	switch k {
	case KindForecast:
		return "forecast.json"
	case KindAstronomy:
		return "astronomy.json"
	case KindTimezone:
		return "timezone.json"
	default:
		return "current.json"
	}
}

// Query carries the caller's location plus kind-specific parameters.
type Query struct {
	City string
	Days int    // forecast only
	Date string // astronomy only, YYYY-MM-DD
}

var (
	// ErrTimeout indicates the upstream call exceeded the bounded timeout.
	ErrTimeout = errors.New("upstream timeout")
	// ErrTransport indicates a DNS/connection-level failure reaching upstream.
	ErrTransport = errors.New("upstream unreachable")
)

// StatusError is returned when the provider answered with a non-2xx status.
// The code is mirrored to the caller.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.Code)
}

// Client performs outbound calls to the WeatherAPI provider. One attempt per
// request, bounded by a uniform timeout; the cache shields upstream from
// repeated load, so the client never retries.
type Client struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New creates a Client for the provider at baseURL (e.g.
// "https://api.weatherapi.com/v1") with a per-call timeout.
func New(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// SetBreaker installs a circuit breaker around upstream calls. Optional; when
// the circuit is open calls fail fast as transport errors.
func (c *Client) SetBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// Fetch performs one outbound call for the given resource kind and query and
// returns the raw provider payload for normalization. Failures are classified
// into *StatusError (non-2xx, status mirrored), ErrTimeout, or ErrTransport.
func (c *Client) Fetch(ctx context.Context, kind Kind, q Query) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, kind, q)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		classified := classify(err)
		observability.UpstreamCallsTotal.WithLabelValues(string(kind), "error").Inc()
		observability.UpstreamDuration.WithLabelValues(string(kind), "error").Observe(duration)
		return nil, classified
	}
	defer resp.Body.Close()

	status := observability.StatusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(string(kind), status).Inc()
	observability.UpstreamDuration.WithLabelValues(string(kind), status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrTransport, err)
	}
	return body, nil
}

// do executes the request, through the circuit breaker when one is installed.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.client.Do(req)
	}
	v, err := c.breaker.Execute(func() (interface{}, error) {
		resp, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// Provider 5xx counts as a breaker failure; 4xx is a caller problem
		// and must not trip the circuit.
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrTransport)
		}
		return nil, err
	}
	return v.(*http.Response), nil
}

func (c *Client) buildRequest(ctx context.Context, kind Kind, q Query) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u = u.JoinPath(kind.endpoint())

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", q.City)
	switch kind {
	case KindCurrent:
		params.Set("aqi", "no")
	case KindAirQuality:
		params.Set("aqi", "yes")
	case KindForecast:
		params.Set("days", strconv.Itoa(q.Days))
		params.Set("aqi", "no")
		params.Set("alerts", "no")
	case KindAstronomy:
		params.Set("dt", q.Date)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// classify maps a transport-level failure to the client error taxonomy.
// *StatusError passes through so the pipeline can mirror the provider status.
func classify(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}
