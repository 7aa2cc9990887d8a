package sensor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/banshee-data/heatgrid/internal/httputil"
	"github.com/banshee-data/heatgrid/internal/monitoring"
	"github.com/banshee-data/heatgrid/internal/timeutil"
)

// SensorIDHeader carries the reporter's instance ID on every request.
const SensorIDHeader = "X-Sensor-ID"

// Retry defaults.
const (
	DefaultAttempts   = 5
	DefaultMinBackoff = 250 * time.Millisecond
	DefaultMaxBackoff = 5 * time.Second
)

// Ack is the part of the server's snapshot the reporter cares about.
type Ack struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Generation uint64 `json:"generation"`
}

// Stats counts the outcome of reported readings.
type Stats struct {
	Sent    int64
	Failed  int64
	Retries int64
}

// Reporter posts readings for one grid point to a heatgrid server.
type Reporter struct {
	endpoint string
	id       string
	x, y     int
	kind     grid.Kind

	client     httputil.HTTPClient
	clock      timeutil.Clock
	logf       monitoring.Logger
	attempts   int
	minBackoff time.Duration
	maxBackoff time.Duration

	sent, failed, retries atomic.Int64
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c httputil.HTTPClient) ReporterOption {
	return func(r *Reporter) { r.client = c }
}

// WithClock replaces the clock used for back-off waits.
func WithClock(c timeutil.Clock) ReporterOption {
	return func(r *Reporter) { r.clock = c }
}

// WithLogger replaces the logger.
func WithLogger(logf monitoring.Logger) ReporterOption {
	return func(r *Reporter) { r.logf = logf }
}

// WithRetry sets the number of attempts per reading and the back-off bounds.
// Waits double from min up to max.
func WithRetry(attempts int, min, max time.Duration) ReporterOption {
	return func(r *Reporter) {
		r.attempts = attempts
		r.minBackoff = min
		r.maxBackoff = max
	}
}

// NewReporter creates a Reporter for point (x, y) of the given kind, posting
// to <server>/state.
func NewReporter(server string, x, y int, kind grid.Kind, opts ...ReporterOption) (*Reporter, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", server)
	}
	if x < 0 || y < 0 {
		return nil, fmt.Errorf("%w: (%d, %d)", grid.ErrInvalidCoordinate, x, y)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", grid.ErrInvalidKind, kind)
	}

	r := &Reporter{
		endpoint:   u.JoinPath("state").String(),
		id:         uuid.NewString(),
		x:          x,
		y:          y,
		kind:       kind,
		client:     httputil.NewStandardClient(&http.Client{Timeout: 10 * time.Second}),
		clock:      timeutil.RealClock{},
		logf:       monitoring.Prefixed("sensor"),
		attempts:   DefaultAttempts,
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logf == nil {
		r.logf = func(string, ...interface{}) {}
	}
	if r.attempts < 1 {
		r.attempts = 1
	}
	return r, nil
}

// ID returns the instance ID sent in the X-Sensor-ID header.
func (r *Reporter) ID() string { return r.id }

// Endpoint returns the URL readings are posted to.
func (r *Reporter) Endpoint() string { return r.endpoint }

// Stats returns a copy of the reporter's counters.
func (r *Reporter) Stats() Stats {
	return Stats{Sent: r.sent.Load(), Failed: r.failed.Load(), Retries: r.retries.Load()}
}

// Report posts one temperature. Transport errors and 5xx responses are
// retried with back-off; 4xx responses are returned immediately since
// resending the same reading cannot succeed.
func (r *Reporter) Report(ctx context.Context, temperature float32) (*Ack, error) {
	reading := Reading{X: r.x, Y: r.y, Temperature: temperature, Kind: r.kind}
	header := http.Header{SensorIDHeader: []string{r.id}}

	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			r.retries.Add(1)
			wait := r.backoff(attempt)
			r.logf("retrying reading in %v (attempt %d/%d): %v", wait, attempt+1, r.attempts, lastErr)
			select {
			case <-ctx.Done():
				r.failed.Add(1)
				return nil, ctx.Err()
			case <-r.clock.After(wait):
			}
		}

		var ack Ack
		err := httputil.PostJSON(ctx, r.client, r.endpoint, header, reading, &ack)
		if err == nil {
			r.sent.Add(1)
			return &ack, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	r.failed.Add(1)
	return nil, fmt.Errorf("failed to report reading: %w", lastErr)
}

func (r *Reporter) backoff(attempt int) time.Duration {
	wait := r.minBackoff
	for i := 1; i < attempt && wait < r.maxBackoff; i++ {
		wait *= 2
	}
	if wait > r.maxBackoff {
		wait = r.maxBackoff
	}
	return wait
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *httputil.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}

// Run reports every line received until lines is closed (returns nil) or ctx
// is done (returns ctx.Err()). Failed readings are logged and skipped.
func (r *Reporter) Run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			temperature := ParseReading(line)
			ack, err := r.Report(ctx, temperature)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logf("dropping reading %q for (%d, %d): %v", line, r.x, r.y, err)
				continue
			}
			r.logf("reported %.2f for (%d, %d) at generation %d", temperature, r.x, r.y, ack.Generation)
		}
	}
}
