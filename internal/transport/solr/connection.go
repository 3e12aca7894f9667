package solr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/solango/internal/domain"
	"github.com/kailas-cloud/solango/internal/domain/field"
	"github.com/kailas-cloud/solango/internal/domain/query"
	"github.com/kailas-cloud/solango/internal/domain/result"
	"github.com/kailas-cloud/solango/internal/metrics"
)

// Default endpoints and timings.
const (
	DefaultUpdateURL = "http://localhost:8983/solr/update"
	DefaultSelectURL = "http://localhost:8983/solr/select"
	DefaultPingURL   = "http://localhost:8983/solr/admin/ping"
	DefaultStaleness = 5 * time.Minute
	DefaultTimeout   = 30 * time.Second
)

const (
	payloadCommit   = "<commit/>"
	payloadOptimize = "<optimize/>"
	matchAll        = "*:*"
)

// State is the cached backend availability.
type State int

// Availability states.
const (
	StateUnknown State = iota
	StateAvailable
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Config holds the backend connection settings.
type Config struct {
	UpdateURL  string
	SelectURL  string
	PingURLs   []string
	HTTPClient *http.Client
	Timeout    time.Duration // used when HTTPClient is nil
	Staleness  time.Duration
	Logger     *zap.Logger
	Now        func() time.Time
}

// Connection issues update, select and ping requests to the search backend.
// Availability is checked at most once per staleness window; writes
// short-circuit to error results while the backend is unavailable.
type Connection struct {
	updateURL string
	selectURL string
	pingURLs  []string
	client    *http.Client
	staleness time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	state     State
	checkedAt time.Time
}

// New creates a connection. Empty settings fall back to the local defaults.
func New(cfg *Config) *Connection {
	c := &Connection{
		updateURL: cfg.UpdateURL,
		selectURL: cfg.SelectURL,
		pingURLs:  cfg.PingURLs,
		client:    cfg.HTTPClient,
		staleness: cfg.Staleness,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if c.updateURL == "" {
		c.updateURL = DefaultUpdateURL
	}
	if c.selectURL == "" {
		c.selectURL = DefaultSelectURL
	}
	if len(c.pingURLs) == 0 {
		c.pingURLs = []string{DefaultPingURL}
	}
	if c.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.client = &http.Client{Timeout: timeout}
	}
	if c.staleness <= 0 {
		c.staleness = DefaultStaleness
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// UpdateURL returns the update endpoint.
func (c *Connection) UpdateURL() string { return c.updateURL }

// SelectURL returns the select endpoint.
func (c *Connection) SelectURL() string { return c.selectURL }

// State returns the cached availability without checking.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Invalidate forces the next availability check to ping.
func (c *Connection) Invalidate() {
	c.mu.Lock()
	c.state = StateUnknown
	c.mu.Unlock()
}

// Available reports whether the backend passed its last health check,
// pinging when the cached state is older than the staleness window.
func (c *Connection) Available(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.state != StateUnknown && now.Sub(c.checkedAt) <= c.staleness {
		return c.state == StateAvailable
	}

	err := c.ping(ctx)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; that says nothing about the backend.
		c.logger.Debug("availability check abandoned", zap.Error(ctx.Err()))
		return false
	}
	c.checkedAt = now
	if err != nil {
		c.state = StateUnavailable
		metrics.BackendAvailable.Set(0)
		c.logger.Warn("search backend unavailable", zap.Error(err))
		return false
	}
	c.state = StateAvailable
	metrics.BackendAvailable.Set(1)
	return true
}

func (c *Connection) ping(ctx context.Context) error {
	for _, u := range c.pingURLs {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return fmt.Errorf("build ping %s: %w", u, err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			observe("ping", "error", start)
			return domain.NewTransportError(http.MethodGet, u, "", 0, err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			observe("ping", "error", start)
			return domain.NewTransportError(http.MethodGet, u, "", resp.StatusCode, errors.New(resp.Status))
		}
		observe("ping", "success", start)
	}
	return nil
}

// Add posts an <add> request with the given <doc> fragments.
func (c *Connection) Add(ctx context.Context, docs []string, commit bool) result.Updates {
	payload := ""
	if len(docs) > 0 {
		payload = "<add>" + strings.Join(docs, "") + "</add>"
	}
	return c.chain(ctx, c.Post(ctx, result.MethodAdd, payload), commit)
}

// Delete posts a <delete> request with the given <id> fragments.
func (c *Connection) Delete(ctx context.Context, ids []string, commit bool) result.Updates {
	payload := ""
	if len(ids) > 0 {
		payload = "<delete>" + strings.Join(ids, "") + "</delete>"
	}
	return c.chain(ctx, c.Post(ctx, result.MethodDelete, payload), commit)
}

// DeleteByQuery deletes every document matching q.
func (c *Connection) DeleteByQuery(ctx context.Context, q string, commit bool) result.Updates {
	payload := "<delete><query>" + field.Escape(q) + "</query></delete>"
	return c.chain(ctx, c.Post(ctx, result.MethodDelete, payload), commit)
}

// DeleteAll empties the index.
func (c *Connection) DeleteAll(ctx context.Context, commit bool) result.Updates {
	return c.DeleteByQuery(ctx, matchAll, commit)
}

// Commit makes pending changes visible.
func (c *Connection) Commit(ctx context.Context) *result.Update {
	return c.Post(ctx, result.MethodCommit, payloadCommit)
}

// Optimize merges index segments. It also commits.
func (c *Connection) Optimize(ctx context.Context) *result.Update {
	return c.Post(ctx, result.MethodOptimize, payloadOptimize)
}

func (c *Connection) chain(ctx context.Context, u *result.Update, commit bool) result.Updates {
	out := result.Updates{u}
	if commit {
		out = append(out, c.Commit(ctx))
	}
	return out
}

// Post sends a raw update payload. Failures are returned as error results
// carrying the payload, never as Go errors.
func (c *Connection) Post(ctx context.Context, method, payload string) *result.Update {
	if strings.TrimSpace(payload) == "" {
		return result.Failed(method, c.updateURL, payload, domain.ErrEmptyPayload)
	}
	if !c.Available(ctx) {
		metrics.BackendRequestsTotal.WithLabelValues(method, "unavailable").Inc()
		return result.Failed(method, c.updateURL, payload, domain.ErrUnavailable)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.updateURL, bytes.NewBufferString(payload))
	if err != nil {
		return result.Failed(method, c.updateURL, payload, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		observe(method, "error", start)
		c.logger.Warn("update request failed", zap.String("method", method), zap.Error(err))
		return result.Failed(method, c.updateURL, payload,
			domain.NewTransportError(http.MethodPost, c.updateURL, payload, 0, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observe(method, "error", start)
		return result.Failed(method, c.updateURL, payload,
			domain.NewTransportError(http.MethodPost, c.updateURL, payload, resp.StatusCode, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observe(method, "error", start)
		c.logger.Warn("update request rejected",
			zap.String("method", method), zap.Int("status", resp.StatusCode))
		u := result.Failed(method, c.updateURL, payload,
			domain.NewTransportError(http.MethodPost, c.updateURL, payload, resp.StatusCode, errors.New(resp.Status)))
		u.Status = resp.StatusCode
		return u
	}

	u := result.ParseUpdate(method, c.updateURL, payload, body)
	if u.OK() {
		observe(method, "success", start)
	} else {
		observe(method, "error", start)
	}
	return u
}

// Select runs q against the select endpoint and returns the request URL
// and raw response body.
func (c *Connection) Select(ctx context.Context, q *query.Query) (string, []byte, error) {
	u := c.selectURL + "?" + q.URL()
	if !c.Available(ctx) {
		metrics.BackendRequestsTotal.WithLabelValues("select", "unavailable").Inc()
		return u, nil, domain.ErrUnavailable
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return u, nil, fmt.Errorf("build select: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		observe("select", "error", start)
		return u, nil, domain.NewTransportError(http.MethodGet, u, "", 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observe("select", "error", start)
		return u, nil, domain.NewTransportError(http.MethodGet, u, "", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observe("select", "error", start)
		return u, nil, domain.NewTransportError(http.MethodGet, u, "", resp.StatusCode, errors.New(resp.Status))
	}
	observe("select", "success", start)
	return u, body, nil
}

func observe(operation, status string, start time.Time) {
	metrics.BackendRequestsTotal.WithLabelValues(operation, status).Inc()
	metrics.BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
