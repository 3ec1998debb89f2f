package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/hopchain/hopchain/internal/config"
	"github.com/hopchain/hopchain/internal/metrics"
)

const maxSnippetBytes = 120

// Driver originates traffic into the head of a chain: one request at a
// time, a uniform random pause between attempts, and no reaction to
// failure beyond logging it. Every error kind is absorbed; only context
// cancellation stops the loop.
type Driver struct {
	cfg    *config.Driver
	client *http.Client
	met    *metrics.Driver
	logger *slog.Logger
}

func New(cfg *config.Driver, met *metrics.Driver, logger *slog.Logger) (*Driver, error) {
	if met == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}

	return &Driver{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		met:    met,
		logger: logger.With("component", "driver"),
	}, nil
}

// Run blocks until ctx is cancelled. The initial delay gives downstream
// services time to come up; there is no readiness polling beyond it.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("waiting before first request",
		"delay", d.cfg.InitialDelay,
		"target", d.cfg.Target.URL(),
	)
	if !sleep(ctx, d.cfg.InitialDelay) {
		return ctx.Err()
	}

	for {
		d.attempt(ctx)

		if !sleep(ctx, d.pause()) {
			d.logger.Info("driver stopping")
			return nil
		}
	}
}

// attempt issues one request and logs the outcome. It never returns an
// error: a dead, slow, or misbehaving chain must not kill the loop.
func (d *Driver) attempt(ctx context.Context) {
	start := time.Now()
	outcome, status, snippet := d.issue(ctx)
	duration := time.Since(start)

	d.met.Attempts.WithLabelValues(outcome).Inc()
	d.met.Latency.Observe(duration.Seconds())

	if outcome == outcomeOK {
		d.logger.Info("request succeeded",
			"status", status,
			"duration", duration,
			"body", snippet,
		)
		return
	}

	d.logger.Warn("request failed",
		"outcome", outcome,
		"status", status,
		"duration", duration,
		"body", snippet,
	)
}

const (
	outcomeOK       = "ok"
	outcomeHTTP     = "http_error"
	outcomeTimeout  = "timeout"
	outcomeRefused  = "connection_refused"
	outcomeBadJSON  = "bad_json"
	outcomeInternal = "error"
)

func (d *Driver) issue(ctx context.Context) (outcome string, status int, snippet string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.Target.URL(), nil)
	if err != nil {
		return outcomeInternal, 0, err.Error()
	}

	resp, err := d.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		switch {
		case errors.As(err, &urlErr) && urlErr.Timeout():
			return outcomeTimeout, 0, err.Error()
		case errors.Is(err, syscall.ECONNREFUSED):
			return outcomeRefused, 0, err.Error()
		default:
			return outcomeInternal, 0, err.Error()
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcomeInternal, resp.StatusCode, err.Error()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return outcomeHTTP, resp.StatusCode, truncate(body)
	}

	if !json.Valid(body) {
		return outcomeBadJSON, resp.StatusCode, truncate(body)
	}

	return outcomeOK, resp.StatusCode, truncate(body)
}

func (d *Driver) pause() time.Duration {
	p := d.cfg.MinSleep
	if d.cfg.MaxSleep > d.cfg.MinSleep {
		p += time.Duration(rand.Int63n(int64(d.cfg.MaxSleep - d.cfg.MinSleep)))
	}
	return p
}

// sleep waits for the duration and reports false if ctx was cancelled
// before it elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func truncate(b []byte) string {
	if len(b) > maxSnippetBytes {
		return string(b[:maxSnippetBytes])
	}
	return string(b)
}
