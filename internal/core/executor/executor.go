// Package executor performs upstream HTTP GETs with per-attempt deadlines and
// bounded retries, classifying failures with fetcherr kinds.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/fetcherr"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/observability"
)

// Interface is what dataset and weather clients depend on.
type Interface interface {
	Fetch(ctx context.Context, upstream, rawURL string, params url.Values) ([]byte, error)
}

const maxBody = 64 << 20

type Executor struct {
	logger         *slog.Logger
	client         *http.Client
	attemptTimeout time.Duration
	retries        int
	initialBackoff time.Duration
	startNow       func() time.Time // for tests
}

type Option func(*Executor)

func WithAttemptTimeout(d time.Duration) Option {
	return func(e *Executor) { e.attemptTimeout = d }
}

func WithRetries(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.retries = n
		}
	}
}

func WithInitialBackoff(d time.Duration) Option {
	return func(e *Executor) { e.initialBackoff = d }
}

func New(logger *slog.Logger, client *http.Client, opts ...Option) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	e := &Executor{
		logger:         logger,
		client:         client,
		attemptTimeout: 10 * time.Second,
		retries:        3,
		initialBackoff: 200 * time.Millisecond,
		startNow:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Fetch GETs rawURL (with params merged into its query) and returns the body.
func (e *Executor) Fetch(ctx context.Context, upstream, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fetcherr.Network(upstream, fmt.Errorf("parse url: %w", err))
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.initialBackoff
	eb.MaxInterval = 5 * time.Second

	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		b, retry, err := e.fetchOnce(ctx, upstream, u)
		if err == nil {
			return b, nil
		}
		if !retry || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		e.logger.DebugContext(ctx, "upstream attempt failed",
			"upstream", upstream, "attempt", attempt, "err", err)
		return nil, err
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(e.retries+1)))
	if err != nil {
		var fe *fetcherr.Error
		if !errors.As(err, &fe) {
			err = fetcherr.Network(upstream, err)
		}
		observability.IncUpstreamError(upstream, fetcherr.KindOf(err).String())
		return nil, err
	}
	return body, nil
}

// FetchJSON fetches and decodes into v; decode failures are KindDecode.
func (e *Executor) FetchJSON(ctx context.Context, upstream, rawURL string, params url.Values, v any) error {
	return DecodeJSON(ctx, e, upstream, rawURL, params, v)
}

// DecodeJSON is FetchJSON for any Interface implementation.
func DecodeJSON(ctx context.Context, f Interface, upstream, rawURL string, params url.Values, v any) error {
	b, err := f.Fetch(ctx, upstream, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		observability.IncUpstreamError(upstream, fetcherr.KindDecode.String())
		return fetcherr.Decode(upstream, err)
	}
	return nil
}

// fetchOnce performs a single attempt; retry reports whether another attempt
// could succeed.
func (e *Executor) fetchOnce(ctx context.Context, upstream string, u *url.URL) (body []byte, retry bool, err error) {
	actx := ctx
	if e.attemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(actx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, fetcherr.Network(upstream, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := e.startNow()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, fetcherr.Network(upstream, fmt.Errorf("do request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency(upstream, dur.Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		again := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, again, fetcherr.Network(upstream, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, true, fetcherr.Network(upstream, fmt.Errorf("read body: %w", err))
	}
	e.logger.DebugContext(ctx, "upstream fetch done",
		"upstream", upstream, "status", resp.StatusCode, "bytes", len(b), "duration", dur.String())
	return b, false, nil
}
