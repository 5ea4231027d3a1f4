package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// Default executor configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 4
	DefaultBackoffBase = 1 * time.Second
	DefaultBackoffCap  = 30 * time.Second
	DefaultCallSpacing = 2 * time.Second
	DefaultCallBudget  = 60
	backoffMult        = 1.8
)

// Executor issues rate-limited GET requests against the upstream API.
// It enforces minimum spacing between calls, a hard per-run call budget,
// and bounded retry with exponential backoff and jitter on 429/5xx.
//
// Not safe for concurrent use; the scan is single-threaded by design.
type Executor struct {
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	spacing     time.Duration
	budget      int
	logger      *log.Logger

	used     int
	lastCall time.Time
	sleep    func(context.Context, time.Duration) error
	jitter   func() float64
}

// ExecOption configures Executor.
type ExecOption func(*Executor)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ExecOption {
	return func(e *Executor) { e.client = client }
}

// WithMaxAttempts sets the total attempt count per call (first try included).
func WithMaxAttempts(n int) ExecOption {
	return func(e *Executor) { e.maxAttempts = n }
}

// WithBackoff sets the backoff base delay and cap.
func WithBackoff(base, cap time.Duration) ExecOption {
	return func(e *Executor) {
		e.backoffBase = base
		e.backoffCap = cap
	}
}

// WithCallSpacing sets the minimum spacing between consecutive calls.
func WithCallSpacing(d time.Duration) ExecOption {
	return func(e *Executor) { e.spacing = d }
}

// WithCallBudget sets the hard per-run call budget.
func WithCallBudget(n int) ExecOption {
	return func(e *Executor) { e.budget = n }
}

// WithLogger sets the executor's logger. A nil logger keeps the discard
// default.
func WithLogger(l *log.Logger) ExecOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// withSleep replaces the sleep function, used by tests.
func withSleep(fn func(context.Context, time.Duration) error) ExecOption {
	return func(e *Executor) { e.sleep = fn }
}

// NewExecutor creates a rate-limited request executor.
func NewExecutor(opts ...ExecOption) *Executor {
	e := &Executor{
		client:      &http.Client{Timeout: DefaultTimeout},
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		backoffCap:  DefaultBackoffCap,
		spacing:     DefaultCallSpacing,
		budget:      DefaultCallBudget,
		logger:      log.New(io.Discard, "", 0),
		sleep:       sleepCtx,
		jitter:      rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Remaining reports how many calls are left in the budget.
func (e *Executor) Remaining() int {
	if e.used >= e.budget {
		return 0
	}
	return e.budget - e.used
}

// CallsUsed reports how many HTTP requests were issued so far.
func (e *Executor) CallsUsed() int {
	return e.used
}

// GetJSON performs a GET with retries and decodes the response into out.
// Returns ErrBudgetExhausted once the budget is spent, a StatusError for
// non-retriable 4xx responses, and a wrapped last error after the attempt
// limit. It never retries indefinitely.
func (e *Executor) GetJSON(ctx context.Context, rawURL string, params url.Values, headers map[string]string, out interface{}) error {
	reqURL := rawURL
	if len(params) > 0 {
		reqURL = rawURL + "?" + params.Encode()
	}

	var lastErr error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		// Check the budget before the backoff sleep so a spent budget
		// returns immediately instead of waiting out a delay first.
		if e.used >= e.budget {
			return ErrBudgetExhausted
		}

		if attempt > 0 {
			delay := e.backoffDelay(attempt)
			e.logger.Printf("retrying in %v (attempt %d/%d): %v", delay, attempt+1, e.maxAttempts, lastErr)
			if err := e.sleep(ctx, delay); err != nil {
				return err
			}
		}

		if err := e.enforceSpacing(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		e.used++
		e.lastCall = time.Now()

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if out != nil && len(body) > 0 {
				if err := json.Unmarshal(body, out); err != nil {
					return fmt.Errorf("unmarshal response: %w", err)
				}
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &StatusError{Status: resp.StatusCode, Body: truncate(body, 200)}
			continue

		default:
			// Other 4xx are not retried. 401 is surfaced so the browse
			// client can refresh the token exactly once.
			return &StatusError{Status: resp.StatusCode, Body: truncate(body, 200)}
		}
	}

	e.logger.Printf("giving up after %d attempts: %v", e.maxAttempts, lastErr)
	return fmt.Errorf("max attempts exceeded: %w", lastErr)
}

// enforceSpacing sleeps until the minimum inter-call spacing has elapsed.
func (e *Executor) enforceSpacing(ctx context.Context) error {
	if e.lastCall.IsZero() || e.spacing <= 0 {
		return nil
	}
	wait := e.spacing - time.Since(e.lastCall)
	if wait <= 0 {
		return nil
	}
	return e.sleep(ctx, wait)
}

// backoffDelay computes base × 1.8^(attempt-1) plus up to one base of
// jitter, capped.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(e.backoffBase) * math.Pow(backoffMult, float64(attempt-1)))
	delay += time.Duration(e.jitter() * float64(e.backoffBase))
	if delay > e.backoffCap {
		delay = e.backoffCap
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
