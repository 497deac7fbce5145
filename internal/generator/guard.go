package generator

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultTimeout     = 2 * time.Minute
	DefaultRetries     = 2
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffMax  = 10 * time.Second
)

// GuardOptions configures Guard.
type GuardOptions struct {
	Timeout     time.Duration
	Retries     int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Logger      *log.Logger
}

// Guard serializes calls to a non-reentrant generator, bounds each call
// with a timeout and retries transient provider failures.
type Guard struct {
	next Generator
	opts GuardOptions
	mu   sync.Mutex
}

// NewGuard wraps next. Zero options take the package defaults; a negative
// Retries disables retrying.
func NewGuard(next Generator, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	return &Guard{next: next, opts: opts}
}

func (g *Guard) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	backoff := retry.WithMaxRetries(uint64(g.opts.Retries),
		retry.WithCappedDuration(g.opts.BackoffMax, retry.NewExponential(g.opts.BackoffBase)))

	var out string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var callErr error
		out, callErr = g.next.Generate(ctx, prompt, p)
		if callErr == nil {
			return nil
		}
		if isRetryable(ctx, callErr) {
			if g.opts.Logger != nil {
				g.opts.Logger.Debug("retrying generation", "attempt", attempt, "err", callErr)
			}
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// Name and Model pass through to the wrapped provider when it reports them.
func (g *Guard) Name() string {
	if n, ok := g.next.(Named); ok {
		return n.Name()
	}
	return ""
}

func (g *Guard) Model() string {
	if n, ok := g.next.(Named); ok {
		return n.Model()
	}
	return ""
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}
