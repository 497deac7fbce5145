package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/charmbracelet/log"
)

// Cache stores completions by key.
type Cache interface {
	GetCompletion(ctx context.Context, key string) (string, bool, error)
	PutCompletion(ctx context.Context, key, completion string) error
}

// Cached answers deterministic requests from a Cache before calling the
// wrapped generator. Requests with Sample set always go to the model. Cache
// failures are logged and never fail a generation.
type Cached struct {
	next   Generator
	cache  Cache
	scope  string
	logger *log.Logger
}

// NewCached wraps next. scope separates entries from different models.
func NewCached(next Generator, cache Cache, scope string, logger *log.Logger) *Cached {
	return &Cached{next: next, cache: cache, scope: scope, logger: logger}
}

func (c *Cached) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	if p.Sample || c.cache == nil {
		return c.next.Generate(ctx, prompt, p)
	}

	key := CacheKey(c.scope, prompt, p)
	if out, ok, err := c.cache.GetCompletion(ctx, key); err != nil {
		c.warn("completion cache read failed", err)
	} else if ok {
		return out, nil
	}

	out, err := c.next.Generate(ctx, prompt, p)
	if err != nil {
		return "", err
	}
	if err := c.cache.PutCompletion(ctx, key, out); err != nil {
		c.warn("completion cache write failed", err)
	}
	return out, nil
}

func (c *Cached) Name() string {
	if n, ok := c.next.(Named); ok {
		return n.Name()
	}
	return ""
}

func (c *Cached) Model() string {
	if n, ok := c.next.(Named); ok {
		return n.Model()
	}
	return ""
}

func (c *Cached) warn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, "err", err)
	}
}

// CacheKey hashes the scope, decoding params and prompt.
func CacheKey(scope, prompt string, p Params) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00%t\x00%g\x00", scope, p.MaxTokens, p.Beams, p.Sample, p.Temperature)
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
