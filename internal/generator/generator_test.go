package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerator_Deterministic(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaResponse{Response: `["What are dogs?"]`, Done: true})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "tiny")
	out, err := g.Generate(context.Background(), "prompt", Deterministic(128, 4))
	require.NoError(t, err)
	assert.Equal(t, `["What are dogs?"]`, out)

	assert.Equal(t, "tiny", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 128, got.Options.NumPredict)
	require.NotNil(t, got.Options.Temperature)
	assert.Equal(t, 0.0, *got.Options.Temperature)
	assert.Equal(t, 1, got.Options.TopK)
	assert.Equal(t, fixedSeed, got.Options.Seed)
}

func TestOllamaGenerator_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaGenerator(srv.URL, "missing").Generate(context.Background(), "p", Params{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestOpenAIGenerator(t *testing.T) {
	var got openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Mammals."}}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(srv.URL, "secret", "m")
	out, err := g.Generate(context.Background(), "q", Params{MaxTokens: 64, Sample: true, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "Mammals.", out)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Nil(t, got.Seed)
	assert.Equal(t, 64, got.MaxTokens)
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIGenerator(srv.URL, "", "m").Generate(context.Background(), "q", Params{})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	g, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, &OllamaGenerator{}, g)

	g, err = New(Options{Provider: ProviderOpenAI, Model: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", g.(Named).Model())

	_, err = New(Options{Provider: "bogus"})
	assert.Error(t, err)
}

func TestGuard_RetriesTransientFailures(t *testing.T) {
	calls := 0
	g := NewGuard(Func(func(ctx context.Context, prompt string, p Params) (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{Provider: "test", Code: http.StatusServiceUnavailable}
		}
		return "ok", nil
	}), GuardOptions{Retries: 3, BackoffBase: time.Millisecond})

	out, err := g.Generate(context.Background(), "p", Params{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestGuard_DoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	g := NewGuard(Func(func(ctx context.Context, prompt string, p Params) (string, error) {
		calls++
		return "", &StatusError{Provider: "test", Code: http.StatusBadRequest}
	}), GuardOptions{Retries: 3, BackoffBase: time.Millisecond})

	_, err := g.Generate(context.Background(), "p", Params{})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGuard_Timeout(t *testing.T) {
	g := NewGuard(Func(func(ctx context.Context, prompt string, p Params) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), GuardOptions{Timeout: 10 * time.Millisecond, Retries: -1})

	_, err := g.Generate(context.Background(), "p", Params{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuard_SerializesCalls(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0
	g := NewGuard(Func(func(ctx context.Context, prompt string, p Params) (string, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return "ok", nil
	}), GuardOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Generate(context.Background(), "p", Params{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)
}

type memCache struct {
	m       map[string]string
	readErr error
}

func (c *memCache) GetCompletion(_ context.Context, key string) (string, bool, error) {
	if c.readErr != nil {
		return "", false, c.readErr
	}
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) PutCompletion(_ context.Context, key, completion string) error {
	c.m[key] = completion
	return nil
}

func TestCached(t *testing.T) {
	calls := 0
	next := Func(func(ctx context.Context, prompt string, p Params) (string, error) {
		calls++
		return "answer", nil
	})
	c := NewCached(next, &memCache{m: map[string]string{}}, "ollama/tiny", nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := c.Generate(ctx, "p", Deterministic(48, 4))
		require.NoError(t, err)
		assert.Equal(t, "answer", out)
	}
	assert.Equal(t, 1, calls)

	c.Generate(ctx, "p", Params{MaxTokens: 48, Sample: true, Temperature: 0.8})
	c.Generate(ctx, "p", Params{MaxTokens: 48, Sample: true, Temperature: 0.8})
	assert.Equal(t, 3, calls, "sampled requests bypass the cache")

	c.Generate(ctx, "other prompt", Deterministic(48, 4))
	assert.Equal(t, 4, calls)
}

func TestCached_ReadErrorFallsThrough(t *testing.T) {
	calls := 0
	next := Func(func(ctx context.Context, prompt string, p Params) (string, error) {
		calls++
		return "fresh", nil
	})
	c := NewCached(next, &memCache{m: map[string]string{}, readErr: errors.New("disk")}, "s", nil)
	out, err := c.Generate(context.Background(), "p", Params{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", out)
	assert.Equal(t, 1, calls)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("s", "p", Deterministic(10, 4))
	assert.Equal(t, a, CacheKey("s", "p", Deterministic(10, 4)))
	assert.NotEqual(t, a, CacheKey("s2", "p", Deterministic(10, 4)))
	assert.NotEqual(t, a, CacheKey("s", "p", Deterministic(11, 4)))
	assert.Len(t, a, 64)
}

func TestError(t *testing.T) {
	inner := errors.New("connection refused")
	err := error(&Error{Op: "questions", PromptLen: 12, Err: inner})
	assert.True(t, IsGenerationError(err))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "questions")
}
