package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// fixedSeed pins provider-side sampling for deterministic requests.
const fixedSeed = 42

// --- Ollama Provider ---

// OllamaGenerator uses a local Ollama instance for completions.
type OllamaGenerator struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Seed        int      `json:"seed,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaGenerator creates a generator using Ollama's API.
// An empty baseURL reads OLLAMA_HOST, then defaults to localhost.
func NewOllamaGenerator(baseURL, model string) *OllamaGenerator {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaGenerator{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// Ollama has no beam search; deterministic requests pin temperature 0,
// top_k 1 and a fixed seed instead.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	opts := ollamaOptions{NumPredict: p.MaxTokens}
	if p.Sample {
		t := p.Temperature
		opts.Temperature = &t
	} else {
		zero := 0.0
		opts.Temperature = &zero
		opts.TopK = 1
		opts.Seed = fixedSeed
	}

	body, _ := json.Marshal(ollamaRequest{Model: g.model, Prompt: prompt, Options: opts})
	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Provider: "ollama", Code: resp.StatusCode, Body: string(b)}
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return result.Response, nil
}

func (g *OllamaGenerator) Name() string  { return "ollama" }
func (g *OllamaGenerator) Model() string { return g.model }

// --- OpenAI-compatible Provider ---

// OpenAIGenerator uses any OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Seed        *int            `json:"seed,omitempty"`
	N           int             `json:"n"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIGenerator creates a generator using an OpenAI-compatible API.
func NewOpenAIGenerator(baseURL, apiKey, model string) *OpenAIGenerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGenerator{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	r := openaiRequest{
		Model:     g.model,
		Messages:  []openaiMessage{{Role: "user", Content: prompt}},
		MaxTokens: p.MaxTokens,
		N:         1,
	}
	if p.Sample {
		r.Temperature = p.Temperature
	} else {
		seed := fixedSeed
		r.Seed = &seed
	}

	body, _ := json.Marshal(r)
	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Provider: "openai", Code: resp.StatusCode, Body: string(b)}
	}

	var result openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return result.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) Name() string  { return "openai" }
func (g *OpenAIGenerator) Model() string { return g.model }

// --- Factory ---

const (
	DefaultOllamaModel = "llama3.2"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// Named is implemented by providers that can report what they talk to.
type Named interface {
	Name() string
	Model() string
}

// New creates a generator for the configured provider.
// OPENAI_API_KEY is read when the openai provider has no key set.
func New(o Options) (Generator, error) {
	switch o.Provider {
	case "", ProviderOllama:
		return NewOllamaGenerator(o.BaseURL, o.Model), nil
	case ProviderOpenAI:
		key := o.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		return NewOpenAIGenerator(o.BaseURL, key, o.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q (valid: ollama, openai)", o.Provider)
	}
}
