package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client

	embedExec *resilience.Executor
	genExec   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithResilience routes embedding and generation calls through the given
// executors. A nil executor calls the server directly.
func (c *Client) WithResilience(embed, generate *resilience.Executor) *Client {
	c.embedExec = embed
	c.genExec = generate
	return c
}

// Ping checks that the Ollama server answers.
func (c *Client) Ping(ctx context.Context) error {
	var response struct {
		Version string `json:"version"`
	}
	return c.getJSON(ctx, "/api/version", &response, "version")
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.execute(ctx, e.client.embedExec, "ollama.embed", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (e *Embedder) Model() string { return e.client.embedModel }

func (e *Embedder) Ping(ctx context.Context) error { return e.client.Ping(ctx) }

type Generator struct {
	client      *Client
	temperature float64
	maxTokens   int
}

func NewGenerator(client *Client, temperature float64, maxTokens int) *Generator {
	return &Generator{
		client:      client,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	options := map[string]any{"temperature": g.temperature}
	if g.maxTokens > 0 {
		options["num_predict"] = g.maxTokens
	}
	reqBody := map[string]any{
		"model":   g.client.genModel,
		"system":  prompt.System,
		"prompt":  prompt.User,
		"stream":  false,
		"options": options,
	}

	var response struct {
		Response string `json:"response"`
	}
	err := g.client.execute(ctx, g.client.genExec, "ollama.generate", func(callCtx context.Context) error {
		return g.client.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (g *Generator) Model() string { return g.client.genModel }

func (g *Generator) Ping(ctx context.Context) error { return g.client.Ping(ctx) }

func (c *Client) execute(ctx context.Context, exec *resilience.Executor, operation string, fn func(context.Context) error) error {
	if exec == nil {
		return wrapTemporaryIfNeeded(operation, fn(ctx))
	}
	return wrapTemporaryIfNeeded(operation, exec.Execute(ctx, operation, fn, classifyOllamaError))
}
