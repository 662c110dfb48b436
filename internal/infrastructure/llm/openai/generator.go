// Package openai adapts OpenAI-compatible chat completion APIs (Groq,
// OpenAI, vLLM) to the generation port.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://api.groq.com/openai/v1/"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type Generator struct {
	client openai.Client
	cfg    Config
	exec   *resilience.Executor
}

func NewGenerator(cfg Config, exec *resilience.Executor) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "openai generator", errors.New("api key is required"))
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "openai generator", errors.New("model is required"))
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	cfg.BaseURL = baseURL

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Generator{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		exec:   exec,
	}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(prompt.System) != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(g.cfg.Model),
		Temperature: openai.Float(g.cfg.Temperature),
	}
	if g.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.cfg.MaxTokens))
	}

	var text string
	err := g.execute(ctx, "openai.chat_completion", func(callCtx context.Context) error {
		completion, err := g.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return errors.New("chat completion returned no choices")
		}
		text = strings.TrimSpace(completion.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *Generator) Model() string { return g.cfg.Model }

// Ping resolves the configured model on the provider, which checks
// reachability and credentials without spending tokens.
func (g *Generator) Ping(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.cfg.Model); err != nil {
		return fmt.Errorf("get model %s: %w", g.cfg.Model, err)
	}
	return nil
}

func (g *Generator) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if g.exec == nil {
		err = fn(ctx)
	} else {
		err = g.exec.Execute(ctx, operation, fn, classifyError)
	}
	if err == nil {
		return nil
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrCircuitOpen, operation, err)
	}
	if classifyError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func classifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case http.StatusUnauthorized, http.StatusForbidden:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
