package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/core/ports"
)

type ComposeOptions struct {
	GenerationTimeout time.Duration
	// MaxContextTokens caps the prompt size; trailing chunks are dropped
	// once the budget is exceeded. Zero disables the cap.
	MaxContextTokens int
}

type ComposeUseCase struct {
	generator ports.Generator
	fallback  ports.FallbackResponder
	tokens    ports.TokenCounter
	opts      ComposeOptions
}

func NewComposeUseCase(
	generator ports.Generator,
	fallback ports.FallbackResponder,
	tokens ports.TokenCounter,
	opts ComposeOptions,
) *ComposeUseCase {
	return &ComposeUseCase{
		generator: generator,
		fallback:  fallback,
		tokens:    tokens,
		opts:      opts,
	}
}

// Compose never fails: a failed or empty generation routes to the static
// fallback responder.
func (uc *ComposeUseCase) Compose(ctx context.Context, question string, retrieved []domain.ScoredChunk) domain.Answer {
	chunks := uc.fitContext(question, retrieved)
	prompt := buildPrompt(question, chunks)

	text, err := uc.generate(ctx, prompt)
	if err != nil {
		reason := domain.FallbackReasonGenerationUnavailable
		if domain.IsKind(err, domain.ErrCircuitOpen) {
			reason = domain.FallbackReasonCircuitOpen
		}
		slog.Warn("generation_fallback",
			"reason", reason,
			"context_chunks", len(chunks),
			"error", err,
		)
		return domain.Answer{
			Text:           uc.fallback.Respond(question) + Disclaimer,
			Mode:           domain.AnswerModeFallback,
			FallbackReason: reason,
			Sources:        []domain.ScoredChunk{},
		}
	}

	mode := domain.AnswerModeGenerated
	if len(chunks) == 0 {
		mode = domain.AnswerModeGeneratedNoContext
	}
	if chunks == nil {
		chunks = []domain.ScoredChunk{}
	}

	return domain.Answer{
		Text:    text + Disclaimer,
		Mode:    mode,
		Sources: chunks,
		Usage: domain.Usage{
			PromptTokens:     uc.countTokens(prompt.System) + uc.countTokens(prompt.User),
			CompletionTokens: uc.countTokens(text),
		},
	}
}

func (uc *ComposeUseCase) generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	if uc.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.GenerationTimeout)
		defer cancel()
	}

	text, err := uc.generator.Generate(ctx, prompt)
	if err != nil {
		return "", domain.WrapError(domain.ErrGenerationUnavailable, "generate answer", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrGenerationUnavailable, "generate answer", errors.New("empty generation output"))
	}
	return text, nil
}

func (uc *ComposeUseCase) fitContext(question string, retrieved []domain.ScoredChunk) []domain.ScoredChunk {
	if uc.opts.MaxContextTokens <= 0 || uc.tokens == nil || len(retrieved) == 0 {
		return retrieved
	}

	budget := uc.opts.MaxContextTokens - uc.countTokens(systemPreamble) - uc.countTokens(question)
	out := make([]domain.ScoredChunk, 0, len(retrieved))
	for _, chunk := range retrieved {
		cost := uc.countTokens(chunk.Chunk.Text)
		if cost > budget {
			break
		}
		budget -= cost
		out = append(out, chunk)
	}
	if len(out) < len(retrieved) {
		slog.Info("context_truncated",
			"retrieved", len(retrieved),
			"kept", len(out),
			"max_context_tokens", uc.opts.MaxContextTokens,
		)
	}
	return out
}

func (uc *ComposeUseCase) countTokens(text string) int {
	if uc.tokens == nil {
		return 0
	}
	return uc.tokens.Count(text)
}
