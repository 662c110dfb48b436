package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

type retrieverFake struct {
	results []domain.ScoredChunk
	err     error
	topK    int
	calls   int
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, topK int) ([]domain.ScoredChunk, error) {
	f.calls++
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	retriever := &retrieverFake{}
	uc := NewChatUseCase(retriever, NewComposeUseCase(&generatorFake{text: "x"}, keywordFallbackFake{}, nil, ComposeOptions{}), 3)

	if _, err := uc.Ask(context.Background(), "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if retriever.calls != 0 {
		t.Fatalf("expected no retrieval for invalid input")
	}
}

func TestAskRejectsTooLongQuestion(t *testing.T) {
	uc := NewChatUseCase(&retrieverFake{}, NewComposeUseCase(&generatorFake{text: "x"}, keywordFallbackFake{}, nil, ComposeOptions{}), 3)

	if _, err := uc.Ask(context.Background(), strings.Repeat("ж", MaxQuestionRunes+1)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := uc.Ask(context.Background(), strings.Repeat("ж", MaxQuestionRunes)); err != nil {
		t.Fatalf("expected question at the limit to pass, got %v", err)
	}
}

func TestAskUsesConfiguredTopK(t *testing.T) {
	retriever := &retrieverFake{results: []domain.ScoredChunk{{Chunk: domain.Chunk{Text: "ctx"}, Score: 1}}}
	uc := NewChatUseCase(retriever, NewComposeUseCase(&generatorFake{text: "answer"}, keywordFallbackFake{}, nil, ComposeOptions{}), 0)

	answer, err := uc.Ask(context.Background(), "  diabetes symptoms ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if retriever.topK != defaultTopK {
		t.Fatalf("expected default top_k %d, got %d", defaultTopK, retriever.topK)
	}
	if answer.Mode != domain.AnswerModeGenerated {
		t.Fatalf("expected generated answer, got %s", answer.Mode)
	}
}

func TestAskRetrievalFailureUsesNoContextGeneration(t *testing.T) {
	gen := &generatorFake{text: "general answer"}
	uc := NewChatUseCase(&retrieverFake{err: domain.ErrRetrievalUnavailable}, NewComposeUseCase(gen, keywordFallbackFake{}, nil, ComposeOptions{}), 3)

	answer, err := uc.Ask(context.Background(), "what is a fever")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Mode != domain.AnswerModeGeneratedNoContext || answer.FallbackReason != "" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generation attempt, got %d", gen.calls)
	}
}

func TestAskRetrievalAndGenerationFailureUsesStaticFallback(t *testing.T) {
	gen := &generatorFake{err: errors.New("timeout")}
	uc := NewChatUseCase(&retrieverFake{err: domain.ErrRetrievalUnavailable}, NewComposeUseCase(gen, keywordFallbackFake{}, nil, ComposeOptions{}), 3)

	answer, err := uc.Ask(context.Background(), "what is a fever")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Mode != domain.AnswerModeFallback || answer.FallbackReason != domain.FallbackReasonRetrievalUnavailable {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if !strings.HasSuffix(answer.Text, Disclaimer) {
		t.Fatalf("expected disclaimer footer, got %q", answer.Text)
	}
}
