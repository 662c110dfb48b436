package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/core/ports"
)

// MaxQuestionRunes bounds the accepted question length.
const MaxQuestionRunes = 1000

const defaultTopK = 3

type ChatUseCase struct {
	retriever ports.Retriever
	composer  ports.AnswerComposer
	topK      int
}

func NewChatUseCase(retriever ports.Retriever, composer ports.AnswerComposer, topK int) *ChatUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &ChatUseCase{
		retriever: retriever,
		composer:  composer,
		topK:      topK,
	}
}

// Ask runs retrieve then compose. Only invalid input is returned as an error;
// every downstream failure degrades into the fallback chain.
func (uc *ChatUseCase) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is empty"))
	}
	if n := utf8.RuneCountInString(question); n > MaxQuestionRunes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question has %d characters, limit is %d", n, MaxQuestionRunes))
	}

	retrieved, err := uc.retriever.Retrieve(ctx, question, uc.topK)
	retrievalFailed := err != nil
	if retrievalFailed {
		slog.Warn("retrieval_unavailable", "error", err)
		retrieved = nil
	}

	answer := uc.composer.Compose(ctx, question, retrieved)
	if retrievalFailed && answer.Mode == domain.AnswerModeFallback {
		answer.FallbackReason = domain.FallbackReasonRetrievalUnavailable
	}
	return &answer, nil
}
