package ports

import (
	"context"
	"io"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

// Indexer builds the namespace from raw documents.
type Indexer interface {
	Index(ctx context.Context, docs []domain.SourceDocument) (domain.IndexReport, error)
	Append(ctx context.Context, docs []domain.SourceDocument) (domain.IndexReport, error)
}

// Retriever returns the chunks most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error)
}

// AnswerComposer turns a question and its context into a final answer.
type AnswerComposer interface {
	Compose(ctx context.Context, question string, retrieved []domain.ScoredChunk) domain.Answer
}

// ChatService is the inbound contract for the full question answering pipeline.
type ChatService interface {
	Ask(ctx context.Context, question string) (*domain.Answer, error)
}

// StatusReporter reports readiness of the external collaborators.
type StatusReporter interface {
	Status(ctx context.Context) domain.HealthStatus
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
