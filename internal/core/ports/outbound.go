package ports

import (
	"context"
	"io"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

// DocumentRepository persists and reads uploaded document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveChunkCount(ctx context.Context, id string, chunks int) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Embedder builds vectors for chunks and query text. Model identifies the
// embedding model version; vectors from different models must not be mixed.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
	Ping(ctx context.Context) error
}

// Chunker splits text into overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// VectorStore is a namespace-scoped similarity index.
type VectorStore interface {
	// Reset drops every entry of the namespace. The next Upsert recreates it
	// with the dimension of the incoming vectors.
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, entries []domain.VectorEntry) error
	// Query returns up to topK entries indexed with the given embedding model,
	// ordered by descending similarity.
	Query(ctx context.Context, vector []float32, topK int, model string) ([]domain.ScoredChunk, error)
	Ping(ctx context.Context) error
}

// Generator calls the hosted generation model.
type Generator interface {
	Generate(ctx context.Context, prompt domain.Prompt) (string, error)
	Model() string
	Ping(ctx context.Context) error
}

// FallbackResponder answers without any model. It never fails.
type FallbackResponder interface {
	Respond(question string) string
}

// TokenCounter approximates the number of model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}
