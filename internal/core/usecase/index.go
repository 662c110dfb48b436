package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/core/ports"
)

const defaultIndexBatchSize = 32

// chunkNamespace scopes deterministic chunk ids to this service.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("medical-rag-assistant/chunk"))

type IndexUseCase struct {
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.VectorStore
	namespace string
	batchSize int
	seqBase   func() int64
}

func NewIndexUseCase(
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.VectorStore,
	namespace string,
	batchSize int,
) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = defaultIndexBatchSize
	}
	return &IndexUseCase{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		namespace: namespace,
		batchSize: batchSize,
		seqBase:   func() int64 { return time.Now().UTC().UnixNano() },
	}
}

// Index replaces the namespace with the chunks of docs. On failure the
// returned report still counts the chunks upserted before the error.
func (uc *IndexUseCase) Index(ctx context.Context, docs []domain.SourceDocument) (domain.IndexReport, error) {
	report := domain.IndexReport{Namespace: uc.namespace, Documents: len(docs)}

	chunks := uc.buildChunks(docs, 0)
	if err := uc.store.Reset(ctx); err != nil {
		return report, domain.WrapError(domain.ErrRetrievalUnavailable, "reset namespace", err)
	}

	indexed, err := uc.upsertBatches(ctx, chunks)
	report.Indexed = indexed
	return report, err
}

// Append adds chunks of docs to the live namespace without resetting it.
func (uc *IndexUseCase) Append(ctx context.Context, docs []domain.SourceDocument) (domain.IndexReport, error) {
	report := domain.IndexReport{Namespace: uc.namespace, Documents: len(docs)}

	chunks := uc.buildChunks(docs, uc.seqBase())
	indexed, err := uc.upsertBatches(ctx, chunks)
	report.Indexed = indexed
	return report, err
}

func (uc *IndexUseCase) buildChunks(docs []domain.SourceDocument, seq int64) []domain.Chunk {
	model := uc.embedder.Model()
	chunks := make([]domain.Chunk, 0, len(docs))
	for _, doc := range docs {
		for idx, text := range uc.chunker.Split(doc.Text) {
			metadata := make(map[string]string, len(doc.Metadata)+2)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata["source"] = doc.Source
			metadata[domain.MetadataEmbedModel] = model

			chunks = append(chunks, domain.Chunk{
				ID:         ChunkID(documentKey(doc), idx),
				DocumentID: doc.ID,
				Source:     doc.Source,
				Index:      idx,
				Seq:        seq,
				Text:       text,
				Metadata:   metadata,
			})
			seq++
		}
	}
	return chunks
}

func (uc *IndexUseCase) upsertBatches(ctx context.Context, chunks []domain.Chunk) (int, error) {
	model := uc.embedder.Model()
	indexed := 0
	dimension := 0

	for start := 0; start < len(chunks); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return indexed, uc.fail(indexed, domain.WrapError(domain.ErrEmbedding, "embed chunk batch", err))
		}
		if len(vectors) != len(batch) {
			return indexed, uc.fail(indexed, domain.WrapError(
				domain.ErrEmbedding,
				"embed chunk batch",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(batch)),
			))
		}

		entries := make([]domain.VectorEntry, len(batch))
		for i, chunk := range batch {
			if dimension == 0 {
				dimension = len(vectors[i])
			}
			if len(vectors[i]) == 0 || len(vectors[i]) != dimension {
				return indexed, uc.fail(indexed, domain.WrapError(
					domain.ErrEmbedding,
					"embed chunk batch",
					fmt.Errorf("inconsistent vector dimension %d, expected %d", len(vectors[i]), dimension),
				))
			}
			entries[i] = domain.VectorEntry{
				Chunk:     chunk,
				Embedding: domain.Embedding{Vector: vectors[i], Model: model},
			}
		}

		if err := uc.store.Upsert(ctx, entries); err != nil {
			return indexed, uc.fail(indexed, domain.WrapError(domain.ErrRetrievalUnavailable, "upsert chunk batch", err))
		}
		indexed += len(entries)
	}

	return indexed, nil
}

func (uc *IndexUseCase) fail(indexed int, err error) error {
	slog.Error("index_failed",
		"namespace", uc.namespace,
		"indexed", indexed,
		"error", err,
	)
	return fmt.Errorf("indexed %d chunks before failure: %w", indexed, err)
}

// ChunkID derives a stable chunk id from the document id and chunk index, so
// re-indexing the same corpus yields the same ids while two documents sharing
// a file name never collide.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"#"+strconv.Itoa(index))).String()
}

func documentKey(doc domain.SourceDocument) string {
	if doc.ID != "" {
		return doc.ID
	}
	return doc.Source
}
