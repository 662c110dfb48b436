package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/core/ports"
)

type RetrieveUseCase struct {
	embedder ports.Embedder
	store    ports.VectorStore
}

func NewRetrieveUseCase(embedder ports.Embedder, store ports.VectorStore) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder: embedder,
		store:    store,
	}
}

// Retrieve returns at most topK chunks ordered by descending score. Equal
// scores keep insertion order.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	if topK < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("top_k must be positive, got %d", topK))
	}

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w: %w", domain.ErrRetrievalUnavailable, domain.ErrEmbedding, err)
	}
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", errors.New("empty query vector"))
	}

	model := uc.embedder.Model()
	results, err := uc.store.Query(ctx, vector, topK, model)
	if err != nil {
		if domain.IsKind(err, domain.ErrModelMismatch) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "query vector store", err)
	}

	for _, result := range results {
		if got := result.Chunk.Metadata[domain.MetadataEmbedModel]; got != "" && got != model {
			return nil, domain.WrapError(
				domain.ErrModelMismatch,
				"query vector store",
				fmt.Errorf("chunk %s embedded with %q, query embedded with %q", result.Chunk.ID, got, model),
			)
		}
	}

	SortScored(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SortScored orders results by score desc, ties by insertion sequence asc.
func SortScored(results []domain.ScoredChunk) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Seq < results[j].Chunk.Seq
	})
}
