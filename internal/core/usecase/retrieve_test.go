package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

type queryEmbedderFake struct {
	query string
	model string
	err   error
}

func (f *queryEmbedderFake) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }

func (f *queryEmbedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func (f *queryEmbedderFake) Model() string { return f.model }

func (f *queryEmbedderFake) Ping(context.Context) error { return nil }

type queryStoreFake struct {
	limit   int
	model   string
	results []domain.ScoredChunk
	err     error
}

func (f *queryStoreFake) Reset(context.Context) error                        { return nil }
func (f *queryStoreFake) Upsert(context.Context, []domain.VectorEntry) error { return nil }
func (f *queryStoreFake) Ping(context.Context) error                         { return nil }

func (f *queryStoreFake) Query(_ context.Context, _ []float32, limit int, model string) ([]domain.ScoredChunk, error) {
	f.limit = limit
	f.model = model
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func scored(id string, seq int64, score float64, model string) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			ID:       id,
			Seq:      seq,
			Text:     id,
			Metadata: map[string]string{domain.MetadataEmbedModel: model},
		},
		Score: score,
	}
}

func TestRetrieveOrdersByScoreThenInsertion(t *testing.T) {
	store := &queryStoreFake{results: []domain.ScoredChunk{
		scored("late-tie", 7, 0.8, "m"),
		scored("low", 1, 0.2, "m"),
		scored("early-tie", 2, 0.8, "m"),
		scored("top", 9, 0.95, "m"),
	}}
	embedder := &queryEmbedderFake{model: "m"}
	uc := NewRetrieveUseCase(embedder, store)

	results, err := uc.Retrieve(context.Background(), "blood sugar", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"top", "early-tie", "late-tie"}
	for i, id := range want {
		if results[i].Chunk.ID != id {
			t.Fatalf("result %d: expected %s, got %s", i, id, results[i].Chunk.ID)
		}
	}
	if store.limit != 3 || store.model != "m" {
		t.Fatalf("expected store query with limit 3 and model m, got %d/%s", store.limit, store.model)
	}
	if embedder.query != "blood sugar" {
		t.Fatalf("unexpected embedded query %q", embedder.query)
	}
}

func TestRetrieveReturnsFewerWhenIndexIsSmall(t *testing.T) {
	store := &queryStoreFake{results: []domain.ScoredChunk{scored("only", 0, 0.5, "m")}}
	uc := NewRetrieveUseCase(&queryEmbedderFake{model: "m"}, store)

	results, err := uc.Retrieve(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestRetrieveRejectsNonPositiveTopK(t *testing.T) {
	uc := NewRetrieveUseCase(&queryEmbedderFake{model: "m"}, &queryStoreFake{})

	if _, err := uc.Retrieve(context.Background(), "q", 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRetrieveStoreUnavailable(t *testing.T) {
	uc := NewRetrieveUseCase(&queryEmbedderFake{model: "m"}, &queryStoreFake{err: errors.New("dial tcp: refused")})

	_, err := uc.Retrieve(context.Background(), "q", 3)
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
}

func TestRetrieveEmbeddingFailureIsRetrievalUnavailable(t *testing.T) {
	uc := NewRetrieveUseCase(&queryEmbedderFake{model: "m", err: errors.New("ollama down")}, &queryStoreFake{})

	_, err := uc.Retrieve(context.Background(), "q", 3)
	if !errors.Is(err, domain.ErrRetrievalUnavailable) || !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected retrieval unavailable + embedding, got %v", err)
	}
}

func TestRetrieveDetectsModelMismatch(t *testing.T) {
	store := &queryStoreFake{results: []domain.ScoredChunk{scored("old", 0, 0.9, "old-model")}}
	uc := NewRetrieveUseCase(&queryEmbedderFake{model: "new-model"}, store)

	if _, err := uc.Retrieve(context.Background(), "q", 3); !errors.Is(err, domain.ErrModelMismatch) {
		t.Fatalf("expected model mismatch, got %v", err)
	}
}

func TestRetrievePassesThroughStoreModelMismatch(t *testing.T) {
	storeErr := domain.WrapError(domain.ErrModelMismatch, "qdrant search", errors.New("vector dimension error"))
	uc := NewRetrieveUseCase(&queryEmbedderFake{model: "m"}, &queryStoreFake{err: storeErr})

	_, err := uc.Retrieve(context.Background(), "q", 3)
	if !errors.Is(err, domain.ErrModelMismatch) || errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected bare model mismatch, got %v", err)
	}
}
