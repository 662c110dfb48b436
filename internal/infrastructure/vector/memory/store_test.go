package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

func entry(id string, seq int64, model string, vector ...float32) domain.VectorEntry {
	return domain.VectorEntry{
		Chunk:     domain.Chunk{ID: id, Seq: seq, Text: id},
		Embedding: domain.Embedding{Vector: vector, Model: model},
	}
}

func TestQueryOrdersByCosineThenSeq(t *testing.T) {
	s := New()
	err := s.Upsert(context.Background(), []domain.VectorEntry{
		entry("orthogonal", 0, "m", 0, 1),
		entry("tie-late", 5, "m", 2, 0),
		entry("tie-early", 1, "m", 1, 0),
		entry("diagonal", 2, "m", 1, 1),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := s.Query(context.Background(), []float32{1, 0}, 3, "m")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := []string{"tie-early", "tie-late", "diagonal"}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].Chunk.ID != id {
			t.Fatalf("result %d: expected %s, got %s", i, id, got[i].Chunk.ID)
		}
	}
	if got[0].Score < 0.999 {
		t.Fatalf("expected cosine 1 for parallel vectors, got %f", got[0].Score)
	}
}

func TestQueryFiltersByModel(t *testing.T) {
	s := New()
	_ = s.Upsert(context.Background(), []domain.VectorEntry{
		entry("old", 0, "old-model", 1, 0),
		entry("new", 1, "new-model", 0, 1),
	})

	got, err := s.Query(context.Background(), []float32{1, 0}, 5, "new-model")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "new" {
		t.Fatalf("expected only new-model entry, got %+v", got)
	}
}

func TestQueryDimensionMismatch(t *testing.T) {
	s := New()
	_ = s.Upsert(context.Background(), []domain.VectorEntry{entry("a", 0, "m", 1, 0, 0)})

	if _, err := s.Query(context.Background(), []float32{1, 0}, 1, "m"); !errors.Is(err, domain.ErrModelMismatch) {
		t.Fatalf("expected model mismatch, got %v", err)
	}
	if err := s.Upsert(context.Background(), []domain.VectorEntry{entry("b", 1, "m", 1)}); !errors.Is(err, domain.ErrModelMismatch) {
		t.Fatalf("expected model mismatch on upsert, got %v", err)
	}
}

func TestUpsertReplacesAndResetClears(t *testing.T) {
	s := New()
	_ = s.Upsert(context.Background(), []domain.VectorEntry{entry("a", 0, "m", 1, 0)})
	_ = s.Upsert(context.Background(), []domain.VectorEntry{entry("a", 0, "m", 0, 1)})
	if s.Len() != 1 {
		t.Fatalf("expected upsert by id, got %d entries", s.Len())
	}

	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	got, err := s.Query(context.Background(), []float32{1, 0, 0}, 3, "m")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result after reset, got %v / %v", got, err)
	}
}
