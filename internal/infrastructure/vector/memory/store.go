// Package memory is a process-local vector store using cosine similarity.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

type Store struct {
	mu        sync.RWMutex
	entries   []domain.VectorEntry
	positions map[string]int
	dimension int
}

func New() *Store {
	return &Store{positions: make(map[string]int)}
}

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.positions = make(map[string]int)
	s.dimension = 0
	return nil
}

// Upsert replaces entries with a known id in place and appends new ones.
func (s *Store) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		size := len(entry.Embedding.Vector)
		if s.dimension == 0 {
			s.dimension = size
		}
		if size != s.dimension {
			return domain.WrapError(
				domain.ErrModelMismatch,
				"memory upsert",
				fmt.Errorf("vector dimension %d, namespace expects %d", size, s.dimension),
			)
		}
		if pos, ok := s.positions[entry.Chunk.ID]; ok {
			s.entries[pos] = entry
			continue
		}
		s.positions[entry.Chunk.ID] = len(s.entries)
		s.entries = append(s.entries, entry)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int, model string) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(vector) != s.dimension {
		return nil, domain.WrapError(
			domain.ErrModelMismatch,
			"memory query",
			fmt.Errorf("query dimension %d, namespace holds %d", len(vector), s.dimension),
		)
	}

	out := make([]domain.ScoredChunk, 0, len(s.entries))
	for _, entry := range s.entries {
		if model != "" && entry.Embedding.Model != model {
			continue
		}
		out = append(out, domain.ScoredChunk{
			Chunk: entry.Chunk,
			Score: cosine(vector, entry.Embedding.Vector),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.Seq < out[j].Chunk.Seq
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Ping always succeeds for the in-process store.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
