package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

type lineChunker struct{}

func (lineChunker) Split(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

type batchEmbedderFake struct {
	model     string
	dim       int
	failAfter int
	calls     int
	batches   [][]string
	err       error
}

func (f *batchEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = 1
	}
	return out, nil
}

func (f *batchEmbedderFake) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = 1
	return v, nil
}

func (f *batchEmbedderFake) Model() string              { return f.model }
func (f *batchEmbedderFake) Ping(context.Context) error { return nil }

type recordingStoreFake struct {
	resets    int
	entries   []domain.VectorEntry
	upsertErr error
	resetErr  error
}

func (f *recordingStoreFake) Reset(context.Context) error {
	f.resets++
	if f.resetErr != nil {
		return f.resetErr
	}
	f.entries = nil
	return nil
}

func (f *recordingStoreFake) Upsert(_ context.Context, entries []domain.VectorEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *recordingStoreFake) Query(context.Context, []float32, int, string) ([]domain.ScoredChunk, error) {
	return nil, nil
}

func (f *recordingStoreFake) Ping(context.Context) error { return nil }

func sampleDocs() []domain.SourceDocument {
	return []domain.SourceDocument{
		{ID: "d1", Source: "diabetes.txt", Text: "one\ntwo\nthree"},
		{ID: "d2", Source: "fever.txt", Text: "four\nfive"},
	}
}

func TestIndexResetsAndBatches(t *testing.T) {
	embedder := &batchEmbedderFake{model: "all-minilm", dim: 4}
	store := &recordingStoreFake{}
	uc := NewIndexUseCase(lineChunker{}, embedder, store, "medicalchat", 2)

	report, err := uc.Index(context.Background(), sampleDocs())
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if report.Indexed != 5 || report.Documents != 2 || report.Namespace != "medicalchat" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if store.resets != 1 {
		t.Fatalf("expected one reset, got %d", store.resets)
	}
	if len(embedder.batches) != 3 || len(embedder.batches[2]) != 1 {
		t.Fatalf("expected batches of 2,2,1, got %v", embedder.batches)
	}
	for i, entry := range store.entries {
		if entry.Chunk.Seq != int64(i) {
			t.Fatalf("entry %d: expected seq %d, got %d", i, i, entry.Chunk.Seq)
		}
		if entry.Chunk.Metadata[domain.MetadataEmbedModel] != "all-minilm" || entry.Embedding.Model != "all-minilm" {
			t.Fatalf("entry %d: embedding model not pinned: %+v", i, entry)
		}
	}
	if store.entries[3].Chunk.Source != "fever.txt" || store.entries[3].Chunk.Index != 0 {
		t.Fatalf("unexpected chunk mapping: %+v", store.entries[3].Chunk)
	}
}

func TestIndexIsIdempotent(t *testing.T) {
	store := &recordingStoreFake{}
	uc := NewIndexUseCase(lineChunker{}, &batchEmbedderFake{model: "m", dim: 2}, store, "ns", 32)

	if _, err := uc.Index(context.Background(), sampleDocs()); err != nil {
		t.Fatalf("first Index() error = %v", err)
	}
	first := make([]string, len(store.entries))
	for i, entry := range store.entries {
		first[i] = entry.Chunk.ID
	}

	if _, err := uc.Index(context.Background(), sampleDocs()); err != nil {
		t.Fatalf("second Index() error = %v", err)
	}
	if len(store.entries) != len(first) {
		t.Fatalf("expected %d entries after re-index, got %d", len(first), len(store.entries))
	}
	for i, entry := range store.entries {
		if entry.Chunk.ID != first[i] {
			t.Fatalf("chunk %d id changed: %s != %s", i, entry.Chunk.ID, first[i])
		}
	}
}

func TestIndexReportsPartialProgressOnEmbeddingFailure(t *testing.T) {
	embedder := &batchEmbedderFake{model: "m", dim: 2, failAfter: 1, err: errors.New("connection refused")}
	store := &recordingStoreFake{}
	uc := NewIndexUseCase(lineChunker{}, embedder, store, "ns", 2)

	report, err := uc.Index(context.Background(), sampleDocs())
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding error, got %v", err)
	}
	if report.Indexed != 2 {
		t.Fatalf("expected 2 chunks indexed before failure, got %d", report.Indexed)
	}
	if !strings.Contains(err.Error(), "indexed 2 chunks") {
		t.Fatalf("expected partial count in error, got %v", err)
	}
}

func TestIndexFailsWhenStoreUnavailable(t *testing.T) {
	store := &recordingStoreFake{upsertErr: errors.New("qdrant down")}
	uc := NewIndexUseCase(lineChunker{}, &batchEmbedderFake{model: "m", dim: 2}, store, "ns", 2)

	report, err := uc.Index(context.Background(), sampleDocs())
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
	if report.Indexed != 0 {
		t.Fatalf("expected zero indexed, got %d", report.Indexed)
	}
}

func TestIndexResetFailure(t *testing.T) {
	store := &recordingStoreFake{resetErr: errors.New("qdrant down")}
	embedder := &batchEmbedderFake{model: "m", dim: 2}
	uc := NewIndexUseCase(lineChunker{}, embedder, store, "ns", 2)

	if _, err := uc.Index(context.Background(), sampleDocs()); !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
	if embedder.calls != 0 {
		t.Fatalf("expected no embedding after failed reset, got %d calls", embedder.calls)
	}
}

func TestAppendKeepsExistingEntries(t *testing.T) {
	store := &recordingStoreFake{entries: []domain.VectorEntry{{Chunk: domain.Chunk{ID: "existing", Seq: 0}}}}
	uc := NewIndexUseCase(lineChunker{}, &batchEmbedderFake{model: "m", dim: 2}, store, "ns", 8)
	uc.seqBase = func() int64 { return 100 }

	report, err := uc.Append(context.Background(), sampleDocs()[1:])
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if report.Indexed != 2 || store.resets != 0 {
		t.Fatalf("unexpected append result: report=%+v resets=%d", report, store.resets)
	}
	if len(store.entries) != 3 || store.entries[1].Chunk.Seq != 100 || store.entries[2].Chunk.Seq != 101 {
		t.Fatalf("unexpected entries after append: %+v", store.entries)
	}
}

func TestChunkIDIsStable(t *testing.T) {
	if ChunkID("a.pdf", 1) != ChunkID("a.pdf", 1) {
		t.Fatalf("expected deterministic chunk id")
	}
	if ChunkID("a.pdf", 1) == ChunkID("a.pdf", 2) || ChunkID("a.pdf", 1) == ChunkID("b.pdf", 1) {
		t.Fatalf("expected distinct ids for distinct chunks")
	}
}

func TestAppendSameSourceDifferentDocumentsKeepsBoth(t *testing.T) {
	store := &recordingStoreFake{}
	uc := NewIndexUseCase(lineChunker{}, &batchEmbedderFake{model: "m", dim: 2}, store, "ns", 8)

	if _, err := uc.Index(context.Background(), []domain.SourceDocument{
		{ID: "diabetes.txt", Source: "diabetes.txt", Text: "high blood sugar"},
	}); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if _, err := uc.Append(context.Background(), []domain.SourceDocument{
		{ID: "upload-uuid-1", Source: "diabetes.txt", Text: "sore knees"},
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if len(store.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(store.entries))
	}
	if store.entries[0].Chunk.ID == store.entries[1].Chunk.ID {
		t.Fatalf("documents sharing a source must get distinct chunk ids: %s", store.entries[0].Chunk.ID)
	}
	if store.entries[1].Chunk.DocumentID != "upload-uuid-1" {
		t.Fatalf("unexpected appended chunk: %+v", store.entries[1].Chunk)
	}
}

func TestChunkIDFallsBackToSource(t *testing.T) {
	store := &recordingStoreFake{}
	uc := NewIndexUseCase(lineChunker{}, &batchEmbedderFake{model: "m", dim: 2}, store, "ns", 8)
	if _, err := uc.Index(context.Background(), []domain.SourceDocument{{Source: "fever.txt", Text: "hot"}}); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if store.entries[0].Chunk.ID != ChunkID("fever.txt", 0) {
		t.Fatalf("expected source-derived id, got %s", store.entries[0].Chunk.ID)
	}
}
