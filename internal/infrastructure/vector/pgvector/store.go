// Package pgvector stores namespace vectors in PostgreSQL with the pgvector
// extension, ranked by cosine distance.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/resilience"
)

type Store struct {
	db        *sql.DB
	namespace string
	timeout   time.Duration
	executor  *resilience.Executor
}

func New(db *sql.DB, namespace string) *Store {
	return &Store{db: db, namespace: namespace}
}

// WithTimeout bounds every attempt of Reset, Upsert, Query and Ping.
func (s *Store) WithTimeout(timeout time.Duration) *Store {
	s.timeout = timeout
	return s
}

func (s *Store) WithResilience(executor *resilience.Executor) *Store {
	s.executor = executor
	return s
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS rag_chunks (
	namespace TEXT NOT NULL,
	id TEXT NOT NULL,
	doc_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	seq BIGINT NOT NULL,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embed_model TEXT NOT NULL,
	embedding vector NOT NULL,
	PRIMARY KEY (namespace, id)
);

CREATE INDEX IF NOT EXISTS idx_rag_chunks_model ON rag_chunks(namespace, embed_model);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	return s.execute(ctx, "pgvector.reset", func(callCtx context.Context) error {
		if _, err := s.db.ExecContext(callCtx, `DELETE FROM rag_chunks WHERE namespace = $1`, s.namespace); err != nil {
			return fmt.Errorf("delete namespace %s: %w", s.namespace, err)
		}
		return nil
	})
}

func (s *Store) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.execute(ctx, "pgvector.upsert", func(callCtx context.Context) error {
		return s.upsertTx(callCtx, entries)
	})
}

func (s *Store) upsertTx(ctx context.Context, entries []domain.VectorEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, entry := range entries {
		metadata, err := json.Marshal(entry.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO rag_chunks (namespace, id, doc_id, source, chunk_index, seq, content, metadata, embed_model, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (namespace, id) DO UPDATE SET
	doc_id = EXCLUDED.doc_id,
	source = EXCLUDED.source,
	chunk_index = EXCLUDED.chunk_index,
	seq = EXCLUDED.seq,
	content = EXCLUDED.content,
	metadata = EXCLUDED.metadata,
	embed_model = EXCLUDED.embed_model,
	embedding = EXCLUDED.embedding
`,
			s.namespace, entry.Chunk.ID, entry.Chunk.DocumentID, entry.Chunk.Source, entry.Chunk.Index,
			entry.Chunk.Seq, entry.Chunk.Text, metadata, entry.Embedding.Model, pgvector.NewVector(entry.Embedding.Vector),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int, model string) ([]domain.ScoredChunk, error) {
	var out []domain.ScoredChunk
	err := s.execute(ctx, "pgvector.search", func(callCtx context.Context) error {
		var err error
		out, err = s.search(callCtx, vector, topK, model)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) search(ctx context.Context, vector []float32, topK int, model string) ([]domain.ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, doc_id, source, chunk_index, seq, content, metadata, embed_model,
       1 - (embedding <=> $1) AS score
FROM rag_chunks
WHERE namespace = $2 AND embed_model = $3
ORDER BY embedding <=> $1, seq
LIMIT $4
`, pgvector.NewVector(vector), s.namespace, model, topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ScoredChunk, 0, topK)
	for rows.Next() {
		var (
			chunk       domain.Chunk
			metadataRaw []byte
			embedModel  string
			score       float64
		)
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.Source, &chunk.Index, &chunk.Seq,
			&chunk.Text, &metadataRaw, &embedModel, &score,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Metadata = map[string]string{}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		chunk.Metadata[domain.MetadataEmbedModel] = embedModel
		out = append(out, domain.ScoredChunk{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	callCtx, cancel := s.attemptContext(ctx)
	defer cancel()
	return s.db.PingContext(callCtx)
}

func (s *Store) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	attempt := func(ctx context.Context) error {
		callCtx, cancel := s.attemptContext(ctx)
		defer cancel()
		return fn(callCtx)
	}

	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, operation, attempt, classifyPGError)
	} else {
		err = attempt(ctx)
	}
	return wrapVectorError(operation, err)
}
