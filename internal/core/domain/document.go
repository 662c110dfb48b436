package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded source file tracked through asynchronous indexing.
type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	ChunkCount  int            `json:"chunk_count"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SourceDocument is raw text handed to the indexer.
type SourceDocument struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk is a contiguous span of a source document. Immutable once indexed.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Source     string            `json:"source"`
	Index      int               `json:"index"`
	Seq        int64             `json:"seq"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IndexReport describes the outcome of an indexing run. Indexed counts chunks
// that reached the vector store, including on a failed run.
type IndexReport struct {
	Namespace string `json:"namespace"`
	Documents int    `json:"documents"`
	Indexed   int    `json:"indexed"`
}
