package domain

// MetadataEmbedModel is the entry metadata key carrying the embedding model id.
const MetadataEmbedModel = "embed_model"

type Embedding struct {
	Vector []float32
	Model  string
}

// VectorEntry is a single (id, vector, text, metadata) record in the vector store.
type VectorEntry struct {
	Chunk     Chunk
	Embedding Embedding
}

type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

type AnswerMode string

const (
	AnswerModeGenerated          AnswerMode = "generated"
	AnswerModeGeneratedNoContext AnswerMode = "generated_no_context"
	AnswerModeFallback           AnswerMode = "fallback"
)

const (
	FallbackReasonRetrievalUnavailable  = "retrieval_unavailable"
	FallbackReasonGenerationUnavailable = "generation_unavailable"
	FallbackReasonCircuitOpen           = "circuit_open"
)

type Answer struct {
	Text           string        `json:"answer"`
	Mode           AnswerMode    `json:"mode"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	Sources        []ScoredChunk `json:"sources"`
	Usage          Usage         `json:"usage"`
}
