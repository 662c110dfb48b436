package domain

const (
	ComponentEmbeddingService = "embedding_service"
	ComponentVectorStore      = "vector_store"
	ComponentGenerationModel  = "generation_model"
)

type HealthStatus struct {
	Components      map[string]bool `json:"components"`
	ReadyForQueries bool            `json:"ready_for_queries"`
}
