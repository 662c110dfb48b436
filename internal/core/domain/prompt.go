package domain

// Prompt is the generation request: a system preamble and the user turn.
type Prompt struct {
	System string
	User   string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
