package llm

// CompletionRequest is the body sent to the chat-completions endpoint.
type CompletionRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

// GenerationRequest is the body sent to a text-to-image model endpoint.
type GenerationRequest struct {
	Inputs string `json:"inputs"`
}

// ErrorResponse is the client-facing error shape. Every error the gateway
// reports, in-band or not, uses this one field.
type ErrorResponse struct {
	Error string `json:"error"`
}
