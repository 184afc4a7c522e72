package llm

// Message represents a chat message for the model.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatResponse is the response from a model backend.
type ChatResponse struct {
	Content      string
	Model        string
	FinishReason string

	// Token usage as reported by the backend; zero when unavailable.
	InputTokens  int
	OutputTokens int
}

// TotalTokens returns the combined token count for the exchange.
func (r *ChatResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}
