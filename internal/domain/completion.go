package domain

// CompletionOptions configures a non-streaming chat completion call.
type CompletionOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// CompletionResult is the outcome of a successful chat completion call.
type CompletionResult struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}
