package llm

// Conversation roles accepted in [Message.Role].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the prompt sent to the model.
type Message struct {
	Role    string
	Content string
}

// UserMessage returns a user-role message carrying content.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ModelCapabilities describes the model behind a [Provider]. Analysis code
// uses it to decide how much of a long job description fits into a prompt.
type ModelCapabilities struct {
	// ContextWindow is the token budget shared by prompt and reply.
	ContextWindow int

	// MaxOutputTokens caps a single reply.
	MaxOutputTokens int

	// SupportsStructuredOutput is true when the backend enforces a [Schema]
	// itself instead of relying on prompt instructions.
	SupportsStructuredOutput bool
}
