package model

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a conversation transcript.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
