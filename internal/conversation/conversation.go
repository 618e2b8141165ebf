// Package conversation tracks the chat transcript of one search session
// together with the pending first-input markers.
package conversation

import (
	"errors"
	"strings"
	"time"

	"docsearch/internal/config"
	"docsearch/internal/model"
)

type State string

const (
	StateEmpty              State = "empty"
	StateAwaitingFirstInput State = "awaiting_first_input"
	StateActive             State = "active"
)

var (
	ErrNotFirstInput      = errors.New("conversation already started")
	ErrUnknownSuggestion  = errors.New("unknown suggestion")
	ErrEmptyQuestion      = errors.New("question is empty")
	ErrConversationAbsent = errors.New("conversation not found")
)

// Conversation is the session-scoped context handed to every chat handler.
type Conversation struct {
	ID                 string              `json:"id"`
	UserID             uint                `json:"user_id"`
	Messages           []model.ChatMessage `json:"messages"`
	InitialQuestion    string              `json:"initial_question,omitempty"`
	SelectedSuggestion string              `json:"selected_suggestion,omitempty"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func New(id string, userID uint) *Conversation {
	return &Conversation{
		ID:        id,
		UserID:    userID,
		Messages:  []model.ChatMessage{},
		UpdatedAt: time.Now(),
	}
}

func (c *Conversation) State() State {
	switch {
	case len(c.Messages) > 0:
		return StateActive
	case c.InitialQuestion != "" || c.SelectedSuggestion != "":
		return StateAwaitingFirstInput
	default:
		return StateEmpty
	}
}

// AskInitial records a typed first question.
func (c *Conversation) AskInitial(question string) error {
	if len(c.Messages) > 0 {
		return ErrNotFirstInput
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}
	c.InitialQuestion = question
	c.touch()
	return nil
}

// SelectSuggestion records a clicked suggestion chip by its label.
func (c *Conversation) SelectSuggestion(label string, suggestions []config.Suggestion) error {
	if len(c.Messages) > 0 {
		return ErrNotFirstInput
	}
	if _, ok := findSuggestion(label, suggestions); !ok {
		return ErrUnknownSuggestion
	}
	c.SelectedSuggestion = label
	c.touch()
	return nil
}

// ResolveInput picks the question for the next turn: typed follow-up text
// first, then a pending suggestion, then a pending initial question.
func (c *Conversation) ResolveInput(followUp string, suggestions []config.Suggestion) (string, bool) {
	if q := strings.TrimSpace(followUp); q != "" {
		return q, true
	}
	if c.SelectedSuggestion != "" {
		if s, ok := findSuggestion(c.SelectedSuggestion, suggestions); ok {
			return s.Question, true
		}
	}
	if c.InitialQuestion != "" {
		return c.InitialQuestion, true
	}
	return "", false
}

// AppendTurn adds a completed user/assistant pair and consumes any pending markers.
func (c *Conversation) AppendTurn(question, answer string) {
	c.Messages = append(c.Messages,
		model.ChatMessage{Role: model.RoleUser, Content: question},
		model.ChatMessage{Role: model.RoleAssistant, Content: answer},
	)
	c.InitialQuestion = ""
	c.SelectedSuggestion = ""
	c.touch()
}

// Restart clears the transcript and pending markers.
func (c *Conversation) Restart() {
	c.Messages = []model.ChatMessage{}
	c.InitialQuestion = ""
	c.SelectedSuggestion = ""
	c.touch()
}

// Before returns a copy of the messages preceding index.
func (c *Conversation) Before(index int) []model.ChatMessage {
	if index <= 0 {
		return nil
	}
	if index > len(c.Messages) {
		index = len(c.Messages)
	}
	out := make([]model.ChatMessage, index)
	copy(out, c.Messages[:index])
	return out
}

func (c *Conversation) touch() {
	c.UpdatedAt = time.Now()
}

func findSuggestion(label string, suggestions []config.Suggestion) (config.Suggestion, bool) {
	for _, s := range suggestions {
		if s.Label == label {
			return s, true
		}
	}
	return config.Suggestion{}, false
}
