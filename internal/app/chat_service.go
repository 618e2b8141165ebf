package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"docsearch/internal/ai"
	"docsearch/internal/config"
	"docsearch/internal/conversation"
	"docsearch/internal/metrics"
	"docsearch/internal/model"
	"docsearch/internal/prompt"
	"docsearch/internal/search"
)

const EmptyAnswerFallback = "The model returned an empty response. Please try rephrasing your question."

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrGeneration      = errors.New("answer generation failed")
)

// ChatOptions carries the deployment-specific knobs of the chat page.
type ChatOptions struct {
	Columns        []string
	SearchLimit    int
	Suggestions    []config.Suggestion
	OfficialDomain string
	OfficialLabel  string
}

type ChatService struct {
	store     conversation.Store
	searcher  search.Searcher
	generator ai.Generator
	builder   prompt.Builder
	opts      ChatOptions
}

func NewChatService(
	store conversation.Store,
	searcher search.Searcher,
	generator ai.Generator,
	builder prompt.Builder,
	opts ChatOptions,
) *ChatService {
	if opts.OfficialLabel == "" {
		opts.OfficialLabel = "Official Page"
	}
	return &ChatService{
		store:     store,
		searcher:  searcher,
		generator: generator,
		builder:   builder,
		opts:      opts,
	}
}

type AskInput struct {
	UserID    uint
	SessionID string
	// Message is typed follow-up text; when blank a pending suggestion or
	// initial question is answered instead.
	Message string
	Columns []string
	Limit   int
}

type TurnResult struct {
	SessionID      string          `json:"session_id"`
	Question       string          `json:"question"`
	Answer         string          `json:"answer"`
	MessageIndex   int             `json:"message_index"`
	Results        []search.Result `json:"results"`
	Sources        []string        `json:"sources"`
	SearchDegraded bool            `json:"search_degraded"`
}

func (s *ChatService) Suggestions() []config.Suggestion {
	return s.opts.Suggestions
}

func (s *ChatService) NewSession(ctx context.Context, userID uint) (*conversation.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	c := conversation.New(uuid.NewString(), userID)
	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ChatService) Get(ctx context.Context, userID uint, sessionID string) (*conversation.Conversation, error) {
	if userID == 0 || strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	c, err := s.store.Load(ctx, userID, sessionID)
	if errors.Is(err, conversation.ErrConversationAbsent) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Restart clears the transcript while keeping the session id.
func (s *ChatService) Restart(ctx context.Context, userID uint, sessionID string) (*conversation.Conversation, error) {
	return s.update(ctx, userID, sessionID, func(c *conversation.Conversation) error {
		c.Restart()
		return nil
	})
}

func (s *ChatService) AskInitial(ctx context.Context, userID uint, sessionID, question string) (*conversation.Conversation, error) {
	return s.update(ctx, userID, sessionID, func(c *conversation.Conversation) error {
		return c.AskInitial(question)
	})
}

func (s *ChatService) SelectSuggestion(ctx context.Context, userID uint, sessionID, label string) (*conversation.Conversation, error) {
	return s.update(ctx, userID, sessionID, func(c *conversation.Conversation) error {
		return c.SelectSuggestion(label, s.opts.Suggestions)
	})
}

// Ask runs one turn: search, prompt assembly, streamed generation and
// transcript update. A failed search degrades into an inline error context;
// a failed generation leaves the transcript untouched.
func (s *ChatService) Ask(ctx context.Context, input AskInput, onChunk func(string) error) (*TurnResult, error) {
	c, err := s.Get(ctx, input.UserID, input.SessionID)
	if err != nil {
		return nil, err
	}
	question, ok := c.ResolveInput(input.Message, s.opts.Suggestions)
	if !ok {
		return nil, ErrMessageEmpty
	}

	searchContext, results, degraded := s.searchContext(ctx, question, input)
	fullPrompt := s.builder.Build(question, searchContext, s.builder.HistoryFor(c.Messages))

	answer, err := ai.Collect(s.generator.Stream(ctx, fullPrompt), onChunk)
	if err != nil {
		metrics.Turns.WithLabelValues("generation_failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if strings.TrimSpace(answer) == "" {
		answer = EmptyAnswerFallback
		if err := emit(onChunk, answer); err != nil {
			return nil, err
		}
	}

	sources := search.SourceURLs(results)
	if links := s.relatedLinks(sources); links != "" {
		answer += links
		if err := emit(onChunk, links); err != nil {
			return nil, err
		}
	}

	c.AppendTurn(question, answer)
	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}
	metrics.Turns.WithLabelValues("ok").Inc()

	return &TurnResult{
		SessionID:      c.ID,
		Question:       question,
		Answer:         answer,
		MessageIndex:   len(c.Messages) - 1,
		Results:        results,
		Sources:        sources,
		SearchDegraded: degraded,
	}, nil
}

func (s *ChatService) searchContext(ctx context.Context, question string, input AskInput) (string, []search.Result, bool) {
	columns := input.Columns
	if len(columns) == 0 {
		columns = s.opts.Columns
	}
	rows, err := s.searcher.Search(ctx, search.Query{
		Text:    question,
		Columns: columns,
		Limit:   search.ClampLimit(input.Limit, s.opts.SearchLimit),
	})
	if err != nil {
		metrics.DegradedSearches.Inc()
		log.WithError(err).WithField("session_id", input.SessionID).Warn("search failed, answering without documents")
		return "Error searching documents: " + err.Error(), nil, true
	}
	results := search.NormalizeAll(rows)
	return prompt.BuildContext(results), results, false
}

// relatedLinks renders the trailing link list. Sources on the official
// domain get the official label, the rest are numbered by position.
func (s *ChatService) relatedLinks(sources []string) string {
	if len(sources) == 0 {
		return ""
	}
	domain := strings.ToLower(strings.TrimSpace(s.opts.OfficialDomain))
	var b strings.Builder
	b.WriteString("\n\nRelated links:\n")
	for i, src := range sources {
		label := fmt.Sprintf("Source Document %d", i+1)
		if domain != "" && strings.Contains(strings.ToLower(src), domain) {
			label = s.opts.OfficialLabel
		}
		fmt.Fprintf(&b, "- [%s](%s)\n", label, src)
	}
	return b.String()
}

func (s *ChatService) update(ctx context.Context, userID uint, sessionID string, fn func(c *conversation.Conversation) error) (*conversation.Conversation, error) {
	c, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Transcript returns the messages of a session for rendering.
func (s *ChatService) Transcript(ctx context.Context, userID uint, sessionID string) ([]model.ChatMessage, error) {
	c, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return c.Messages, nil
}

func emit(onChunk func(string) error, chunk string) error {
	if onChunk == nil {
		return nil
	}
	return onChunk(chunk)
}
