package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docsearch/internal/app"
	"docsearch/internal/conversation"
	"docsearch/internal/transport/http/response"
)

type SearchHandler struct {
	chatService     *app.ChatService
	feedbackService *app.FeedbackService
}

type InitialQuestionRequest struct {
	Question string `json:"question" binding:"required,max=4000"`
}

type SuggestionRequest struct {
	Label string `json:"label" binding:"required"`
}

type AskRequest struct {
	Message string   `json:"message" binding:"max=4000"`
	Columns []string `json:"columns"`
	Limit   int      `json:"limit" binding:"gte=0"`
}

type FeedbackRequest struct {
	MessageIndex   int    `json:"message_index" binding:"gte=0"`
	Rating         *int   `json:"rating"`
	Details        string `json:"details" binding:"max=4000"`
	IncludeHistory bool   `json:"include_history"`
}

type sessionView struct {
	*conversation.Conversation
	State conversation.State `json:"state"`
}

func NewSearchHandler(chatService *app.ChatService, feedbackService *app.FeedbackService) *SearchHandler {
	return &SearchHandler{
		chatService:     chatService,
		feedbackService: feedbackService,
	}
}

func (h *SearchHandler) Suggestions(c *gin.Context) {
	response.OK(c, h.chatService.Suggestions())
}

func (h *SearchHandler) CreateSession(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	session, err := h.chatService.NewSession(c.Request.Context(), userID)
	if err != nil {
		writeChatError(c, err, "create session failed")
		return
	}
	response.OK(c, view(session))
}

func (h *SearchHandler) GetSession(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	session, err := h.chatService.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeChatError(c, err, "get session failed")
		return
	}
	response.OK(c, view(session))
}

func (h *SearchHandler) Restart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	session, err := h.chatService.Restart(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeChatError(c, err, "restart session failed")
		return
	}
	response.OK(c, view(session))
}

func (h *SearchHandler) AskInitial(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req InitialQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	session, err := h.chatService.AskInitial(c.Request.Context(), userID, c.Param("id"), req.Question)
	if err != nil {
		writeChatError(c, err, "set initial question failed")
		return
	}
	response.OK(c, view(session))
}

func (h *SearchHandler) SelectSuggestion(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	session, err := h.chatService.SelectSuggestion(c.Request.Context(), userID, c.Param("id"), req.Label)
	if err != nil {
		writeChatError(c, err, "select suggestion failed")
		return
	}
	response.OK(c, view(session))
}

// Ask streams one turn as server-sent events. Failures that happen before
// the first fragment are reported as a regular JSON error.
func (h *SearchHandler) Ask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	result, err := h.chatService.Ask(c.Request.Context(), app.AskInput{
		UserID:    userID,
		SessionID: c.Param("id"),
		Message:   req.Message,
		Columns:   req.Columns,
		Limit:     req.Limit,
	}, func(chunk string) error {
		start()
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			writeChatError(c, err, "ask failed")
			return
		}
		if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", sanitizeSSE(err.Error())))); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	start()
	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(result.Answer) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func (h *SearchHandler) Feedback(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	err := h.feedbackService.Submit(c.Request.Context(), app.FeedbackInput{
		UserID:         userID,
		SessionID:      c.Param("id"),
		MessageIndex:   req.MessageIndex,
		Rating:         req.Rating,
		Details:        req.Details,
		IncludeHistory: req.IncludeHistory,
	})
	if err != nil {
		writeChatError(c, err, "submit feedback failed")
		return
	}
	response.OK(c, gin.H{"recorded": true})
}

func view(c *conversation.Conversation) sessionView {
	return sessionView{Conversation: c, State: c.State()}
}

func writeChatError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrMessageEmpty),
		errors.Is(err, app.ErrInvalidRating),
		errors.Is(err, app.ErrInvalidMessage),
		errors.Is(err, conversation.ErrEmptyQuestion),
		errors.Is(err, conversation.ErrUnknownSuggestion):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, conversation.ErrNotFirstInput):
		response.Error(c, http.StatusConflict, response.CodeConversationState, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrGeneration):
		response.Error(c, http.StatusBadGateway, response.CodeGenerationFailed, "answer generation failed")
	case errors.Is(err, app.ErrFeedbackNotRecorded):
		response.Error(c, http.StatusServiceUnavailable, response.CodeFeedbackNotSaved, app.ErrFeedbackNotRecorded.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
