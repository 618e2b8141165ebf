package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docsearch/internal/app"
	"docsearch/internal/config"
	"docsearch/internal/conversation"
	"docsearch/internal/model"
	"docsearch/internal/prompt"
	"docsearch/internal/search"
	"docsearch/internal/transport/http/middleware"
	"docsearch/internal/transport/http/response"
	"docsearch/internal/warehouse"
)

type stubSearcher struct{ rows []search.Row }

func (s stubSearcher) Search(context.Context, search.Query) ([]search.Row, error) {
	return s.rows, nil
}

type stubGenerator struct {
	chunks []string
	err    error
}

func (g stubGenerator) Stream(context.Context, string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range g.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if g.err != nil {
			yield("", g.err)
		}
	}
}

type memoryStage struct{ objects map[string][]byte }

func (m *memoryStage) Ensure(context.Context) error { return nil }

func (m *memoryStage) Put(_ context.Context, data []byte, name string, _, _ bool) (string, error) {
	path := "info_stage/" + name
	m.objects[path] = data
	return path, nil
}

func (m *memoryStage) Delete(_ context.Context, path string) error {
	delete(m.objects, path)
	return nil
}

type stubPublisher struct{ err error }

func (p stubPublisher) Publish(context.Context, model.FeedbackRecord) error { return p.err }

type fixture struct {
	router    *gin.Engine
	chat      *app.ChatService
	stage     *memoryStage
	warehouse *warehouse.Provider
}

func newFixture(t *testing.T, gen stubGenerator, publisher stubPublisher) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	provider := warehouse.NewProvider(func(ctx context.Context) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	})
	t.Cleanup(func() { _ = provider.Close() })

	chat := app.NewChatService(
		conversation.NewRedisStore(rdb, time.Hour),
		stubSearcher{rows: []search.Row{{"TITLE": "Guide", "CONTENT": "text", "SOURCE_URL": "https://example.edu/guide"}}},
		gen,
		prompt.NewBuilder("", 5),
		app.ChatOptions{
			Suggestions:    []config.Suggestion{{Label: "Faculty", Question: "List all faculty"}},
			OfficialDomain: "example.edu",
		},
	)
	store := &memoryStage{objects: map[string][]byte{}}
	catalog := app.NewCatalogService(provider, store, false)
	require.NoError(t, catalog.EnsureSchema(context.Background()))

	searchHandler := NewSearchHandler(chat, app.NewFeedbackService(chat, provider, publisher))
	catalogHandler := NewCatalogHandler(catalog, 1<<20)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uint(1))
		c.Next()
	})
	r.GET("/files", catalogHandler.List)
	r.POST("/files", catalogHandler.Upload)
	r.GET("/suggestions", searchHandler.Suggestions)
	r.POST("/sessions", searchHandler.CreateSession)
	r.GET("/sessions/:id", searchHandler.GetSession)
	r.POST("/sessions/:id/suggestion", searchHandler.SelectSuggestion)
	r.POST("/sessions/:id/ask", searchHandler.Ask)
	r.POST("/sessions/:id/feedback", searchHandler.Feedback)

	return &fixture{router: r, chat: chat, stage: store, warehouse: provider}
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.APIResponse {
	t.Helper()
	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (f *fixture) newSession(t *testing.T) string {
	t.Helper()
	session, err := f.chat.NewSession(context.Background(), 1)
	require.NoError(t, err)
	return session.ID
}

func TestAskStreamsServerSentEvents(t *testing.T) {
	f := newFixture(t, stubGenerator{chunks: []string{"Hello", " world"}}, stubPublisher{})
	id := f.newSession(t)

	w := f.do(http.MethodPost, "/sessions/"+id+"/ask", gin.H{"message": "hi"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: Hello\n\ndata:  world\n\n"))
	assert.Contains(t, body, "data: \\n\\nRelated links:\\n- [Official Page](https://example.edu/guide)\\n\n\n")
	assert.Contains(t, body, "event: done\ndata: Hello world\\n\\nRelated links:")
}

func TestAskErrorBeforeStreamIsJSON(t *testing.T) {
	f := newFixture(t, stubGenerator{}, stubPublisher{})

	w := f.do(http.MethodPost, "/sessions/missing/ask", gin.H{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeSessionNotFound, decode(t, w).Code)

	id := f.newSession(t)
	w = f.do(http.MethodPost, "/sessions/"+id+"/ask", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskGenerationErrorAfterStreamStarted(t *testing.T) {
	f := newFixture(t, stubGenerator{chunks: []string{"par"}, err: errors.New("upstream 500")}, stubPublisher{})
	id := f.newSession(t)

	w := f.do(http.MethodPost, "/sessions/"+id+"/ask", gin.H{"message": "hi"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event: error\ndata: answer generation failed: upstream 500")

	session, err := f.chat.Get(context.Background(), 1, id)
	require.NoError(t, err)
	assert.Empty(t, session.Messages)
}

func TestSuggestionFlow(t *testing.T) {
	f := newFixture(t, stubGenerator{chunks: []string{"ok"}}, stubPublisher{})
	id := f.newSession(t)

	w := f.do(http.MethodPost, "/sessions/"+id+"/suggestion", gin.H{"label": "Unknown"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/sessions/"+id+"/suggestion", gin.H{"label": "Faculty"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"awaiting_first_input"`)

	w = f.do(http.MethodPost, "/sessions/"+id+"/ask", gin.H{})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/sessions/"+id+"/suggestion", gin.H{"label": "Faculty"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func (f *fixture) feedbackRows(t *testing.T) []model.FeedbackRecord {
	t.Helper()
	var rows []model.FeedbackRecord
	require.NoError(t, f.warehouse.Run(context.Background(), func(db *gorm.DB) error {
		return db.Find(&rows).Error
	}))
	return rows
}

func TestFeedbackStoredWhenBrokerDown(t *testing.T) {
	f := newFixture(t, stubGenerator{chunks: []string{"ok"}}, stubPublisher{err: errors.New("broker down")})
	id := f.newSession(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/sessions/"+id+"/ask", gin.H{"message": "q"}).Code)

	w := f.do(http.MethodPost, "/sessions/"+id+"/feedback", gin.H{"message_index": 1, "details": "x"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"recorded":true`)

	rows := f.feedbackRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "x", rows[0].MoreInformation)
}

func TestFeedbackNotRecorded(t *testing.T) {
	f := newFixture(t, stubGenerator{chunks: []string{"ok"}}, stubPublisher{})
	id := f.newSession(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/sessions/"+id+"/ask", gin.H{"message": "q"}).Code)
	require.NoError(t, f.warehouse.Run(context.Background(), func(db *gorm.DB) error {
		return db.Migrator().DropTable(&model.FeedbackRecord{})
	}))

	w := f.do(http.MethodPost, "/sessions/"+id+"/feedback", gin.H{"message_index": 1, "details": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, response.CodeFeedbackNotSaved, decode(t, w).Code)

	session, err := f.chat.Get(context.Background(), 1, id)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 2)
}

func newUploadRequest(t *testing.T, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAndList(t *testing.T) {
	f := newFixture(t, stubGenerator{}, stubPublisher{})

	req := newUploadRequest(t, map[string]string{
		"uploaded_by": "Ada",
		"source_url":  "https://example.edu/guide",
	}, "guide.txt", []byte("hello"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, f.stage.objects, 1)
	for path := range f.stage.objects {
		assert.True(t, strings.HasPrefix(path, "info_stage/"))
		assert.True(t, strings.HasSuffix(path, "_guide.txt"))
	}

	w = f.do(http.MethodGet, "/files?uploader=ad", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
	assert.Contains(t, w.Body.String(), `"short_description":"guide.txt"`)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t, stubGenerator{}, stubPublisher{})

	cases := []struct {
		name     string
		fields   map[string]string
		fileName string
	}{
		{"no file", map[string]string{"uploaded_by": "Ada", "source_url": "https://x"}, ""},
		{"no uploader", map[string]string{"source_url": "https://x"}, "a.txt"},
		{"no source", map[string]string{"uploaded_by": "Ada"}, "a.txt"},
		{"bad compress", map[string]string{"uploaded_by": "Ada", "source_url": "https://x", "compress": "maybe"}, "a.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, newUploadRequest(t, tc.fields, tc.fileName, []byte("x")))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, f.stage.objects)
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	f := newFixture(t, stubGenerator{}, stubPublisher{})

	req := newUploadRequest(t, map[string]string{
		"uploaded_by": "Ada",
		"source_url":  "https://example.edu/guide",
	}, "big.bin", bytes.Repeat([]byte("x"), 3<<20))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, f.stage.objects)
}

func TestUploadRejectsOversizedStreamWithoutLength(t *testing.T) {
	f := newFixture(t, stubGenerator{}, stubPublisher{})

	req := newUploadRequest(t, map[string]string{
		"uploaded_by": "Ada",
		"source_url":  "https://example.edu/guide",
	}, "big.bin", bytes.Repeat([]byte("x"), 3<<20))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, f.stage.objects)
}

func TestHealthReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler("docsearch", "test", time.Now(), map[string]Checker{
		"redis":     func(context.Context) error { return nil },
		"warehouse": func(context.Context) error { return warehouse.ErrNoConfiguration },
	})
	r := gin.New()
	r.GET("/healthz", h.Check)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":{"ok":true}`)
	assert.Contains(t, w.Body.String(), warehouse.ErrNoConfiguration.Error())
}
