package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.SearchConfig{
		BaseURL:      srv.URL,
		Token:        "secret",
		Database:     "IITJ",
		Schema:       "MH",
		Service:      "IITJ_AI_SEARCH",
		DefaultLimit: 5,
	})
}

func TestSearchSendsQueryAndParsesRows(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/databases/IITJ/schemas/MH/cortex-search-services/IITJ_AI_SEARCH:query", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"results":[{"TITLE":"Faculty","CHUNK_INDEX":3},{"CONTENT":"x"},"bogus"],"request_id":"r1"}`))
	})

	rows, err := client.Search(context.Background(), Query{
		Text:    " List all faculty ",
		Columns: []string{"CONTENT", "TITLE"},
		Limit:   50,
	})
	require.NoError(t, err)

	assert.Equal(t, "List all faculty", body["query"])
	assert.Equal(t, float64(MaxLimit), body["limit"])
	assert.Equal(t, []interface{}{"CONTENT", "TITLE"}, body["columns"])
	assert.Equal(t, map[string]interface{}{}, body["filter"])

	require.Len(t, rows, 2)
	assert.Equal(t, "Faculty", rows[0]["TITLE"])
	assert.Equal(t, float64(3), rows[0]["CHUNK_INDEX"])
}

func TestSearchOmitsEmptyColumns(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	rows, err := client.Search(context.Background(), Query{Text: "departments"})
	require.NoError(t, err)
	assert.Empty(t, rows)
	_, hasColumns := body["columns"]
	assert.False(t, hasColumns)
	assert.Equal(t, float64(5), body["limit"])
}

func TestSearchErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"search service does not exist"}`))
	})

	_, err := client.Search(context.Background(), Query{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "search service does not exist")
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})
	_, err := client.Search(context.Background(), Query{Text: "  "})
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 5, ClampLimit(0, 5))
	assert.Equal(t, 5, ClampLimit(-1, 0))
	assert.Equal(t, 1, ClampLimit(1, 5))
	assert.Equal(t, MaxLimit, ClampLimit(99, 5))
}
