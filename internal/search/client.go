package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"docsearch/internal/config"
)

const MaxLimit = 20

// Query is one request to the hosted search service.
type Query struct {
	Text    string
	Columns []string
	Filter  map[string]interface{}
	Limit   int
}

// Searcher is the contract the chat pipeline consumes.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Row, error)
}

// Client talks to a Cortex-style search service over REST.
type Client struct {
	httpClient   *http.Client
	endpoint     string
	token        string
	defaultLimit int
}

func NewClient(cfg config.SearchConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		endpoint:     Endpoint(cfg.BaseURL, cfg.Database, cfg.Schema, cfg.Service),
		token:        cfg.Token,
		defaultLimit: cfg.DefaultLimit,
	}
}

// Endpoint builds the query URL of a named search service.
func Endpoint(baseURL, database, schema, service string) string {
	return fmt.Sprintf("%s/api/v2/databases/%s/schemas/%s/cortex-search-services/%s:query",
		strings.TrimRight(baseURL, "/"),
		url.PathEscape(database),
		url.PathEscape(schema),
		url.PathEscape(service),
	)
}

// ClampLimit bounds a requested result count to 1..MaxLimit, using fallback for non-positive values.
func ClampLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

func (c *Client) Search(ctx context.Context, q Query) ([]Row, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("search query is empty")
	}

	filter := q.Filter
	if filter == nil {
		filter = map[string]interface{}{}
	}
	reqBody := map[string]interface{}{
		"query":  text,
		"filter": filter,
		"limit":  ClampLimit(q.Limit, c.defaultLimit),
	}
	if len(q.Columns) > 0 {
		reqBody["columns"] = q.Columns
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build search request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		message := gjson.GetBytes(raw, "message").String()
		if message == "" {
			message = string(raw)
		}
		return nil, fmt.Errorf("search response status %d: %s", resp.StatusCode, message)
	}
	return parseRows(raw)
}

func parseRows(raw []byte) ([]Row, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("parse search response failed: invalid json")
	}
	results := gjson.GetBytes(raw, "results")
	if !results.Exists() {
		return nil, nil
	}
	if !results.IsArray() {
		return nil, fmt.Errorf("parse search response failed: results is not an array")
	}

	items := results.Array()
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		fields, ok := item.Value().(map[string]interface{})
		if !ok {
			continue
		}
		rows = append(rows, Row(fields))
	}
	return rows, nil
}
