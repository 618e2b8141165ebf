package search

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Row is one raw record returned by the hosted search service.
type Row map[string]interface{}

// Result is the canonical shape every search row is reduced to.
type Result struct {
	Title      string `json:"title"`
	SourceURL  string `json:"source_url,omitempty"`
	Uploader   string `json:"uploader,omitempty"`
	ChunkIndex *int   `json:"chunk_index,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

var (
	titleFields    = []string{"TITLE", "FILE_NAME"}
	sourceFields   = []string{"SOURCE_URL", "SOURCE"}
	uploaderFields = []string{"UPLOADED_BY", "UPLOADER"}
	chunkFields    = []string{"CHUNK_INDEX", "CHUNK_ID"}
	snippetFields  = []string{"CONTENT", "CHUNK", "PAGE_CHUNK"}
)

var escapeReplacer = strings.NewReplacer(`\r\n`, "\n", `\n`, "\n", `\t`, "\t")

// Normalize maps a raw row onto a Result. index is the 1-based position of
// the row and names the placeholder title. It never fails.
func Normalize(row Row, index int) Result {
	title := lookupText(row, titleFields)
	if title == "" {
		title = fmt.Sprintf("Document %d", index)
	}
	return Result{
		Title:      title,
		SourceURL:  lookupText(row, sourceFields),
		Uploader:   lookupText(row, uploaderFields),
		ChunkIndex: lookupInt(row, chunkFields),
		Snippet:    lookupText(row, snippetFields),
	}
}

// NormalizeAll normalizes rows in order.
func NormalizeAll(rows []Row) []Result {
	results := make([]Result, 0, len(rows))
	for i, row := range rows {
		results = append(results, Normalize(row, i+1))
	}
	return results
}

// CleanText unescapes literal \r\n, \n and \t sequences in strings. nil and
// non-string values are returned unchanged.
func CleanText(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return escapeReplacer.Replace(s)
}

// SourceURLs returns the distinct source URLs of results in first-seen order.
func SourceURLs(results []Result) []string {
	seen := make(map[string]struct{}, len(results))
	var urls []string
	for _, r := range results {
		if r.SourceURL == "" {
			continue
		}
		if _, ok := seen[r.SourceURL]; ok {
			continue
		}
		seen[r.SourceURL] = struct{}{}
		urls = append(urls, r.SourceURL)
	}
	return urls
}

// lookupText returns the first candidate holding a non-empty value.
func lookupText(row Row, fields []string) string {
	for _, field := range fields {
		value, ok := row[field]
		if !ok || value == nil {
			continue
		}
		var text string
		switch v := CleanText(value).(type) {
		case string:
			text = v
		case bool:
			if !v {
				continue
			}
			text = strconv.FormatBool(v)
		default:
			text = fmt.Sprint(v)
		}
		if text != "" {
			return text
		}
	}
	return ""
}

func lookupInt(row Row, fields []string) *int {
	for _, field := range fields {
		value, ok := row[field]
		if !ok || value == nil {
			continue
		}
		var n int
		switch v := value.(type) {
		case int:
			n = v
		case int64:
			n = int(v)
		case float64:
			if v != math.Trunc(v) {
				continue
			}
			n = int(v)
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				continue
			}
			n = parsed
		default:
			continue
		}
		return &n
	}
	return nil
}
