// Package prompt assembles the text sent to the hosted LLM from search
// results, recent conversation turns and the user's question.
package prompt

import (
	"fmt"
	"strings"

	"docsearch/internal/model"
	"docsearch/internal/search"
)

const (
	NoDocumentsFound     = "No relevant documents found."
	DefaultHistoryLength = 5
)

const DefaultInstructions = `- You are a helpful AI assistant answering questions about the uploaded document collection.
- You will be given search results from those documents as context inside the search_results section.
- Use the context and conversation history to provide accurate, coherent answers.
- Use markdown formatting: headers (starting with ##), code blocks, bullet points, and backticks for inline code.
- Don't start responses with a markdown header.
- Be brief but clear and informative.
- Provide specific details from the search results.
- If the search results don't contain relevant information, say so clearly.
- Include source links at the end when available.
- Don't say things like "according to the provided context" or "based on the search results".`

// BuildContext renders normalized results as numbered document blocks.
func BuildContext(results []search.Result) string {
	if len(results) == 0 {
		return NoDocumentsFound
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "[Document %d - %s]", i+1, r.Title)
		if r.Uploader != "" {
			fmt.Fprintf(&b, "\nUploaded by: %s", r.Uploader)
		}
		if r.ChunkIndex != nil {
			fmt.Fprintf(&b, "\nChunk: %d", *r.ChunkIndex)
		}
		if r.Snippet != "" {
			b.WriteString("\n" + r.Snippet)
		}
		if r.SourceURL != "" {
			fmt.Fprintf(&b, "\nSource: %s", r.SourceURL)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// HistoryToText renders messages as "[role]: content" lines in order.
func HistoryToText(messages []model.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("[%s]: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n")
}

// Recent returns the last n messages.
func Recent(messages []model.ChatMessage, n int) []model.ChatMessage {
	if n <= 0 || len(messages) == 0 {
		return nil
	}
	if n >= len(messages) {
		return messages
	}
	return messages[len(messages)-n:]
}

// Builder holds the static parts of a prompt.
type Builder struct {
	Instructions  string
	HistoryLength int
}

func NewBuilder(instructions string, historyLength int) Builder {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}
	if historyLength <= 0 {
		historyLength = DefaultHistoryLength
	}
	return Builder{Instructions: instructions, HistoryLength: historyLength}
}

// Build joins the instructions, search results, recent conversation and
// question sections in that order. Empty optional sections are left out.
// The no-documents sentinel is kept as a bare note instead of a
// search_results section, so the model never sees an empty result block.
func (b Builder) Build(question, searchContext, history string) string {
	parts := []string{section("instructions", b.Instructions)}
	switch searchContext {
	case "":
	case NoDocumentsFound:
		parts = append(parts, NoDocumentsFound)
	default:
		parts = append(parts, section("search_results", searchContext))
	}
	if history != "" {
		parts = append(parts, section("recent_conversation", history))
	}
	parts = append(parts, section("question", question))
	return strings.Join(parts, "\n\n")
}

// HistoryFor renders the window of messages the builder includes in a prompt.
func (b Builder) HistoryFor(messages []model.ChatMessage) string {
	return HistoryToText(Recent(messages, b.HistoryLength))
}

func section(name, body string) string {
	return "<" + name + ">\n" + body + "\n</" + name + ">"
}
