package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"

	"docsearch/internal/config"
)

var ErrStreamConsumed = errors.New("generation stream already consumed")

// Generator produces an answer for a prompt as a finite sequence of text
// fragments. A sequence can be ranged over only once.
type Generator interface {
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// OpenAIGenerator calls an OpenAI-compatible chat completion endpoint in
// streaming mode. Requests are never retried.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(cfg config.LLMConfig) *OpenAIGenerator {
	options := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey == "" {
		log.Info("llm api key is not set, will try unauthenticated access")
	} else {
		options = append(options, option.WithAPIKey(cfg.APIKey))
	}

	client := openai.NewClient(options...)
	return &OpenAIGenerator{client: &client, model: cfg.Model}
}

func (g *OpenAIGenerator) Model() string {
	return g.model
}

func (g *OpenAIGenerator) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return once(func(yield func(string, error) bool) {
		stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: g.model,
		})
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("llm stream failed: %w", err))
		}
	})
}

// Collect drains seq, forwarding every fragment to onChunk, and returns the
// concatenated text. It stops at the first error from either side.
func Collect(seq iter.Seq2[string, error], onChunk func(string) error) (string, error) {
	var full strings.Builder
	for text, err := range seq {
		if err != nil {
			return full.String(), err
		}
		full.WriteString(text)
		if onChunk != nil {
			if err := onChunk(text); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}

func once(seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}
		seq(yield)
	}
}
