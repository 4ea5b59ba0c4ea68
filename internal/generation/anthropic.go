package generation

import (
	"context"
	"errors"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

type anthropicCompleter struct {
	apiKey   string
	settings types.RequestSettings
}

// NewAnthropic returns a Client backed by the Anthropic messages API.
func NewAnthropic(apiKey, model string, src SourceReader) (Client, error) {
	if apiKey == "" {
		return nil, errors.New("GENERATION_API_KEY is required for anthropic")
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	return &promptClient{
		llm: &anthropicCompleter{
			apiKey: apiKey,
			settings: types.RequestSettings{
				Model:       model,
				MaxTokens:   8000,
				Temperature: 0.4,
			},
		},
		sources: src,
	}, nil
}

// complete runs the blocking llmkit call off the caller's goroutine so the
// context deadline still applies.
func (a *anthropicCompleter) complete(ctx context.Context, system, user string) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := anthropic.PromptWithSettings(system, user, "", a.apiKey, a.settings)
		if err != nil {
			done <- result{err: err}
			return
		}
		if len(resp.Content) == 0 {
			done <- result{err: errors.New("anthropic: no content in response")}
			return
		}
		done <- result{text: resp.Content[0].Text}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.text, r.err
	}
}

func (a *anthropicCompleter) provider() string { return "anthropic" }
