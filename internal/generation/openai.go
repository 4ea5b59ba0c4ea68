package generation

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAI returns a Client backed by the OpenAI chat completions API.
// baseURL may point at any compatible endpoint.
func NewOpenAI(apiKey, model, baseURL string, src SourceReader) (Client, error) {
	if apiKey == "" {
		return nil, errors.New("GENERATION_API_KEY is required for openai")
	}
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &promptClient{
		llm:     &openAICompleter{client: openai.NewClient(opts...), model: model},
		sources: src,
	}, nil
}

func (o *openAICompleter) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *openAICompleter) provider() string { return "openai" }
