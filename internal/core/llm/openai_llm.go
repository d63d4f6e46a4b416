package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/markdave123-py/docingest/internal/core"
)

type OpenAIOptions struct {
	APIKey         string
	BaseURL        string
	Model          string
	VisionModel    string
	Temperature    float64
	MaxImageTokens int64
}

type OpenAILLM struct {
	client openai.Client
	opts   OpenAIOptions
}

func NewOpenAILLM(opts OpenAIOptions) (*OpenAILLM, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is empty", core.ErrConfiguration)
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.VisionModel == "" {
		opts.VisionModel = opts.Model
	}
	if opts.MaxImageTokens <= 0 {
		opts.MaxImageTokens = 2048
	}

	// Retries are owned by ResilientProvider.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAILLM{client: openai.NewClient(reqOpts...), opts: opts}, nil
}

func (o *OpenAILLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.opts.Model),
		Messages:    messages,
		Temperature: openai.Float(o.opts.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai generate: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// DescribeImage sends the image inline as a base64 data URL.
func (o *OpenAILLM) DescribeImage(ctx context.Context, image []byte, mimeType, instruction string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(o.opts.VisionModel),
		MaxTokens: openai.Int(o.opts.MaxImageTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
				openai.TextContentPart(instruction),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai vision: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai vision: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ core.LLMProvider = (*OpenAILLM)(nil)
