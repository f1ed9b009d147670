package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DescribePrompt is the default question for screen descriptions.
const DescribePrompt = "Describe what is currently displayed on this screen in 2-3 sentences."

const visionMaxTokens = 1024

// AnthropicBackend calls the Messages API.
type AnthropicBackend struct {
	client      *anthropic.Client
	visionModel string
}

// NewAnthropic creates a backend. visionModel is used by DescribeImage.
func NewAnthropic(apiKey, baseURL, visionModel string, timeout time.Duration) *AnthropicBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if visionModel == "" {
		visionModel = "claude-sonnet-4-5"
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicBackend{client: &client, visionModel: visionModel}
}

func (b *AnthropicBackend) Chat(ctx context.Context, req Request) (string, error) {
	var messages []anthropic.MessageParam
	for _, h := range req.History {
		if h.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(h.Content)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(h.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(req.MaxTokens),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	return messageText(resp), nil
}

// DescribeImage sends img with prompt in one user turn.
func (b *AnthropicBackend) DescribeImage(ctx context.Context, img []byte, mimeType, prompt string) (string, error) {
	if prompt == "" {
		prompt = DescribePrompt
	}
	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.visionModel),
		MaxTokens: visionMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(img)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision API error: %w", err)
	}
	return messageText(resp), nil
}

func messageText(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return sb.String()
}
