package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1/"

// OpenAIBackend speaks the chat completions API, which serves both OpenAI
// and Groq.
type OpenAIBackend struct {
	client *openai.Client
	name   string
}

// NewOpenAI creates a backend for api.openai.com, or for baseURL when set.
func NewOpenAI(apiKey, baseURL string, timeout time.Duration) *OpenAIBackend {
	return newChatCompletions("openai", apiKey, baseURL, timeout)
}

// NewGroq creates a backend for Groq, or for baseURL when set.
func NewGroq(apiKey, baseURL string, timeout time.Duration) *OpenAIBackend {
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	return newChatCompletions("groq", apiKey, baseURL, timeout)
}

func newChatCompletions(name, apiKey, baseURL string, timeout time.Duration) *OpenAIBackend {
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
	client := openai.NewClient(opts...)
	return &OpenAIBackend{client: &client, name: name}
}

func (b *OpenAIBackend) Chat(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, h := range req.History {
		if h.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(h.Content))
		} else {
			messages = append(messages, openai.UserMessage(h.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Message))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
