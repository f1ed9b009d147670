package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// GeminiBaseURL is the Generative Language API root.
const GeminiBaseURL = "https://generativelanguage.googleapis.com"

const geminiVisionModel = "gemini-2.5-flash"

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiBackend calls generateContent over REST.
type GeminiBackend struct {
	client *resty.Client
	apiKey string
}

// NewGemini creates a backend for the public endpoint, or baseURL when set.
func NewGemini(apiKey, baseURL string, timeout time.Duration) *GeminiBackend {
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &GeminiBackend{client: client, apiKey: apiKey}
}

// Chat sends the system prompt as a leading user turn acknowledged by the
// model, since the v1beta contents array has no system role.
func (b *GeminiBackend) Chat(ctx context.Context, req Request) (string, error) {
	var contents []geminiContent
	if req.SystemPrompt != "" {
		contents = append(contents,
			geminiContent{Role: "user", Parts: []geminiPart{{Text: req.SystemPrompt}}},
			geminiContent{Role: "model", Parts: []geminiPart{{Text: "Understood."}}},
		)
	}
	for _, h := range req.History {
		role := "user"
		if h.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: h.Content}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: req.Message}}})

	return b.generate(ctx, req.Model, contents, "gemini API error")
}

// DescribeImage sends img inline with prompt.
func (b *GeminiBackend) DescribeImage(ctx context.Context, img []byte, mimeType, prompt string) (string, error) {
	if prompt == "" {
		prompt = DescribePrompt
	}
	contents := []geminiContent{{Parts: []geminiPart{
		{InlineData: &geminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(img)}},
		{Text: prompt},
	}}}
	return b.generate(ctx, geminiVisionModel, contents, "gemini vision API error")
}

func (b *GeminiBackend) generate(ctx context.Context, model string, contents []geminiContent, label string) (string, error) {
	var out geminiResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("key", b.apiKey).
		SetBody(geminiRequest{Contents: contents}).
		SetResult(&out).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", model))
	if err != nil {
		return "", fmt.Errorf("%s: %w", label, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%s %d: %s", label, resp.StatusCode(), resp.String())
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
