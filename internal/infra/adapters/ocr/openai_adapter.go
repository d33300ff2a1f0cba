package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.OCRServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter sends images to an OpenAI-compatible Chat Completions
// endpoint as data URLs. SDK retries are disabled; rotation handles 429s.
type OpenAIAdapter struct {
	base string // e.g., https://api.openai.com/v1
}

func NewOpenAIAdapter(base string) *OpenAIAdapter {
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAIAdapter{base: strings.TrimRight(base, "/") + "/"}
}

func (o *OpenAIAdapter) Provider() string { return "openai" }

func (o *OpenAIAdapter) client(cred model.Credential) openai.Client {
	return openai.NewClient(
		option.WithAPIKey(cred.String()),
		option.WithBaseURL(o.base),
		option.WithMaxRetries(0),
	)
}

func (o *OpenAIAdapter) ExtractText(ctx context.Context, modelName string, image model.ImageItem, cred model.Credential) (string, error) {
	if cred.IsEmpty() {
		return "", &domain.RemoteError{Message: "openai: empty api key"}
	}
	c := o.client(cred)
	dataURL := "data:" + image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(image.Data)

	resp, err := c.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(adapter.ExtractionPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &domain.RemoteError{Message: "openai: response has no choices"}
	}
	for _, ch := range resp.Choices {
		if ch.Message.Content != "" {
			return ch.Message.Content, nil
		}
	}
	ch := resp.Choices[0]
	switch {
	case ch.Message.Refusal != "":
		return "", &domain.RemoteError{Message: "openai: refused: " + ch.Message.Refusal}
	case ch.FinishReason != "":
		return "", &domain.RemoteError{Message: "openai: choice has no text (finish reason " + ch.FinishReason + ")"}
	default:
		return "", &domain.RemoteError{Message: "openai: choice has no text"}
	}
}

// ListModels returns every model id the endpoint reports; OpenAI does not
// expose capabilities, so no filtering is done.
func (o *OpenAIAdapter) ListModels(ctx context.Context, cred model.Credential) ([]adapter.ModelInfo, error) {
	c := o.client(cred)
	iter := c.Models.ListAutoPaging(ctx)
	var out []adapter.ModelInfo
	for iter.Next() {
		m := iter.Current()
		out = append(out, adapter.ModelInfo{Name: m.ID, DisplayName: m.ID})
	}
	if err := iter.Err(); err != nil {
		return nil, classifyOpenAIError(err)
	}
	return out, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return domain.RateLimitedError(msg)
		}
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &domain.RemoteError{StatusCode: apiErr.StatusCode, Message: msg}
	}
	return &domain.RemoteError{Message: err.Error()}
}
