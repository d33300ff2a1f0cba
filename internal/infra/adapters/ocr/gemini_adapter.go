// File: internal/infra/adapters/ocr/gemini_adapter.go
package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"gemini-batch-ocr/internal/domain"
	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
)

var _ adapter.OCRServiceAdapter = (*GeminiAdapter)(nil)

// maxCachedClients bounds the per-key client cache. Keys removed from the pool
// age out as new ones are used.
const maxCachedClients = 32

// GeminiAdapter calls generateContent through the official SDK. The SDK
// binds one API key per client, so clients are cached per credential.
type GeminiAdapter struct {
	baseURL string

	mu         sync.Mutex
	clients    map[model.Credential]*genai.Client
	order      []model.Credential // least recently used first
	maxClients int
}

// NewGeminiAdapter returns an adapter for baseURL. An empty baseURL uses the
// SDK default endpoint.
func NewGeminiAdapter(baseURL string) *GeminiAdapter {
	return &GeminiAdapter{
		baseURL:    baseURL,
		clients:    make(map[model.Credential]*genai.Client),
		maxClients: maxCachedClients,
	}
}

func (g *GeminiAdapter) Provider() string { return "gemini" }

func (g *GeminiAdapter) client(ctx context.Context, cred model.Credential) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[cred]; ok {
		g.touch(cred)
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cred.String(),
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	g.clients[cred] = c
	g.order = append(g.order, cred)
	for len(g.order) > g.maxClients {
		delete(g.clients, g.order[0])
		g.order = g.order[1:]
	}
	return c, nil
}

// touch moves cred to the most recently used end. Callers hold g.mu.
func (g *GeminiAdapter) touch(cred model.Credential) {
	for i, k := range g.order {
		if k == cred {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.order = append(g.order, cred)
}

// ExtractText sends the extraction prompt and the image inline, as one user
// turn, and returns the text of the first candidate.
func (g *GeminiAdapter) ExtractText(ctx context.Context, modelName string, image model.ImageItem, cred model.Credential) (string, error) {
	if cred.IsEmpty() {
		return "", &domain.RemoteError{Message: "gemini: empty api key"}
	}
	c, err := g.client(ctx, cred)
	if err != nil {
		return "", &domain.RemoteError{Message: err.Error()}
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: adapter.ExtractionPrompt},
			{InlineData: &genai.Blob{MIMEType: image.MIMEType, Data: image.Data}},
		},
	}}
	resp, err := c.Models.GenerateContent(ctx, strings.TrimPrefix(modelName, "models/"), contents, nil)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	return candidateText(resp)
}

// ListModels returns the models that support generateContent.
func (g *GeminiAdapter) ListModels(ctx context.Context, cred model.Credential) ([]adapter.ModelInfo, error) {
	c, err := g.client(ctx, cred)
	if err != nil {
		return nil, &domain.RemoteError{Message: err.Error()}
	}
	var out []adapter.ModelInfo
	for m, err := range c.Models.All(ctx) {
		if err != nil {
			return nil, classifyGeminiError(err)
		}
		if m == nil || !supports(m.SupportedActions, "generateContent") {
			continue
		}
		out = append(out, adapter.ModelInfo{
			Name:        strings.TrimPrefix(m.Name, "models/"),
			DisplayName: m.DisplayName,
		})
	}
	return out, nil
}

func supports(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

// candidateText joins the text parts of the first candidate. A reply with no
// candidate, no content or no text part is a terminal error.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", &domain.RemoteError{Message: "gemini: empty response"}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			msg := fmt.Sprintf("gemini: prompt blocked (%s)", fb.BlockReason)
			if fb.BlockReasonMessage != "" {
				msg += ": " + fb.BlockReasonMessage
			}
			return "", &domain.RemoteError{Message: msg}
		}
		return "", &domain.RemoteError{Message: "gemini: response has no candidates"}
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	found := false
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p != nil && p.Text != "" && !p.Thought {
				sb.WriteString(p.Text)
				found = true
			}
		}
	}
	if !found {
		msg := "gemini: candidate has no text"
		if cand.FinishReason != "" {
			msg += fmt.Sprintf(" (finish reason %s)", cand.FinishReason)
		}
		return "", &domain.RemoteError{Message: msg}
	}
	return sb.String(), nil
}

// classifyGeminiError maps HTTP 429 to a rate limit and everything else to a
// terminal RemoteError carrying the provider's message.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiError(apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiError(apiErrPtr.Code, apiErrPtr.Message)
	}
	return &domain.RemoteError{Message: err.Error()}
}

func apiError(code int, msg string) error {
	if code == http.StatusTooManyRequests {
		return domain.RateLimitedError(msg)
	}
	if msg == "" {
		msg = fmt.Sprintf("gemini http %d", code)
	}
	return &domain.RemoteError{StatusCode: code, Message: msg}
}
