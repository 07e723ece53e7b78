package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"mailpilot-backend/pkg/retry"

	"github.com/tidwall/gjson"
)

const (
	geminiBaseURL        = "https://generativelanguage.googleapis.com/v1beta/models"
	geminiEmbeddingModel = "text-embedding-004"
)

// GeminiClient talks to the Gemini REST API directly.
type GeminiClient struct {
	apiKey       string
	defaultModel string
	httpClient   *http.Client
	policy       retry.Policy
}

func NewGeminiClient(apiKey, defaultModel string, policy retry.Policy) *GeminiClient {
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}
	return &GeminiClient{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		httpClient:   &http.Client{},
		policy:       policy,
	}
}

func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}
	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiBaseURL, model, g.apiKey)

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": req.Prompt}}},
		},
	}
	if req.System != "" {
		payload["system_instruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": req.System}},
		}
	}
	if req.JSONMode {
		payload["generationConfig"] = map[string]interface{}{
			"responseMimeType": "application/json",
		}
	}

	respBody, err := g.post(ctx, url, payload)
	if err != nil {
		return "", err
	}

	text := gjson.GetBytes(respBody, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return text.String(), nil
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float64, error) {
	url := fmt.Sprintf("%s/%s:embedContent?key=%s", geminiBaseURL, geminiEmbeddingModel, g.apiKey)

	payload := map[string]interface{}{
		"content": map[string]interface{}{
			"parts": []map[string]string{{"text": text}},
		},
	}

	respBody, err := g.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	values := gjson.GetBytes(respBody, "embedding.values")
	if !values.Exists() {
		return nil, fmt.Errorf("gemini returned no embedding")
	}
	raw := values.Array()
	vector := make([]float64, 0, len(raw))
	for _, v := range raw {
		vector = append(vector, v.Float())
	}
	return vector, nil
}

func (g *GeminiClient) post(ctx context.Context, url string, payload map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var respBody []byte
	err = g.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("gemini request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(respBody))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}
