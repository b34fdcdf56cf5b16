package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

// OllamaClient calls the Ollama HTTP API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllamaClient constructs a client with the provided base URL.
func NewOllamaClient(baseURL string) *OllamaClient {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &OllamaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// EmbedText generates an embedding for the input text.
func (c *OllamaClient) EmbedText(ctx context.Context, model string, text string, dimensions int) ([]float32, error) {
	out, err := c.embed(ctx, model, text, dimensions)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ollama embed response missing embeddings")
	}
	return out[0], nil
}

// EmbedTexts generates embeddings for a batch of texts in one request.
func (c *OllamaClient) EmbedTexts(ctx context.Context, model string, texts []string, dimensions int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	out, err := c.embed(ctx, model, texts, dimensions)
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("ollama embed count mismatch: got %d, want %d", len(out), len(texts))
	}
	return out, nil
}

func (c *OllamaClient) embed(ctx context.Context, model string, input any, dimensions int) ([][]float32, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("ollama embedding model required")
	}
	reqBody := ollamaEmbedRequest{
		Model: model,
		Input: input,
	}
	if dimensions > 0 {
		reqBody.Dimensions = dimensions
	}
	var resp ollamaEmbedResponse
	if _, err := c.doJSON(ctx, "/api/embed", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) > 0 {
		return resp.Embeddings, nil
	}
	if len(resp.Embedding) > 0 {
		return [][]float32{resp.Embedding}, nil
	}
	return nil, fmt.Errorf("ollama embed response missing embeddings")
}

// GenerateText returns the model response for a prompt pair.
func (c *OllamaClient) GenerateText(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", fmt.Errorf("ollama generation model required")
	}
	reqBody := ollamaGenerateRequest{
		Model:  model,
		System: systemPrompt,
		Prompt: userPrompt,
		Stream: false,
	}
	var resp ollamaGenerateResponse
	if _, err := c.doJSON(ctx, "/api/generate", reqBody, &resp); err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return text, nil
}

func (c *OllamaClient) doJSON(ctx context.Context, path string, payload any, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp ollamaErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return resp.StatusCode, fmt.Errorf("ollama api error: %s", errResp.Error)
		}
		return resp.StatusCode, fmt.Errorf("ollama api error: %s", resp.Status)
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

type ollamaEmbedRequest struct {
	Model      string `json:"model"`
	Input      any    `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Embedding  []float32   `json:"embedding"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}
