package embedprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ragcore/ragcore/internal/apierr"
)

// HTTPEmbedder calls a remote embedding endpoint, sending api_key as a
// bearer token (§6 embedding_provider.api_key). The endpoint is expected
// to accept {"input": [...texts]} and return {"embeddings": [[...floats]]}
// in the same order as the request.
type HTTPEmbedder struct {
	endpoint   string
	apiKey     string
	dim        int
	httpClient *http.Client
}

// NewHTTPEmbedder creates a remote embedding provider client.
func NewHTTPEmbedder(endpoint, apiKey string, dim int, httpClient *http.Client) *HTTPEmbedder {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPEmbedder{endpoint: endpoint, apiKey: apiKey, dim: dim, httpClient: httpClient}
}

type httpEmbedRequest struct {
	Input []string `json:"input"`
}

type httpEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(httpEmbedRequest{Input: texts})
	if err != nil {
		return nil, apierr.Wrap("embedprovider.http.encode", fmt.Errorf("%w: %v", apierr.ErrEmbeddingProvider, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apierr.Wrap("embedprovider.http.request", fmt.Errorf("%w: %v", apierr.ErrEmbeddingProvider, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Wrap("embedprovider.http.do", fmt.Errorf("%w: %v", apierr.ErrEmbeddingProvider, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, apierr.Wrap("embedprovider.http.status",
			fmt.Errorf("%w: status %d: %s", apierr.ErrEmbeddingProvider, resp.StatusCode, string(data)))
	}

	var parsed httpEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apierr.Wrap("embedprovider.http.decode", fmt.Errorf("%w: %v", apierr.ErrEmbeddingProvider, err))
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, apierr.Wrap("embedprovider.http.decode",
			fmt.Errorf("%w: expected %d embeddings, got %d", apierr.ErrEmbeddingProvider, len(texts), len(parsed.Embeddings)))
	}
	return parsed.Embeddings, nil
}

func (e *HTTPEmbedder) Dim() int { return e.dim }
