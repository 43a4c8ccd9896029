package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/paperline/pkg/llm"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/httpclient"
	"github.com/kart-io/paperline/pkg/utils/json"
)

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestNewProvider_Registered(t *testing.T) {
	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"api_key": "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "text-embedding-ada-002", llm.ModelOf(p))
}

func TestEmbed_OrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req embeddingRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "text-embedding-ada-002", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.2],"index":1},{"embedding":[0.1],"index":0}],"model":"text-embedding-ada-002"}`))
	}))
	defer server.Close()

	p := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: "sk-test", EmbedModel: "text-embedding-ada-002", Timeout: 5 * time.Second})
	out, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1}, {0.2}}, out)
}

func TestEmbedSingle_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	p := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: "bad", Timeout: 5 * time.Second})
	_, err := p.EmbedSingle(context.Background(), "a")

	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestEmbedSingle_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	p := NewProviderWithConfig(&Config{BaseURL: server.URL, APIKey: "k", Timeout: 5 * time.Second})
	_, err := p.EmbedSingle(context.Background(), "a")
	assert.ErrorIs(t, err, errs.ErrEmbeddingEmpty)
}
