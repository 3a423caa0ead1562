package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedder(t *testing.T) {
	t.Run("embeds a query", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "text-embedding-3-small", req.Model)
			assert.Equal(t, 256, req.Dimensions)

			w.Write([]byte(`{"data":[{"index":0,"embedding":[0.25,-0.5]}]}`))
		}))
		t.Cleanup(srv.Close)

		e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "key", BaseURL: srv.URL, Dimensions: 256}, nil)
		vec, err := e.EmbedQuery(context.Background(), "what is virtue")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.25, -0.5}, vec)
	})

	t.Run("empty data is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}))
		t.Cleanup(srv.Close)

		e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "key", BaseURL: srv.URL}, nil)
		_, err := e.EmbedQuery(context.Background(), "q")
		require.Error(t, err)
	})

	t.Run("http error includes status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key"}}`))
		}))
		t.Cleanup(srv.Close)

		e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "key", BaseURL: srv.URL}, nil)
		_, err := e.EmbedQuery(context.Background(), "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status=401")
	})
}
