package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroqClientComplete(t *testing.T) {
	var gotAuth, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel, _ = req["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"Fundo adquire galpão por R$ 120 milhões."}}]
		}`))
	}))
	defer server.Close()

	c := NewGroqClient("sk-test", server.URL, Options{Model: "llama-3.3-70b-versatile", MaxTokens: 200})
	got, err := c.Complete(context.Background(), "Resuma o comunicado")
	require.NoError(t, err)
	assert.Equal(t, "Fundo adquire galpão por R$ 120 milhões.", got)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "llama-3.3-70b-versatile", gotModel)
}

func TestGroqClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewGroqClient("sk-test", server.URL, Options{Model: "llama-3.3-70b-versatile"})
	_, err := c.Complete(context.Background(), "Resuma")
	assert.Error(t, err)
}

func TestGroqClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limit exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewGroqClient("sk-test", server.URL, Options{Model: "llama-3.3-70b-versatile"})
	_, err := c.Complete(context.Background(), "Resuma")
	assert.Error(t, err)
}
