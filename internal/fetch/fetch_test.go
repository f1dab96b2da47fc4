package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetsHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := NewClient(Options{UserAgent: "Mozilla/5.0 (test)"})
	body, err := c.Get(context.Background(), server.URL, map[string]string{"Referer": "https://example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "Mozilla/5.0 (test)", gotUA)
	assert.Equal(t, "https://example.com/", gotReferer)
}

func TestGetNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	c := NewClient(Options{})
	_, err := c.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}

func TestGetFollowsMetaRefresh(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/entry", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><meta http-equiv="refresh" content="0; url=/final"></head></html>`)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("destination"))
	})

	c := NewClient(Options{})
	body, err := c.Get(context.Background(), server.URL+"/entry", nil)
	require.NoError(t, err)
	assert.Equal(t, "destination", string(body))
}

func TestGetMetaRefreshHopCap(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	// Every page points at the next, forever.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<meta http-equiv="refresh" content="0; url=%s/loop">`, server.URL)
	})

	c := NewClient(Options{MaxHops: 2})
	_, err := c.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meta-refresh")
}

func TestGetRedirectHopCap(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/next", http.StatusFound)
	})

	c := NewClient(Options{MaxHops: 2})
	_, err := c.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"brl":612345.10,"brl_24h_change":-6.4}}`))
	}))
	defer server.Close()

	var payload map[string]map[string]float64
	c := NewClient(Options{})
	require.NoError(t, c.GetJSON(context.Background(), server.URL, nil, &payload))
	assert.InDelta(t, 612345.10, payload["bitcoin"]["brl"], 0.001)

	var target struct{ X int }
	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer badServer.Close()
	assert.Error(t, c.GetJSON(context.Background(), badServer.URL, nil, &target))
}

func TestMetaRefreshIgnoredForNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`<meta http-equiv="refresh" content="0; url=/elsewhere">`))
	}))
	defer server.Close()

	c := NewClient(Options{})
	body, err := c.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Contains(t, string(body), "refresh", "non-HTML bodies are returned verbatim")
}
