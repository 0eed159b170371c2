package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc_Complete(t *testing.T) {
	r := Func(func(_ context.Context, prompt string) (string, error) {
		return strings.ToUpper(prompt), nil
	})
	out, err := r.Complete(context.Background(), "split")
	require.NoError(t, err)
	assert.Equal(t, "SPLIT", out)
}

func TestNewClients_RequireKey(t *testing.T) {
	_, err := NewClaude("")
	assert.Error(t, err)
	_, err = NewGemini("")
	assert.Error(t, err)
}

func TestClaude_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, claudeAPIVersion, r.Header.Get("anthropic-version"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"[{\"name\":\"a\"}]"}]}`))
	}))
	defer srv.Close()

	c, err := NewClaude("test-key", WithBaseURL(srv.URL), WithModel("claude-test"))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"a"}]`, out)
}

func TestClaude_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit","message":"slow down"}}`))
	}))
	defer srv.Close()

	c, err := NewClaude("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClaude_NoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c, err := NewClaude("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "hello")
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestClaude_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClaude("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, "hello")
	require.Error(t, err)
}

func TestGemini_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini("g-key", WithBaseURL(srv.URL), WithModel("gemini-test"))
	require.NoError(t, err)

	out, err := g.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestGemini_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad key"}}`))
	}))
	defer srv.Close()

	g, err := NewGemini("g-key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestGemini_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g, err := NewGemini("g-key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
