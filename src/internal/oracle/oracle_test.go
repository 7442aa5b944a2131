package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func completionResponse(content string) string {
	return `{
		"id": "cmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [
			{"index": 0, "message": {"role": "assistant", "content": ` + mustJSON(content) + `}, "finish_reason": "stop"}
		]
	}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingKeyFailsFast", func(t *testing.T) {
		c := NewClient(Config{Model: "gpt-4o-mini"}, zap.NewNop())
		_, err := c.Complete(ctx, "hello", Options{})
		assert.ErrorIs(t, err, ErrAPIKeyMissing)
	})

	t.Run("CompletesAndTrims", func(t *testing.T) {
		var gotReq map[string]any
		c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(completionResponse("  title ILIKE '%go%'  \n")))
		})

		out, err := c.Complete(ctx, "translate this", Options{Temperature: 0.2, MaxTokens: 300})
		require.NoError(t, err)
		assert.Equal(t, "title ILIKE '%go%'", out)

		assert.Equal(t, "gpt-4o-mini", gotReq["model"])
		assert.InDelta(t, 0.2, gotReq["temperature"], 0.001)
		assert.EqualValues(t, 300, gotReq["max_tokens"])
	})

	t.Run("RateLimitMapsToQuota", func(t *testing.T) {
		c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "Rate limit reached", "type": "requests"}}`))
		})

		_, err := c.Complete(ctx, "anything", Options{})
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	})

	t.Run("QuotaMessageMapsToQuota", func(t *testing.T) {
		c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": {"message": "You exceeded your current quota", "type": "insufficient_quota"}}`))
		})

		_, err := c.Complete(ctx, "anything", Options{})
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	})

	t.Run("EmptyChoices", func(t *testing.T) {
		c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": "cmpl-2", "object": "chat.completion", "choices": []}`))
		})

		_, err := c.Complete(ctx, "anything", Options{})
		assert.ErrorIs(t, err, ErrNoChoices)
	})

	t.Run("TimeoutSurfacesDeadline", func(t *testing.T) {
		c := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(completionResponse("late")))
		})
		c.timeout = 20 * time.Millisecond

		_, err := c.Complete(ctx, "anything", Options{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
