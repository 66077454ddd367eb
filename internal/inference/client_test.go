package inference_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-salud-backend/config"
	"copilot-salud-backend/internal/inference"
)

func completionBody(content string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"id":    "chatcmpl-test",
		"model": "llama-3.3-70b-versatile",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	})
	return body
}

func newTestClient(serverURL string) inference.Client {
	cfg := &config.Config{}
	cfg.Groq.APIKey = "test-key"
	cfg.Groq.BaseURL = serverURL
	return inference.NewClient(cfg, inference.WithBaseDelay(5*time.Millisecond))
}

func TestComplete_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req inference.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Len(t, req.Messages, 2)

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(completionBody(`{"analysis_type": "general"}`))
	}))
	defer server.Close()

	start := time.Now()
	text, err := newTestClient(server.URL).Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"analysis_type": "general"}`, text)
	assert.Equal(t, int32(3), calls.Load())
	// Two failed attempts force two backoff sleeps (5ms then 10ms).
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestComplete_GivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_PermanentErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestComplete_EmptyChoicesIsRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"id": "chatcmpl-test", "choices": []}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.Groq.APIKey = "test-key"
	cfg.Groq.BaseURL = server.URL
	client := inference.NewClient(cfg, inference.WithBaseDelay(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "system", "user")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_SubmitAndWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(completionBody("respuesta"))
	}))
	defer server.Close()

	runner := inference.NewRunner(newTestClient(server.URL), 2)
	defer runner.Stop()

	futures := make([]*inference.Future, 0, 4)
	for i := 0; i < 4; i++ {
		futures = append(futures, runner.Submit(context.Background(), "system", "user"))
	}
	for _, f := range futures {
		text, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "respuesta", text)
	}
}

func TestRunner_RejectsAfterStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(completionBody("respuesta"))
	}))
	defer server.Close()

	runner := inference.NewRunner(newTestClient(server.URL), 1)
	runner.Stop()

	_, err := runner.Submit(context.Background(), "system", "user").Wait(context.Background())
	assert.ErrorIs(t, err, inference.ErrRunnerStopped)
}
