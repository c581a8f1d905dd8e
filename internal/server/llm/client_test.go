package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, status int, reply string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		choices := []map[string]any{}
		if reply != "" {
			choices = append(choices, map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": reply},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"model":   "test-model",
			"choices": choices,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(url string) *OpenAIClient {
	return NewOpenAIClient(Options{
		APIKey:      "test-key",
		BaseURL:     url + "/",
		Model:       "test-model",
		Temperature: 0.7,
		MaxTokens:   1000,
		Timeout:     5 * time.Second,
	})
}

func TestComplete_SendsSystemAndHistory(t *testing.T) {
	var got capturedRequest
	srv := newServer(t, http.StatusOK, "Hello there", &got)

	reply, err := newClient(srv.URL).Complete(context.Background(), "be nice", []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: "patient", Content: "what is my bp?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)

	assert.Equal(t, "test-model", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 0.0001)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be nice", got.Messages[0].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
}

func TestComplete_ProviderError(t *testing.T) {
	srv := newServer(t, http.StatusInternalServerError, "", nil)

	_, err := newClient(srv.URL).Complete(context.Background(), "sys", []Message{{Role: RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestComplete_EmptyReply(t *testing.T) {
	srv := newServer(t, http.StatusOK, "", nil)

	_, err := newClient(srv.URL).Complete(context.Background(), "sys", []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrEmptyReply)
}
