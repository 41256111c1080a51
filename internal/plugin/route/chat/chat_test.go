package chat

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tourplanner/travel-service/internal/history"
	"github.com/tourplanner/travel-service/internal/llm"
	"github.com/tourplanner/travel-service/internal/plugin/store/memory"
	"github.com/tourplanner/travel-service/internal/security"
	"github.com/tourplanner/travel-service/internal/session"
)

// runtimeStub fakes the OpenAI-compatible completion endpoint and
// records the prompts it was sent.
type runtimeStub struct {
	mu      sync.Mutex
	prompts []string
	fail    bool
}

func (s *runtimeStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.Unmarshal(body, &req)
		s.mu.Lock()
		s.prompts = append(s.prompts, req.Prompt)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-stub",
			"object":  "text_completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]any{{
				"text":          "A lovely trip awaits.",
				"index":         0,
				"finish_reason": "stop",
			}},
		})
	}
}

func (s *runtimeStub) lastPrompt(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.prompts)
	return s.prompts[len(s.prompts)-1]
}

func newTestServer(t *testing.T) (*gin.Engine, *history.Service, *runtimeStub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	security.InitMetrics(nil)

	stub := &runtimeStub{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	hist := history.NewService(memory.New(), 30*time.Minute, 10, time.Second)
	deps := Deps{
		History:   hist,
		Assembler: session.NewAssembler(hist, ""),
		LLM:       llm.NewClient(srv.URL, "test-model", 5*time.Second),
	}

	issuer := security.NewTokenIssuer("test-secret", 30*time.Minute)
	token, _, err := issuer.Issue("ada@example.com", "Ada")
	require.NoError(t, err)

	r := gin.New()
	MountRoutes(r, deps, security.AuthMiddleware(issuer))
	return r, hist, stub, token
}

func postJSON(r *gin.Engine, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChatCompletionsRequiresAuth(t *testing.T) {
	r, _, _, _ := newTestServer(t)
	rec := postJSON(r, "/v1/chat/completions", "", `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatCompletionsValidation(t *testing.T) {
	r, _, _, token := newTestServer(t)

	t.Run("empty messages", func(t *testing.T) {
		rec := postJSON(r, "/v1/chat/completions", token, `{"messages":[]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "messages must not be empty")
	})

	t.Run("unknown role", func(t *testing.T) {
		rec := postJSON(r, "/v1/chat/completions", token, `{"messages":[{"role":"wizard","content":"hi"}]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "unknown role")
	})
}

func TestChatCompletions(t *testing.T) {
	r, hist, stub, token := newTestServer(t)

	rec := postJSON(r, "/v1/chat/completions", token,
		`{"messages":[{"role":"user","content":"I want to plan a trip"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
		MapImageURL    *string `json:"map_image_url"`
		JourneyDetails *struct {
			Origin string `json:"origin"`
		} `json:"journey_details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	require.Equal(t, "chat.completion", resp.Object)
	require.Equal(t, "test-model", resp.Model)
	require.Len(t, resp.Choices, 1)
	require.Equal(t, "assistant", resp.Choices[0].Message.Role)
	require.Equal(t, "A lovely trip awaits.", resp.Choices[0].Message.Content)
	require.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.Positive(t, resp.Usage.TotalTokens)
	require.Nil(t, resp.MapImageURL)
	require.Nil(t, resp.JourneyDetails)

	prompt := stub.lastPrompt(t)
	require.True(t, strings.HasPrefix(prompt, "<|begin_of_text|>"))
	require.Contains(t, prompt, session.DefaultPreamble)
	require.Contains(t, prompt, "I want to plan a trip")
	require.True(t, strings.HasSuffix(prompt, "<|start_header_id|>assistant<|end_header_id|>\n\n"))

	t.Run("user turn persisted", func(t *testing.T) {
		recent := hist.Recent(t.Context(), "ada@example.com", 10)
		require.Len(t, recent, 1)
		require.Equal(t, "I want to plan a trip", recent[0].Content)
	})

	t.Run("history flows into the next prompt", func(t *testing.T) {
		rec := postJSON(r, "/v1/chat/completions", token,
			`{"messages":[{"role":"user","content":"Somewhere warm please"}]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		prompt := stub.lastPrompt(t)
		require.Contains(t, prompt, "I want to plan a trip")
		require.Contains(t, prompt, "Somewhere warm please")
	})

	t.Run("assistant turns are not persisted", func(t *testing.T) {
		rec := postJSON(r, "/v1/chat/completions", token,
			`{"messages":[{"role":"assistant","content":"Here is an idea"},{"role":"user","content":"Tell me more"}]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		for _, m := range hist.Recent(t.Context(), "ada@example.com", 10) {
			require.NotEqual(t, "Here is an idea", m.Content)
		}
	})
}

func TestChatCompletionsRuntimeDown(t *testing.T) {
	r, _, stub, token := newTestServer(t)
	stub.fail = true

	rec := postJSON(r, "/v1/chat/completions", token,
		`{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "model runtime unavailable")
}

func TestCompletions(t *testing.T) {
	r, _, stub, token := newTestServer(t)

	t.Run("empty prompt", func(t *testing.T) {
		rec := postJSON(r, "/v1/completions", token, `{"prompt":""}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("passthrough", func(t *testing.T) {
		rec := postJSON(r, "/v1/completions", token, `{"prompt":"Once upon a time"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			Choices []struct {
				Text string `json:"text"`
			} `json:"choices"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, strings.HasPrefix(resp.ID, "cmpl-"))
		require.Equal(t, "text_completion", resp.Object)
		require.Len(t, resp.Choices, 1)
		require.Equal(t, "A lovely trip awaits.", resp.Choices[0].Text)

		require.Equal(t, "Once upon a time", stub.lastPrompt(t))
	})
}
