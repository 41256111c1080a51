// Package chat mounts the completion endpoints. The chat endpoint is
// the main conversational surface: it assembles the session from stored
// history, enriches route questions with journey data, and proxies the
// rendered prompt to the model runtime.
package chat

import (
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tourplanner/travel-service/internal/history"
	"github.com/tourplanner/travel-service/internal/journey"
	"github.com/tourplanner/travel-service/internal/llm"
	"github.com/tourplanner/travel-service/internal/model"
	"github.com/tourplanner/travel-service/internal/security"
	"github.com/tourplanner/travel-service/internal/session"
)

// Deps are the collaborators the chat endpoints need.
type Deps struct {
	History   *history.Service
	Assembler *session.Assembler
	LLM       *llm.Client
	Journeys  *journey.Service
}

type chatRequest struct {
	Messages    []model.Turn `json:"messages"`
	Temperature float32      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
	TopP        float32      `json:"top_p"`
	Stop        []string     `json:"stop"`
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature float32  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float32  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// MountRoutes mounts the completion endpoints behind auth.
func MountRoutes(r *gin.Engine, deps Deps, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)
	g.POST("/chat/completions", func(c *gin.Context) {
		chatCompletions(c, deps)
	})
	g.POST("/completions", func(c *gin.Context) {
		completions(c, deps)
	})
}

func chatCompletions(c *gin.Context, deps Deps) {
	owner := c.GetString(security.ContextKeyUserEmail)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "messages must not be empty"})
		return
	}
	for _, m := range req.Messages {
		if !m.Role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "unknown role " + string(m.Role)})
			return
		}
	}

	// Route questions get journey enrichment from the maps API. The
	// lookup is best effort; a miss falls through to the model alone.
	var (
		journeyNote string
		mapImageURL string
		origin      string
		destination string
	)
	if deps.Journeys != nil && deps.Journeys.Enabled() {
		for _, m := range req.Messages {
			if m.Role != model.RoleUser {
				continue
			}
			o, d := journey.ExtractLocations(m.Content)
			if o == "" || d == "" {
				continue
			}
			origin, destination = o, d
			log.Info("Detected journey request", "origin", origin, "destination", destination)

			if j := deps.Journeys.Resolve(c.Request.Context(), origin, destination); j != nil {
				journeyNote = j.Summary
				mapImageURL = j.MapImageURL
				security.JourneyLookupsTotal.WithLabelValues("ok").Inc()
			} else {
				// Directions failed; a markers-only map is still useful.
				mapImageURL = deps.Journeys.StaticMapURL(origin, destination, nil, journey.DefaultMapSize, "")
				security.JourneyLookupsTotal.WithLabelValues("failed").Inc()
			}
		}
	}

	turns := deps.Assembler.Assemble(c.Request.Context(), owner, req.Messages, journeyNote)

	// Only the user's turns enter the rolling history. Assistant output
	// is never persisted.
	degraded := false
	for _, m := range req.Messages {
		if m.Role == model.RoleUser {
			if !deps.History.Append(c.Request.Context(), owner, m.Role, m.Content) {
				degraded = true
			}
		}
	}
	if degraded {
		security.HistoryDegradedTotal.Inc()
	}

	prompt := session.RenderLlama(turns)

	start := time.Now()
	text, usage, err := deps.LLM.Complete(c.Request.Context(), prompt, llm.Params{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stop:        req.Stop,
	})
	if err != nil {
		log.Error("Chat completion failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model runtime unavailable"})
		return
	}
	security.CompletionDuration.Observe(time.Since(start).Seconds())

	text = strings.TrimSpace(strings.TrimPrefix(text, prompt))
	usage = fillUsage(usage, prompt, text)

	resp := gin.H{
		"id":      "chatcmpl-" + uuid.NewString(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   deps.LLM.Model(),
		"choices": []gin.H{{
			"index": 0,
			"message": gin.H{
				"role":    "assistant",
				"content": text,
			},
			"finish_reason": "stop",
		}},
		"usage":         usage,
		"map_image_url": nilIfEmpty(mapImageURL),
	}
	if origin != "" && destination != "" {
		resp["journey_details"] = gin.H{"origin": origin, "destination": destination}
	} else {
		resp["journey_details"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

func completions(c *gin.Context, deps Deps) {
	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "prompt must not be empty"})
		return
	}

	start := time.Now()
	text, usage, err := deps.LLM.Complete(c.Request.Context(), req.Prompt, llm.Params{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stop:        req.Stop,
	})
	if err != nil {
		log.Error("Completion failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model runtime unavailable"})
		return
	}
	security.CompletionDuration.Observe(time.Since(start).Seconds())

	c.JSON(http.StatusOK, gin.H{
		"id":      "cmpl-" + uuid.NewString(),
		"object":  "text_completion",
		"created": time.Now().Unix(),
		"model":   deps.LLM.Model(),
		"choices": []gin.H{{
			"index":         0,
			"text":          text,
			"finish_reason": "stop",
		}},
		"usage": fillUsage(usage, req.Prompt, text),
	})
}

// fillUsage falls back to whitespace token estimates when the runtime
// does not report usage.
func fillUsage(u llm.Usage, prompt, completion string) llm.Usage {
	if u.TotalTokens > 0 {
		return u
	}
	u.PromptTokens = len(strings.Fields(prompt))
	u.CompletionTokens = len(strings.Fields(completion))
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
