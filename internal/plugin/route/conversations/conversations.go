// Package conversations mounts the history management endpoints.
package conversations

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tourplanner/travel-service/internal/history"
	"github.com/tourplanner/travel-service/internal/security"
)

// MountRoutes mounts the conversation endpoints behind auth.
func MountRoutes(r *gin.Engine, hist *history.Service, auth gin.HandlerFunc) {
	g := r.Group("/v1/conversations", auth)
	g.DELETE("/clear", func(c *gin.Context) {
		clearConversations(c, hist)
	})
	g.GET("/stats", func(c *gin.Context) {
		conversationStats(c, hist)
	})
}

// clearConversations removes the caller's stored history. Records would
// expire on their own after the retention window; this just does it now.
func clearConversations(c *gin.Context, hist *history.Service) {
	owner := c.GetString(security.ContextKeyUserEmail)
	deleted, ok := hist.ClearAll(c.Request.Context(), owner)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear conversation history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Conversation history cleared",
		"deleted": deleted,
	})
}

func conversationStats(c *gin.Context, hist *history.Service) {
	owner := c.GetString(security.ContextKeyUserEmail)
	stats := hist.Stats(c.Request.Context(), owner)
	c.JSON(http.StatusOK, gin.H{
		"message_count":  stats.Count,
		"oldest_message": stats.Oldest,
		"newest_message": stats.Newest,
		"ttl_minutes":    int(hist.Retention().Minutes()),
	})
}
