// Package maps mounts the standalone map generation endpoint.
package maps

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/tourplanner/travel-service/internal/journey"
)

type mapRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Zoom        *int   `json:"zoom"`
	Size        string `json:"size"`
}

// MountRoutes mounts the map endpoint behind auth.
func MountRoutes(r *gin.Engine, journeys *journey.Service, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)
	g.POST("/map/generate", func(c *gin.Context) {
		generateMap(c, journeys)
	})
}

func generateMap(c *gin.Context, journeys *journey.Service) {
	var req mapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Origin == "" || req.Destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "origin and destination are required"})
		return
	}
	// The endpoint rejects out-of-range zoom; only programmatic callers
	// of the journey service get clamping.
	if req.Zoom != nil && (*req.Zoom < journey.MinZoom || *req.Zoom > journey.MaxZoom) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "validation_error",
			"error": "zoom level must be between 1 and 21",
		})
		return
	}
	if journeys == nil || !journeys.Enabled() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "map generation unavailable"})
		return
	}

	// Directions give us the route polyline; without them the map still
	// renders with origin and destination markers.
	var polyline string
	if routes, err := journeys.Directions(c.Request.Context(), req.Origin, req.Destination); err != nil {
		log.Warn("Directions lookup for map failed", "err", err)
	} else {
		polyline = routes[0].OverviewPolyline.Points
	}

	mapURL := journeys.StaticMapURL(req.Origin, req.Destination, req.Zoom, req.Size, polyline)
	if mapURL == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate map image URL"})
		return
	}

	log.Info("Generated map", "origin", req.Origin, "destination", req.Destination)
	c.JSON(http.StatusOK, gin.H{
		"map_image_url": mapURL,
		"zoom_level":    req.Zoom,
		"origin":        req.Origin,
		"destination":   req.Destination,
	})
}
