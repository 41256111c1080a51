// Package journey resolves route questions against the Google Maps APIs
// and produces the enrichment data the session assembler and map
// endpoints consume. All lookups degrade to nil results when the maps
// client is unavailable; route questions then fall through to the model
// without enrichment.
package journey

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tourplanner/travel-service/internal/registry/cache"
	"github.com/tourplanner/travel-service/internal/security"
	"googlemaps.github.io/maps"
)

const (
	// DefaultMapSize is the static map image size in "WxH" pixels.
	DefaultMapSize = "600x400"

	// Zoom bounds accepted by the Static Maps API.
	MinZoom = 1
	MaxZoom = 21

	staticMapBase = "https://maps.googleapis.com/maps/api/staticmap"
)

// Journey is a resolved route lookup.
type Journey struct {
	Origin      string
	Destination string
	Summary     string
	MapImageURL string
}

// Service resolves journeys. A Service with no API key is disabled and
// returns nil from every lookup.
type Service struct {
	client   *maps.Client
	apiKey   string
	cache    cache.JourneyCache
	cacheTTL time.Duration
}

// NewService builds a journey Service. An empty apiKey yields a
// disabled service rather than an error. cache may be nil.
func NewService(apiKey string, journeyCache cache.JourneyCache, cacheTTL time.Duration) (*Service, error) {
	s := &Service{apiKey: apiKey, cache: journeyCache, cacheTTL: cacheTTL}
	if apiKey == "" {
		log.Warn("maps API key not configured; journey enrichment disabled")
		return s, nil
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	s.client = client
	return s, nil
}

// Enabled reports whether lookups can be performed.
func (s *Service) Enabled() bool { return s.client != nil }

// ExtractLocations scans free text for a "from X to Y" phrasing and
// returns the origin and destination, or empty strings when the text
// does not name both.
func ExtractLocations(text string) (origin, destination string) {
	lower := strings.ToLower(text)

	fromPatterns := []string{"from ", "starting from ", "leaving from ", "departing from "}
	toPatterns := []string{" to ", " going to ", " heading to ", " traveling to "}

	for _, fromWord := range fromPatterns {
		fromIdx := strings.Index(lower, fromWord)
		if fromIdx < 0 {
			continue
		}
		remaining := text[fromIdx+len(fromWord):]
		remainingLower := strings.ToLower(remaining)

		for _, toWord := range toPatterns {
			toIdx := strings.Index(remainingLower, toWord)
			if toIdx < 0 {
				continue
			}
			origin = strings.TrimSpace(remaining[:toIdx])
			destination = strings.TrimSpace(remaining[toIdx+len(toWord):])
			destination = strings.TrimRight(destination, ".,!?")
			return origin, destination
		}
		break
	}
	return "", ""
}

// Directions fetches driving routes with current-traffic estimates.
func (s *Service) Directions(ctx context.Context, origin, destination string) ([]maps.Route, error) {
	if s.client == nil {
		return nil, fmt.Errorf("maps client not configured")
	}
	routes, _, err := s.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:        origin,
		Destination:   destination,
		Mode:          maps.TravelModeDriving,
		DepartureTime: "now",
		Alternatives:  true,
		TrafficModel:  maps.TrafficModelBestGuess,
	})
	if err != nil {
		return nil, fmt.Errorf("directions lookup failed: %w", err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no routes found from %s to %s", origin, destination)
	}
	return routes, nil
}

// Resolve looks up the journey from origin to destination, consulting
// the cache first. Returns nil when the lookup fails for any reason.
func (s *Service) Resolve(ctx context.Context, origin, destination string) *Journey {
	if s.cache != nil && s.cache.Available() {
		cached, err := s.cache.Get(ctx, origin, destination)
		if err != nil {
			log.Warn("journey cache read failed", "error", err)
		} else if cached != nil {
			security.RecordCacheHit()
			return &Journey{
				Origin:      origin,
				Destination: destination,
				Summary:     cached.Summary,
				MapImageURL: cached.MapImageURL,
			}
		}
		security.RecordCacheMiss()
	}

	routes, err := s.Directions(ctx, origin, destination)
	if err != nil {
		log.Warn("journey lookup failed", "origin", origin, "destination", destination, "error", err)
		return nil
	}

	j := &Journey{
		Origin:      origin,
		Destination: destination,
		Summary:     SummarizeRoutes(routes),
		MapImageURL: s.StaticMapURL(origin, destination, nil, DefaultMapSize, routes[0].OverviewPolyline.Points),
	}

	if s.cache != nil && s.cache.Available() {
		err := s.cache.Set(ctx, origin, destination, cache.CachedJourney{
			Summary:     j.Summary,
			MapImageURL: j.MapImageURL,
		}, s.cacheTTL)
		if err != nil {
			log.Warn("journey cache write failed", "error", err)
		}
	}
	return j
}

// SummarizeRoutes renders directions results into the compact text block
// injected into the model session.
func SummarizeRoutes(routes []maps.Route) string {
	if len(routes) == 0 {
		return "No route information available."
	}

	route := routes[0]
	if len(route.Legs) == 0 {
		return "No route information available."
	}
	leg := route.Legs[0]

	summary := route.Summary
	if summary == "" {
		summary = "Route information"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "JOURNEY SUMMARY:\n")
	fmt.Fprintf(&b, "From: %s\n", leg.StartAddress)
	fmt.Fprintf(&b, "To: %s\n", leg.EndAddress)
	fmt.Fprintf(&b, "Distance: %s\n", leg.Distance.HumanReadable)
	fmt.Fprintf(&b, "Duration: %s\n", humanDuration(leg.Duration))
	fmt.Fprintf(&b, "Main Route: %s\n", summary)

	if len(routes) > 1 {
		fmt.Fprintf(&b, "\nAlternatives: %d other route(s) available", len(routes)-1)
		alt := routes[1]
		if len(alt.Legs) > 0 {
			fmt.Fprintf(&b, "\n  Route 2: %s, %s", alt.Legs[0].Distance.HumanReadable, humanDuration(alt.Legs[0].Duration))
		}
	}
	return b.String()
}

func humanDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%d hr %d min", h, m)
	case h > 0:
		return fmt.Sprintf("%d hr", h)
	default:
		return fmt.Sprintf("%d min", m)
	}
}

// StaticMapURL builds a Static Maps API URL with origin and destination
// markers and, when a polyline is given, the route path. zoom outside
// [MinZoom, MaxZoom] is clamped; nil leaves the API to fit the bounds.
func (s *Service) StaticMapURL(origin, destination string, zoom *int, size, polyline string) string {
	if s.apiKey == "" {
		return ""
	}
	if size == "" {
		size = DefaultMapSize
	}

	params := []string{
		"size=" + size,
		"scale=2",
		"markers=color:green|label:A|" + url.QueryEscape(origin),
		"markers=color:red|label:B|" + url.QueryEscape(destination),
	}
	if zoom != nil {
		z := *zoom
		if z < MinZoom {
			z = MinZoom
		}
		if z > MaxZoom {
			z = MaxZoom
		}
		params = append(params, fmt.Sprintf("zoom=%d", z))
	}
	if polyline != "" {
		params = append(params, "path=weight:3|color:0x0000ff|enc:"+polyline)
	}
	params = append(params, "key="+s.apiKey)

	return staticMapBase + "?" + strings.Join(params, "&")
}
