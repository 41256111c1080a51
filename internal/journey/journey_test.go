package journey

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/tourplanner/travel-service/internal/registry/cache"
	"github.com/tourplanner/travel-service/internal/security"
	"googlemaps.github.io/maps"
)

type stubCache struct {
	entries map[string]cache.CachedJourney
}

func (s *stubCache) Available() bool { return true }

func (s *stubCache) Get(_ context.Context, origin, destination string) (*cache.CachedJourney, error) {
	if j, ok := s.entries[origin+"|"+destination]; ok {
		return &j, nil
	}
	return nil, nil
}

func (s *stubCache) Set(_ context.Context, origin, destination string, j cache.CachedJourney, _ time.Duration) error {
	s.entries[origin+"|"+destination] = j
	return nil
}

func TestExtractLocations(t *testing.T) {
	cases := []struct {
		name        string
		text        string
		origin      string
		destination string
	}{
		{"plain from-to", "I want to go from Boston to Denver", "Boston", "Denver"},
		{"trailing punctuation stripped", "from New York to Los Angeles!", "New York", "Los Angeles"},
		{"starting from variant", "I'm starting from Seattle going to Portland", "Seattle", "Portland"},
		{"case insensitive markers", "From Chicago TO Detroit", "Chicago", "Detroit"},
		{"no origin", "I want to visit Denver", "", ""},
		{"only origin", "I'm leaving from Boston tomorrow", "", ""},
		{"empty text", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			origin, destination := ExtractLocations(tc.text)
			require.Equal(t, tc.origin, origin)
			require.Equal(t, tc.destination, destination)
		})
	}
}

func TestStaticMapURL(t *testing.T) {
	svc := &Service{apiKey: "test-key"}

	t.Run("markers, scale, and key", func(t *testing.T) {
		url := svc.StaticMapURL("New York", "Boston", nil, "", "")
		require.True(t, strings.HasPrefix(url, "https://maps.googleapis.com/maps/api/staticmap?"))
		require.Contains(t, url, "size=600x400")
		require.Contains(t, url, "scale=2")
		require.Contains(t, url, "markers=color:green|label:A|New+York")
		require.Contains(t, url, "markers=color:red|label:B|Boston")
		require.Contains(t, url, "key=test-key")
		require.NotContains(t, url, "zoom=")
		require.NotContains(t, url, "path=")
	})

	t.Run("zoom is clamped", func(t *testing.T) {
		low, high, mid := 0, 25, 10
		require.Contains(t, svc.StaticMapURL("A", "B", &low, "", ""), "zoom=1")
		require.Contains(t, svc.StaticMapURL("A", "B", &high, "", ""), "zoom=21")
		require.Contains(t, svc.StaticMapURL("A", "B", &mid, "", ""), "zoom=10")
	})

	t.Run("polyline path", func(t *testing.T) {
		url := svc.StaticMapURL("A", "B", nil, "", "abc123")
		require.Contains(t, url, "path=weight:3|color:0x0000ff|enc:abc123")
	})

	t.Run("custom size", func(t *testing.T) {
		url := svc.StaticMapURL("A", "B", nil, "800x600", "")
		require.Contains(t, url, "size=800x600")
	})

	t.Run("empty without api key", func(t *testing.T) {
		disabled := &Service{}
		require.Empty(t, disabled.StaticMapURL("A", "B", nil, "", ""))
	})
}

func TestSummarizeRoutes(t *testing.T) {
	routes := []maps.Route{
		{
			Summary: "I-90 W",
			Legs: []*maps.Leg{{
				StartAddress: "Boston, MA, USA",
				EndAddress:   "Denver, CO, USA",
				Distance:     maps.Distance{HumanReadable: "1,969 mi", Meters: 3168000},
				Duration:     29*time.Hour + 5*time.Minute,
			}},
		},
		{
			Summary: "I-80 W",
			Legs: []*maps.Leg{{
				Distance: maps.Distance{HumanReadable: "2,012 mi", Meters: 3238000},
				Duration: 30 * time.Hour,
			}},
		},
	}

	summary := SummarizeRoutes(routes)
	require.Contains(t, summary, "JOURNEY SUMMARY:")
	require.Contains(t, summary, "From: Boston, MA, USA")
	require.Contains(t, summary, "To: Denver, CO, USA")
	require.Contains(t, summary, "Distance: 1,969 mi")
	require.Contains(t, summary, "Duration: 29 hr 5 min")
	require.Contains(t, summary, "Main Route: I-90 W")
	require.Contains(t, summary, "Alternatives: 1 other route(s) available")
	require.Contains(t, summary, "Route 2: 2,012 mi, 30 hr")
}

func TestSummarizeRoutesEmpty(t *testing.T) {
	require.Equal(t, "No route information available.", SummarizeRoutes(nil))
	require.Equal(t, "No route information available.", SummarizeRoutes([]maps.Route{{}}))
}

func TestDisabledService(t *testing.T) {
	svc, err := NewService("", nil, time.Minute)
	require.NoError(t, err)
	require.False(t, svc.Enabled())
	require.Nil(t, svc.Resolve(t.Context(), "A", "B"))
}

func TestResolveCacheCounters(t *testing.T) {
	security.InitMetrics(nil)
	c := &stubCache{entries: map[string]cache.CachedJourney{
		"Boston|Denver": {Summary: "cached summary", MapImageURL: "https://maps.example/img"},
	}}
	svc, err := NewService("", c, time.Minute)
	require.NoError(t, err)

	t.Run("hit serves the cached journey", func(t *testing.T) {
		before := testutil.ToFloat64(security.CacheHitsTotal)
		j := svc.Resolve(t.Context(), "Boston", "Denver")
		require.NotNil(t, j)
		require.Equal(t, "cached summary", j.Summary)
		require.Equal(t, "https://maps.example/img", j.MapImageURL)
		require.Equal(t, before+1, testutil.ToFloat64(security.CacheHitsTotal))
	})

	t.Run("miss is counted", func(t *testing.T) {
		before := testutil.ToFloat64(security.CacheMissesTotal)
		// Disabled service: the miss falls through to a failed lookup.
		require.Nil(t, svc.Resolve(t.Context(), "Boston", "Austin"))
		require.Equal(t, before+1, testutil.ToFloat64(security.CacheMissesTotal))
	})
}
