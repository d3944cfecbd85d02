package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oddsbridge/engine/internal/ingest"
	"github.com/oddsbridge/engine/internal/metrics"
	"github.com/oddsbridge/engine/internal/store"
)

func newTestServer(t *testing.T) (*Server, *metrics.MetricsTracker, *metrics.FirstSeen) {
	t.Helper()

	tracker := metrics.NewMetricsTracker()
	tracker.RegisterGauge(metrics.GaugeEventsCache, func() int { return 42 })
	tracker.RegisterGauge(metrics.GaugeWriteQueue, func() int { return 3 })
	tracker.SetFeedStatus(ingest.FeedSubscribed)

	teams := metrics.NewFirstSeen("unmapped_team", 8)
	markets := metrics.NewFirstSeen("unmapped_market", 8)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go teams.Run(ctx, 0)
	go markets.Run(ctx, 0)

	return NewServer(Options{Addr: ":0"}, tracker, teams, markets), tracker, teams
}

func get(t *testing.T, s *Server, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("GET %s: content type %q", path, ct)
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("GET %s: invalid JSON: %v", path, err)
		}
	}
	return rec
}

func TestHealth(t *testing.T) {
	s, _, teams := newTestServer(t)

	teams.Record("dinamo zagreb", "Dinamo Zagreb")
	deadline := time.Now().Add(2 * time.Second)
	for teams.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	var body map[string]interface{}
	get(t, s, "/health", &body)

	want := map[string]interface{}{
		"status":        "ok",
		"eventsCache":   float64(42),
		"writeQueue":    float64(3),
		"unmappedTeams": float64(1),
		"feed":          "subscribed",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %v, want %v", k, body[k], v)
		}
	}

	// The root path answers like /health.
	get(t, s, "/", nil)
}

func TestStatus(t *testing.T) {
	s, tracker, _ := newTestServer(t)

	key := "napoli_juventus_2026-01-10T19:30"
	tracker.RecordWritten([]store.OddsRecord{{
		DisplayName:   "Napoli - Juventus",
		BookmakerName: "Sisal",
		MarketType:    "SHOTS_MATCH_OU_6.5",
		Selection:     "Over",
		Odds:          1.85,
		MatchKey:      &key,
	}})

	var body struct {
		Metrics metrics.MetricsSnapshot `json:"metrics"`
	}
	get(t, s, "/status", &body)

	if body.Metrics.RecordsWritten != 1 || len(body.Metrics.Coverage) != 1 {
		t.Errorf("unexpected snapshot %+v", body.Metrics)
	}
	if body.Metrics.Gauges[metrics.GaugeEventsCache] != 42 {
		t.Errorf("unexpected gauges %v", body.Metrics.Gauges)
	}
}

func TestUnmapped(t *testing.T) {
	s, _, _ := newTestServer(t)

	var body map[string][]metrics.FirstSeenEntry
	get(t, s, "/unmapped", &body)

	if _, ok := body["teams"]; !ok {
		t.Error("missing teams list")
	}
	if _, ok := body["markets"]; !ok {
		t.Error("missing markets list")
	}
}

func TestUnknownRoute(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
