package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/adaptive"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/cache"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/trends"
	"go.uber.org/zap"
)

func TestWriteOutputFormats(t *testing.T) {
	analysis := trends.AnalyzeComplete(nil, nutrition.ObjectiveCutting, nil, 7, time.Date(2026, 5, 15, 8, 0, 0, 0, time.UTC))

	var jsonBuffer bytes.Buffer
	if err := writeOutput(&jsonBuffer, "json", analysis); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(jsonBuffer.String(), `"traffic_light": "grey"`) {
		t.Fatalf("unexpected json output %s", jsonBuffer.String())
	}

	var yamlBuffer bytes.Buffer
	if err := writeOutput(&yamlBuffer, "YAML", analysis); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(yamlBuffer.String(), "traffic_light: grey") {
		t.Fatalf("unexpected yaml output %s", yamlBuffer.String())
	}

	if err := writeOutput(&bytes.Buffer{}, "xml", analysis); !errors.Is(err, errUnknownOutput) {
		t.Fatalf("expected errUnknownOutput, got %v", err)
	}
}

func TestDropCachedTrendsOnlyAfterPersistedUpdate(t *testing.T) {
	testCases := []struct {
		name        string
		outcome     adaptive.Outcome
		dryRun      bool
		expectFound bool
	}{
		{name: "updated", outcome: adaptive.Outcome{Updated: true}, expectFound: false},
		{name: "dry run", outcome: adaptive.Outcome{Updated: true}, dryRun: true, expectFound: true},
		{name: "not updated", outcome: adaptive.Outcome{}, expectFound: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			ctx := context.Background()
			store := cache.NewMemoryCache(nil)
			key := cache.TrendKey("alice", "cutting", 7)
			if err := store.Set(ctx, key, map[string]int{"count": 7}, time.Minute); err != nil {
				t.Fatalf("set failed: %v", err)
			}
			app := &application{cache: store, logger: zap.NewNop()}
			app.dropCachedTrends(ctx, "alice", testCase.outcome, testCase.dryRun)

			var cached map[string]int
			found, err := store.Get(ctx, key, &cached)
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if found != testCase.expectFound {
				t.Fatalf("expected found=%v, got %v", testCase.expectFound, found)
			}
		})
	}
}
