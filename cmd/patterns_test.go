package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carteakey/aidar/internal/model"
	"github.com/carteakey/aidar/internal/pattern"
	"github.com/carteakey/aidar/internal/store"
)

func TestBuildVersionsReport_FlagsStaleScans(t *testing.T) {
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	// Two scans stored against pattern version 1.
	for _, url := range []string{"https://old.com/a", "https://old.com/b"} {
		_, err := st.SaveResult(ctx, &model.Result{
			Identity: model.NewURLIdentity(url),
			Index:    20, Label: model.LabelUncertain,
			ScannedAt: time.Now().UTC(),
			PatternResults: []model.PatternResult{
				{PatternID: "delve_overuse", Category: model.CategoryPhrases, RawValue: 3, Normalized: 0.4, Weight: 1, Version: 1},
			},
		})
		require.NoError(t, err)
	}

	// Registry has since moved to version 2.
	snapshot, err := pattern.NewSnapshot([]model.PatternDefinition{{
		ID: "delve_overuse", Name: "Delve overuse", Version: 2,
		Category: model.CategoryPhrases, Weight: 1,
		DetectionType: model.DetectFrequency,
		Params:        model.Params{Terms: []string{"delve"}, ThresholdLow: 1, ThresholdHigh: 5},
	}})
	require.NoError(t, err)

	stored, err := st.PatternVersionSummary(ctx)
	require.NoError(t, err)
	stale, err := st.StaleScans(ctx, snapshot.Versions())
	require.NoError(t, err)

	report := buildVersionsReport(snapshot, stored, stale)

	require.Len(t, report.Patterns, 1)
	assert.Equal(t, "delve_overuse", report.Patterns[0].ID)
	assert.Equal(t, 2, report.Patterns[0].Registry)
	assert.Equal(t, 1, report.Patterns[0].MaxStored)
	assert.True(t, report.Patterns[0].NeedsRescan)

	urls := make([]string, len(report.StaleScans))
	for i, id := range report.StaleScans {
		urls[i] = id.URL
	}
	assert.ElementsMatch(t, []string{"https://old.com/a", "https://old.com/b"}, urls)
}

func TestBuildVersionsReport_CurrentScans(t *testing.T) {
	snapshot, err := pattern.NewSnapshot([]model.PatternDefinition{{
		ID: "delve_overuse", Name: "Delve overuse", Version: 1,
		Category: model.CategoryPhrases, Weight: 1,
		DetectionType: model.DetectFrequency,
		Params:        model.Params{Terms: []string{"delve"}, ThresholdLow: 1, ThresholdHigh: 5},
	}})
	require.NoError(t, err)

	report := buildVersionsReport(snapshot,
		[]model.PatternVersionSummary{{PatternID: "delve_overuse", MaxStoredVersion: 1, ScanCount: 4}},
		nil)

	require.Len(t, report.Patterns, 1)
	assert.False(t, report.Patterns[0].NeedsRescan)
	assert.Empty(t, report.StaleScans)
}
