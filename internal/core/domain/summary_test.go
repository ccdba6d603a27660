package domain

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cost(sql string, start time.Time, d time.Duration) *Cost {
	return &Cost{Statement: sql, Start: start, End: start.Add(d)}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	costs := []*Cost{
		cost("INSERT INTO t VALUES (1)", created, 10*time.Millisecond),
		cost("INSERT INTO t VALUES (2)", created, 5*time.Millisecond),
		cost("SELECT * FROM t", created, 3*time.Millisecond),
		cost("UPDATE t SET a = 1", created, 2*time.Millisecond),
		cost("DELETE FROM t", created, time.Millisecond),
		cost("COMMIT", created, 4*time.Millisecond),
	}
	deferStart := created.Add(90 * time.Millisecond)
	now := created.Add(100 * time.Millisecond)

	s := Summarize(costs, PrefixClassifier{}, created, deferStart, now)

	assert.Equal(t, 2, s.Count(CategoryInsert))
	assert.Equal(t, 1, s.Count(CategoryQuery))
	assert.Equal(t, 1, s.Count(CategoryUpdate))
	assert.Equal(t, 1, s.Count(CategoryDelete))
	assert.Equal(t, 1, s.Count(CategoryOther))
	assert.Equal(t, 6, s.Statements())

	assert.Equal(t, 15*time.Millisecond, s.Cost(CategoryInsert))
	assert.Equal(t, 4*time.Millisecond, s.Cost(CategoryOther))
	assert.Equal(t, 100*time.Millisecond, s.Total)
	assert.Equal(t, 10*time.Millisecond, s.Self)
	// 100 - 10 - (15+3+2+1+4)
	assert.Equal(t, 65*time.Millisecond, s.Other)
}

func TestSummarize_UnfinishedCostCountsWithoutTime(t *testing.T) {
	t.Parallel()
	now := time.Now()
	costs := []*Cost{{Statement: "SELECT 1", Start: now}}

	s := Summarize(costs, nil, now, now, now)
	assert.Equal(t, 1, s.Count(CategoryQuery))
	assert.Zero(t, s.Cost(CategoryQuery))
}

func TestSummary_LogValue(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var s Summary
	s.Counts[CategoryInsert] = 3
	s.Costs[CategoryInsert] = 1500 * time.Microsecond
	logger.Info("context deferred", slog.Any("cost", s))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	group, ok := line["cost"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, group["insert.count"])
	assert.InDelta(t, 1.5, group["insert.ms"], 1e-9)
	assert.Contains(t, group, "other.ms")
}
