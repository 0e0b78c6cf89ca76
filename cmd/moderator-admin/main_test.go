package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/service"
)

func TestParseRollupFlags(t *testing.T) {
	opts, err := parseRollupFlags(nil)
	require.NoError(t, err)
	assert.True(t, opts.Date.IsZero())
	assert.Equal(t, defaultCommandTimeout, opts.Timeout)

	opts, err = parseRollupFlags([]string{"--date", "2024-03-09", "--timeout", "30s"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), opts.Date)
	assert.Equal(t, 30*time.Second, opts.Timeout)

	_, err = parseRollupFlags([]string{"--date", "03/09/2024"})
	require.Error(t, err)
}

func TestParseSummaryFlags(t *testing.T) {
	opts, err := parseSummaryFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, 7, opts.Days)

	for _, days := range []string{"0", "31"} {
		_, err = parseSummaryFlags([]string{"--days", days})
		require.Error(t, err, days)
	}
}

func TestParseMigrateFlags_RejectsNonPositiveTimeout(t *testing.T) {
	_, err := parseMigrateFlags([]string{"--timeout", "0s"})
	require.Error(t, err)
}

func TestRunCleanup_RequiresConfirmation(t *testing.T) {
	err := runCleanup(&commandContext{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestPrintSummary(t *testing.T) {
	summary := &model.AnalyticsSummary{
		Period:        "Last 2 days",
		TotalRequests: 9,
		BySource: map[model.Kind]model.VerdictCounts{
			model.KindText:  {TotalRequests: 6, Flagged: 2, Clean: 4},
			model.KindImage: {TotalRequests: 3, Clean: 2, Error: 1},
		},
		DailyBreakdown: []model.DailyBreakdown{
			{Date: "2024-01-01", VerdictCounts: model.VerdictCounts{TotalRequests: 4, Flagged: 1, Clean: 3}},
			{Date: "2024-01-02", VerdictCounts: model.VerdictCounts{TotalRequests: 5, Flagged: 1, Clean: 3, Error: 1}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, summary))

	out := buf.String()
	assert.Contains(t, out, "Last 2 days: 9 requests")
	assert.Contains(t, out, "2024-01-02")
	assert.Contains(t, out, "text   total=6 flagged=2 clean=4 error=0")
	assert.Contains(t, out, "image  total=3 flagged=0 clean=2 error=1")
}

func TestPrintCleanupReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printCleanupReport(&buf, service.CleanupReport{Jobs: 120, Metrics: 5, Uploads: 3}))
	assert.Equal(t, "deleted jobs=120 results=0 metrics=5 uploads=3 total=128\n", buf.String())
}

func TestPrintUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	for name := range commands() {
		assert.Contains(t, buf.String(), name)
	}
}

func TestParseSeedFlags(t *testing.T) {
	opts, err := parseSeedFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, 7, opts.Days)
	assert.Equal(t, 20, opts.PerDay)
	assert.False(t, opts.AllowRemote)

	opts, err = parseSeedFlags([]string{"--days", "3", "--per-day", "5", "--seed", "99", "--allow-remote"})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.Days)
	assert.Equal(t, 5, opts.PerDay)
	assert.Equal(t, uint64(99), opts.Seed)
	assert.True(t, opts.AllowRemote)

	_, err = parseSeedFlags([]string{"--days", "45"})
	require.Error(t, err)
	_, err = parseSeedFlags([]string{"--per-day", "0"})
	require.Error(t, err)
}

func TestRunDBSeed_RefusesRemoteDatabase(t *testing.T) {
	var out bytes.Buffer
	cmdCtx := &commandContext{Out: &out}
	cmdCtx.Config.Postgres.Host = "prod-db.example.com"

	err := runDBSeed(cmdCtx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--allow-remote")
	assert.Empty(t, out.String())
}
