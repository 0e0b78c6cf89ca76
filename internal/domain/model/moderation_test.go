package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScores(t *testing.T) {
	tests := []struct {
		name    string
		in      map[string]float64
		want    Scores
		wantErr bool
	}{
		{name: "empty", in: map[string]float64{}, want: Scores{}},
		{name: "lowercases labels", in: map[string]float64{"Toxic": 0.4, " NSFW ": 0.1}, want: Scores{"toxic": 0.4, "nsfw": 0.1}},
		{name: "duplicate labels keep max", in: map[string]float64{"toxic": 0.2, "TOXIC": 0.6}, want: Scores{"toxic": 0.6}},
		{name: "negative rejected", in: map[string]float64{"toxic": -0.1}, wantErr: true},
		{name: "above one rejected", in: map[string]float64{"toxic": 1.01}, wantErr: true},
		{name: "nan rejected", in: map[string]float64{"toxic": math.NaN()}, wantErr: true},
		{name: "blank label rejected", in: map[string]float64{"  ": 0.1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeScores(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScores_AnyAboveIsStrict(t *testing.T) {
	s := Scores{"toxic": 0.3, "insult": 0.1}
	assert.False(t, s.AnyAbove(0.3))
	assert.True(t, s.AnyAbove(0.29))
	assert.False(t, Scores{}.AnyAbove(0))
}

func TestScores_MarshalNilAsObject(t *testing.T) {
	var s Scores
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))

	b, err = json.Marshal(Scores{"b": 0.5, "a": 0.25})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0.25,"b":0.5}`, string(b))
}

func TestVerdictCounts_Add(t *testing.T) {
	var c VerdictCounts
	c.Add(DailyStats{TotalRequests: 5, FlaggedCount: 2, CleanCount: 3})
	c.Add(DailyStats{TotalRequests: 1, ErrorCount: 1})
	assert.Equal(t, VerdictCounts{TotalRequests: 6, Flagged: 2, Clean: 3, Error: 1}, c)
}

func TestDailyAnalytics_JSONFlattensStats(t *testing.T) {
	row := DailyAnalytics{SourceType: KindText, DailyStats: DailyStats{TotalRequests: 2, CleanCount: 2}}
	b, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.InDelta(t, 2, decoded["total_requests"], 0)
	assert.Equal(t, "text", decoded["source_type"])
	assert.Nil(t, decoded["avg_processing_time"])
}

func TestCompleteTaskParams_Validate(t *testing.T) {
	ok := CompleteTaskParams{TaskID: "t", Status: TaskStatusSucceeded, Verdict: VerdictPtr(VerdictClean)}
	require.NoError(t, ok.Validate())

	failed := CompleteTaskParams{TaskID: "t", Status: TaskStatusFailed}
	require.NoError(t, failed.Validate())

	assert.Error(t, CompleteTaskParams{Status: TaskStatusSucceeded, Verdict: VerdictPtr(VerdictClean)}.Validate())
	assert.Error(t, CompleteTaskParams{TaskID: "t", Status: TaskStatusPending}.Validate())
	assert.Error(t, CompleteTaskParams{TaskID: "t", Status: TaskStatusSucceeded}.Validate())
	assert.Error(t, CompleteTaskParams{TaskID: "t", Status: TaskStatusSucceeded, Verdict: VerdictPtr("maybe")}.Validate())
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.False(t, TaskStatusPending.Terminal())
	assert.True(t, TaskStatusSucceeded.Terminal())
	assert.True(t, TaskStatusFailed.Terminal())
	assert.False(t, TaskStatus("lost").Valid())

	var nilResult *TaskResult
	assert.False(t, nilResult.Terminal())
}
