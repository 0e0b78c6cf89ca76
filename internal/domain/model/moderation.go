package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Verdict is the outcome of a moderation attempt.
type Verdict string

const (
	// VerdictClean means no score crossed its threshold.
	VerdictClean Verdict = "clean"
	// VerdictFlagged means at least one score crossed its threshold.
	VerdictFlagged Verdict = "flagged"
	// VerdictError means classification could not be completed.
	VerdictError Verdict = "error"
)

// Valid returns true if the Verdict is known.
func (v Verdict) Valid() bool {
	return v == VerdictClean || v == VerdictFlagged || v == VerdictError
}

// Verdicts returns every verdict in a stable order.
func Verdicts() []Verdict {
	return []Verdict{VerdictFlagged, VerdictClean, VerdictError}
}

// ScoreNSFW is the image label compared against the image threshold.
const ScoreNSFW = "nsfw"

// Scores maps classifier labels to confidence values in [0, 1].
// Labels are open-ended; unknown labels are kept and compared like known ones.
type Scores map[string]float64

// NormalizeScores lowercases labels and rejects values outside [0, 1] or NaN.
// Duplicate labels after normalization keep the highest value.
func NormalizeScores(in map[string]float64) (Scores, error) {
	out := make(Scores, len(in))
	for label, v := range in {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, fmt.Errorf("score %q out of range: %v", label, v)
		}
		key := strings.ToLower(strings.TrimSpace(label))
		if key == "" {
			return nil, errors.New("empty score label")
		}
		if prev, ok := out[key]; !ok || v > prev {
			out[key] = v
		}
	}
	return out, nil
}

// AnyAbove reports whether any score is strictly greater than threshold.
func (s Scores) AnyAbove(threshold float64) bool {
	for _, v := range s {
		if v > threshold {
			return true
		}
	}
	return false
}

// MarshalJSON renders a nil Scores as {} so empty results never serialize as null.
func (s Scores) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]float64(s))
}

// Dimensions holds an image's pixel size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FileInfo describes a stored upload.
type FileInfo struct {
	FilePath         string      `json:"file_path"`
	FileSize         int64       `json:"file_size"`
	FileType         string      `json:"file_type"`
	Dimensions       *Dimensions `json:"dimensions,omitempty"`
	FileHash         string      `json:"file_hash"`
	OriginalFilename string      `json:"original_filename,omitempty"`
}

// ImageAnalysis is the structured output of image classification.
type ImageAnalysis struct {
	NSFWScores      Scores          `json:"nsfw_scores"`
	DetectedObjects json.RawMessage `json:"detected_objects,omitempty"`
	ExtractedText   string          `json:"extracted_text,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// ModerationEvent is the append-only record of one job's terminal outcome.
type ModerationEvent struct {
	ID              int64       `json:"id"                         db:"id"`
	TaskID          string      `json:"task_id"                    db:"task_id"`
	Source          Kind        `json:"source"                     db:"source"`
	ItemID          string      `json:"item_id"                    db:"item_id"`
	Verdict         Verdict     `json:"verdict"                    db:"verdict"`
	Scores          Scores      `json:"scores"                     db:"scores"`
	FilePath        *string     `json:"file_path,omitempty"        db:"file_path"`
	FileSize        *int64      `json:"file_size,omitempty"        db:"file_size"`
	FileType        *string     `json:"file_type,omitempty"        db:"file_type"`
	ImageDimensions *Dimensions `json:"image_dimensions,omitempty" db:"image_dimensions"`
	ProcessingMs    *int64      `json:"processing_ms,omitempty"    db:"processing_ms"`
	CreatedAt       time.Time   `json:"created_at"                 db:"created_at"`
}

// RecordEventRequest carries everything needed to persist a terminal outcome.
// Analysis is only set for image events and is written alongside the event.
type RecordEventRequest struct {
	TaskID       string
	Source       Kind
	ItemID       string
	Verdict      Verdict
	Scores       Scores
	File         *FileInfo
	Analysis     *ImageAnalysis
	ProcessingMs *int64
	OccurredAt   time.Time
}

// DailyStats is the aggregate of one UTC day of events for one kind.
type DailyStats struct {
	TotalRequests     int      `json:"total_requests"            db:"total_requests"`
	FlaggedCount      int      `json:"flagged_count"             db:"flagged_count"`
	CleanCount        int      `json:"clean_count"               db:"clean_count"`
	ErrorCount        int      `json:"error_count"               db:"error_count"`
	AvgProcessingTime *float64 `json:"avg_processing_time"       db:"avg_processing_time"`
	TotalFileSize     *int64   `json:"total_file_size,omitempty" db:"total_file_size"`
}

// DailyAnalytics is a persisted rollup row keyed by (date, source_type).
type DailyAnalytics struct {
	Date       time.Time `json:"date"        db:"date"`
	SourceType Kind      `json:"source_type" db:"source_type"`
	DailyStats
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// VerdictCounts groups request totals by verdict.
type VerdictCounts struct {
	TotalRequests int `json:"total_requests"`
	Flagged       int `json:"flagged"`
	Clean         int `json:"clean"`
	Error         int `json:"error"`
}

// Add accumulates a rollup row.
func (c *VerdictCounts) Add(s DailyStats) {
	c.TotalRequests += s.TotalRequests
	c.Flagged += s.FlaggedCount
	c.Clean += s.CleanCount
	c.Error += s.ErrorCount
}

// DailyBreakdown is one day of a summary window.
type DailyBreakdown struct {
	Date string `json:"date"`
	VerdictCounts
}

// AnalyticsSummary is the response shape of the summary query.
type AnalyticsSummary struct {
	Period         string                 `json:"period"`
	TotalRequests  int                    `json:"total_requests"`
	BySource       map[Kind]VerdictCounts `json:"by_source"`
	ByVerdict      map[Verdict]int        `json:"by_verdict"`
	DailyBreakdown []DailyBreakdown       `json:"daily_breakdown"`
}

// SystemMetric is an append-only sample.
type SystemMetric struct {
	ID        int64             `json:"id"             db:"id"`
	Name      string            `json:"metric_name"    db:"metric_name"`
	Value     float64           `json:"value"          db:"value"`
	Unit      *string           `json:"unit,omitempty" db:"unit"`
	Tags      map[string]string `json:"tags,omitempty" db:"tags"`
	Timestamp time.Time         `json:"timestamp"      db:"timestamp"`
}

// MetricPoint is one sample in a metric history.
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Unit      *string           `json:"unit,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// MetricHistory is the response shape of the metric history query.
type MetricHistory struct {
	MetricName string        `json:"metric_name"`
	Period     string        `json:"period"`
	Data       []MetricPoint `json:"data"`
}
