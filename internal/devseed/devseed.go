// Package devseed writes synthetic moderation history for local development, so the
// analytics endpoints have data before any real traffic has been processed.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/service"
)

// Roller rebuilds the rollup of one UTC day.
type Roller interface {
	Rollup(ctx context.Context, day time.Time) ([]model.DailyAnalytics, error)
}

// Stores bundles the dependencies needed for seeding.
type Stores struct {
	Events  core.EventRepository  // Required
	Metrics core.MetricRepository // Optional
	Rollup  Roller                // Optional: seeded days are rolled up when set
}

// Options controls how much history is generated.
type Options struct {
	// Days of history ending today; defaults to 7.
	Days int
	// PerDay is the number of events per kind per day; defaults to 20.
	PerDay int
	// Seed makes the generated verdicts and scores reproducible.
	Seed uint64
	Now  func() time.Time
}

// Report counts what was written.
type Report struct {
	Events      int
	Metrics     int
	RolledUp    int
	SkippedDups int
}

// Run writes Days x PerDay text and image events, one processing-time sample per event,
// and rolls every seeded day up.
func Run(ctx context.Context, stores Stores, opts Options, logger *slog.Logger) (Report, error) {
	if stores.Events == nil {
		return Report{}, errors.New("event repository is required")
	}
	if opts.Days <= 0 {
		opts.Days = 7
	}
	if opts.PerDay <= 0 {
		opts.PerDay = 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := generator{rng: rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))}
	today := opts.Now().UTC().Truncate(24 * time.Hour)
	var report Report

	for d := opts.Days - 1; d >= 0; d-- {
		day := today.AddDate(0, 0, -d)
		for i := range opts.PerDay {
			at := day.Add(time.Duration(i) * (24 * time.Hour / time.Duration(opts.PerDay)))
			for _, kind := range model.Kinds() {
				req := g.event(kind, at)
				inserted, err := stores.Events.Record(ctx, req)
				if err != nil {
					return report, fmt.Errorf("record %s event: %w", kind, err)
				}
				if !inserted {
					report.SkippedDups++
					continue
				}
				report.Events++
				if err := recordMetric(ctx, stores.Metrics, req); err != nil {
					return report, err
				}
				if stores.Metrics != nil {
					report.Metrics++
				}
			}
		}

		if stores.Rollup != nil {
			if _, err := stores.Rollup.Rollup(ctx, day); err != nil {
				return report, fmt.Errorf("rollup %s: %w", day.Format(time.DateOnly), err)
			}
			report.RolledUp++
		}
		logger.InfoContext(ctx, "seeded moderation day", "date", day.Format(time.DateOnly))
	}
	return report, nil
}

func recordMetric(ctx context.Context, metrics core.MetricRepository, req model.RecordEventRequest) error {
	if metrics == nil || req.ProcessingMs == nil {
		return nil
	}
	unit := "ms"
	err := metrics.Record(ctx, model.SystemMetric{
		Name:      service.MetricProcessingTime,
		Value:     float64(*req.ProcessingMs),
		Unit:      &unit,
		Tags:      map[string]string{"source": string(req.Source), "verdict": string(req.Verdict)},
		Timestamp: req.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("record processing time: %w", err)
	}
	return nil
}

type generator struct {
	rng *rand.Rand
}

// event draws a verdict with roughly 70% clean, 25% flagged and 5% error outcomes.
func (g generator) event(kind model.Kind, at time.Time) model.RecordEventRequest {
	taskID := uuid.NewString()
	req := model.RecordEventRequest{
		TaskID:     taskID,
		Source:     kind,
		ItemID:     "seed-" + taskID[:8],
		OccurredAt: at,
	}

	roll := g.rng.Float64()
	switch {
	case roll < 0.05:
		req.Verdict = model.VerdictError
		req.Scores = model.Scores{}
	case roll < 0.30:
		req.Verdict = model.VerdictFlagged
		req.Scores = g.scores(kind, true)
	default:
		req.Verdict = model.VerdictClean
		req.Scores = g.scores(kind, false)
	}

	ms := int64(50 + g.rng.IntN(900))
	req.ProcessingMs = &ms

	if kind == model.KindImage {
		w, h := 320+g.rng.IntN(1600), 240+g.rng.IntN(1200)
		req.File = &model.FileInfo{
			FilePath:   "seed/" + taskID + ".jpg",
			FileSize:   int64(20_000 + g.rng.IntN(2_000_000)),
			FileType:   "image/jpeg",
			Dimensions: &model.Dimensions{Width: w, Height: h},
			FileHash:   fmt.Sprintf("%016x", g.rng.Uint64()),
		}
		if req.Verdict != model.VerdictError {
			req.Analysis = &model.ImageAnalysis{NSFWScores: req.Scores}
		}
	}
	return req
}

// scores returns classifier-shaped scores on the requested side of the default thresholds.
func (g generator) scores(kind model.Kind, flagged bool) model.Scores {
	if kind == model.KindImage {
		nsfw := g.rng.Float64() * 0.6
		if flagged {
			nsfw = 0.75 + g.rng.Float64()*0.25
		}
		return model.Scores{model.ScoreNSFW: nsfw, "normal": 1 - nsfw}
	}

	out := model.Scores{
		"harassment": g.rng.Float64() * 0.25,
		"hate":       g.rng.Float64() * 0.25,
		"violence":   g.rng.Float64() * 0.25,
	}
	if flagged {
		out["harassment"] = 0.35 + g.rng.Float64()*0.65
	}
	return out
}
