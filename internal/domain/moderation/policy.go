// Package moderation turns classifier scores into verdicts.
package moderation

import (
	"errors"
	"strings"

	"github.com/target/mmk-moderation/internal/domain/model"
)

const (
	// DefaultTextThreshold flags text when any category score exceeds it.
	DefaultTextThreshold = 0.3
	// DefaultImageThreshold flags an image when its nsfw score exceeds it.
	DefaultImageThreshold = 0.7
)

// Policy holds the thresholds used to derive verdicts. Comparisons are strict.
type Policy struct {
	TextThreshold  float64
	ImageThreshold float64
	// ImageLabel is the score compared against ImageThreshold; defaults to "nsfw".
	ImageLabel string
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		TextThreshold:  DefaultTextThreshold,
		ImageThreshold: DefaultImageThreshold,
		ImageLabel:     model.ScoreNSFW,
	}
}

// TextVerdict is flagged iff any score is strictly above the text threshold.
func (p Policy) TextVerdict(scores model.Scores) model.Verdict {
	if scores.AnyAbove(p.TextThreshold) {
		return model.VerdictFlagged
	}
	return model.VerdictClean
}

// ImageVerdict is flagged iff the image label's score is strictly above the image threshold.
// A missing label scores zero.
func (p Policy) ImageVerdict(scores model.Scores) model.Verdict {
	label := strings.ToLower(p.ImageLabel)
	if label == "" {
		label = model.ScoreNSFW
	}
	if scores[label] > p.ImageThreshold {
		return model.VerdictFlagged
	}
	return model.VerdictClean
}

// Verdict dispatches on kind.
func (p Policy) Verdict(kind model.Kind, scores model.Scores) model.Verdict {
	if kind == model.KindImage {
		return p.ImageVerdict(scores)
	}
	return p.TextVerdict(scores)
}

// IsBlankText reports whether content has nothing to classify.
func IsBlankText(content string) bool {
	return strings.TrimSpace(content) == ""
}

// IsPermanentFailure reports whether err, or any error it wraps, declares itself permanent
// through a Permanent() bool method. Such failures are finalized without retry.
func IsPermanentFailure(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}
