package classifier

import (
	"errors"
	"fmt"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// validateExpr checks that a scores path compiles.
func validateExpr(expr string) error {
	if expr == "" {
		return errors.New("scores path is required")
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return fmt.Errorf("invalid scores path %q: %w", expr, err)
	}
	return nil
}

// extractScores evaluates expr against doc and accepts either an object of label to score or
// a list of {label, score} objects. A nested list, as returned by some text models, is flattened.
func extractScores(op, expr string, doc any) (model.Scores, error) {
	found, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, &TransientError{Op: op, Err: fmt.Errorf("evaluate %q: %w", expr, err)}
	}
	raw, err := toScoreMap(found)
	if err != nil {
		return nil, &TransientError{Op: op, Err: fmt.Errorf("scores at %q: %w", expr, err)}
	}
	scores, err := model.NormalizeScores(raw)
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}
	return scores, nil
}

func toScoreMap(v any) (map[string]float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, errors.New("no scores in response")
	case map[string]any:
		out := make(map[string]float64, len(t))
		for label, raw := range t {
			f, ok := raw.(float64)
			if !ok {
				return nil, fmt.Errorf("score %q is not a number", label)
			}
			out[label] = f
		}
		return out, nil
	case []any:
		out := make(map[string]float64, len(t))
		for _, item := range t {
			if nested, ok := item.([]any); ok {
				m, err := toScoreMap(nested)
				if err != nil {
					return nil, err
				}
				for k, f := range m {
					out[k] = f
				}
				continue
			}
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("unexpected score entry %T", item)
			}
			label, _ := entry["label"].(string)
			score, ok := entry["score"].(float64)
			if label == "" || !ok {
				return nil, errors.New("score entry needs label and score")
			}
			out[label] = score
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected scores shape %T", v)
	}
}
