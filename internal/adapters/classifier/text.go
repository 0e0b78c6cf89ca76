package classifier

import (
	"context"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// RequestFormat selects the request body sent to the text endpoint.
type RequestFormat string

const (
	// FormatOpenAI sends {"input": content}.
	FormatOpenAI RequestFormat = "openai"
	// FormatHuggingFace sends {"inputs": content}.
	FormatHuggingFace RequestFormat = "huggingface"
)

// TextOptions configures a TextClient.
type TextOptions struct {
	HTTPOptions
	Format     RequestFormat
	ScoresPath string
}

// TextClient classifies text against an OpenAI-compatible or Hugging Face endpoint.
type TextClient struct {
	ep         *endpoint
	format     RequestFormat
	scoresPath string
}

// NewTextClient constructs a TextClient.
func NewTextClient(opts TextOptions) (*TextClient, error) {
	ep, err := newEndpoint(opts.HTTPOptions, "text_classifier")
	if err != nil {
		return nil, err
	}
	if err := validateExpr(opts.ScoresPath); err != nil {
		return nil, err
	}
	format := opts.Format
	if format != FormatHuggingFace {
		format = FormatOpenAI
	}
	return &TextClient{ep: ep, format: format, scoresPath: opts.ScoresPath}, nil
}

// ClassifyText returns normalized scores for content. Callers short-circuit blank content.
func (c *TextClient) ClassifyText(ctx context.Context, content string) (model.Scores, error) {
	body := map[string]string{"input": content}
	if c.format == FormatHuggingFace {
		body = map[string]string{"inputs": content}
	}
	doc, err := c.ep.postJSON(ctx, "classify text", body)
	if err != nil {
		return nil, err
	}
	return extractScores("classify text", c.scoresPath, doc)
}

var _ core.TextClassifier = (*TextClient)(nil)
