package classifier

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// ImageOptions configures an ImageClient.
type ImageOptions struct {
	HTTPOptions
	ScoresPath string
}

// ImageClient classifies stored images against a Hugging Face style image endpoint.
type ImageClient struct {
	ep         *endpoint
	scoresPath string
}

// NewImageClient constructs an ImageClient.
func NewImageClient(opts ImageOptions) (*ImageClient, error) {
	ep, err := newEndpoint(opts.HTTPOptions, "image_classifier")
	if err != nil {
		return nil, err
	}
	if err := validateExpr(opts.ScoresPath); err != nil {
		return nil, err
	}
	return &ImageClient{ep: ep, scoresPath: opts.ScoresPath}, nil
}

// ClassifyImage reads the file at path and posts it base64-encoded as {"inputs": ...}.
// A missing or unreadable file is permanent.
func (c *ImageClient) ClassifyImage(ctx context.Context, path string) (model.ImageAnalysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ImageAnalysis{}, &PermanentError{Op: "classify image", Err: fmt.Errorf("read image: %w", err)}
	}
	doc, err := c.ep.postJSON(ctx, "classify image", map[string]string{
		"inputs": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return model.ImageAnalysis{}, err
	}
	scores, err := extractScores("classify image", c.scoresPath, doc)
	if err != nil {
		return model.ImageAnalysis{}, err
	}
	return model.ImageAnalysis{NSFWScores: scores}, nil
}

var _ core.ImageClassifier = (*ImageClient)(nil)
