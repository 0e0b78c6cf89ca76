package core

import (
	"context"
	"io"
	"time"

	"github.com/target/mmk-moderation/internal/domain/model"
)

// TextClassifier scores text content. Errors that retrying cannot fix implement
// Permanent() bool and report true.
type TextClassifier interface {
	ClassifyText(ctx context.Context, content string) (model.Scores, error)
}

// ImageClassifier scores a stored image.
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, path string) (model.ImageAnalysis, error)
}

// Upload is an incoming image file.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// FileStore persists uploaded images and removes them after processing or retention.
type FileStore interface {
	Save(ctx context.Context, upload Upload) (*model.FileInfo, error)
	Remove(ctx context.Context, path string) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
