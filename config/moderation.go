package config

import (
	"fmt"
	"strings"
	"time"
)

// ModerationConfig contains verdict thresholds and the retry policy.
type ModerationConfig struct {
	// TextThreshold flags text when any score is strictly greater.
	TextThreshold float64 `env:"MODERATION_TEXT_THRESHOLD" envDefault:"0.3"`

	// ImageThreshold flags an image when its ImageLabel score is strictly greater.
	ImageThreshold float64 `env:"MODERATION_IMAGE_THRESHOLD" envDefault:"0.7"`

	// ImageLabel is the image score compared against ImageThreshold.
	ImageLabel string `env:"MODERATION_IMAGE_LABEL" envDefault:"nsfw"`

	// MaxAttempts bounds classification attempts per job.
	MaxAttempts int `env:"MODERATION_MAX_ATTEMPTS" envDefault:"3"`

	// RetryBackoff is the fixed delay before a failed attempt is retried.
	RetryBackoff time.Duration `env:"MODERATION_RETRY_BACKOFF" envDefault:"60s"`
}

// Sanitize applies guardrails to moderation configuration values.
func (m *ModerationConfig) Sanitize() {
	if m.TextThreshold < 0 || m.TextThreshold > 1 {
		m.TextThreshold = 0.3
	}
	if m.ImageThreshold < 0 || m.ImageThreshold > 1 {
		m.ImageThreshold = 0.7
	}
	m.ImageLabel = strings.ToLower(strings.TrimSpace(m.ImageLabel))
	if m.ImageLabel == "" {
		m.ImageLabel = "nsfw"
	}
	if m.MaxAttempts < 1 {
		m.MaxAttempts = 3
	}
	if m.RetryBackoff <= 0 {
		m.RetryBackoff = 60 * time.Second
	}
}

// TextRequestFormat selects the request body shape sent to the text classifier.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver
type TextRequestFormat string

const (
	// TextFormatOpenAI posts {"input": content}.
	TextFormatOpenAI TextRequestFormat = "openai"
	// TextFormatHuggingFace posts {"inputs": content}.
	TextFormatHuggingFace TextRequestFormat = "huggingface"
)

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (f *TextRequestFormat) UnmarshalText(text []byte) error {
	v := TextRequestFormat(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case TextFormatOpenAI, TextFormatHuggingFace:
		*f = v
		return nil
	case "hf":
		*f = TextFormatHuggingFace
		return nil
	default:
		return fmt.Errorf("invalid text request format: %q", v)
	}
}

const (
	defaultOpenAIScoresPath = "results[0].category_scores"
	defaultHFTextScoresPath = "[0]"
	defaultImageScoresPath  = "@"
)

// ClassifierConfig contains the external classification endpoints.
type ClassifierConfig struct {
	TextURL        string            `env:"CLASSIFIER_TEXT_URL"         envDefault:"https://api.openai.com/v1/moderations"`
	TextToken      string            `env:"CLASSIFIER_TEXT_TOKEN"`
	TextFormat     TextRequestFormat `env:"CLASSIFIER_TEXT_FORMAT"      envDefault:"openai"`
	TextScoresPath string            `env:"CLASSIFIER_TEXT_SCORES_PATH"`

	ImageURL        string `env:"CLASSIFIER_IMAGE_URL"         envDefault:"https://api-inference.huggingface.co/models/Falconsai/nsfw_image_detection"`
	ImageToken      string `env:"CLASSIFIER_IMAGE_TOKEN"`
	ImageScoresPath string `env:"CLASSIFIER_IMAGE_SCORES_PATH" envDefault:"@"`

	// Timeout bounds one classifier call.
	Timeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"30s"`

	// MaxResponseBytes caps the classifier response body.
	MaxResponseBytes int64 `env:"CLASSIFIER_MAX_RESPONSE_BYTES" envDefault:"1048576"`
}

// Sanitize applies guardrails to classifier configuration values.
func (c *ClassifierConfig) Sanitize() {
	c.TextURL = strings.TrimSpace(c.TextURL)
	c.ImageURL = strings.TrimSpace(c.ImageURL)
	c.TextToken = strings.TrimSpace(c.TextToken)
	c.ImageToken = strings.TrimSpace(c.ImageToken)

	if c.TextFormat != TextFormatHuggingFace {
		c.TextFormat = TextFormatOpenAI
	}
	if strings.TrimSpace(c.TextScoresPath) == "" {
		if c.TextFormat == TextFormatHuggingFace {
			c.TextScoresPath = defaultHFTextScoresPath
		} else {
			c.TextScoresPath = defaultOpenAIScoresPath
		}
	}
	if strings.TrimSpace(c.ImageScoresPath) == "" {
		c.ImageScoresPath = defaultImageScoresPath
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = 1 << 20
	}
}

// UploadsConfig contains image upload storage configuration.
type UploadsConfig struct {
	Dir      string `env:"UPLOAD_DIR"       envDefault:"uploads"`
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
}

// Sanitize applies guardrails to upload configuration values.
func (u *UploadsConfig) Sanitize() {
	u.Dir = strings.TrimSpace(u.Dir)
	if u.Dir == "" {
		u.Dir = "uploads"
	}
	if u.MaxBytes <= 0 {
		u.MaxBytes = 10 << 20
	}
}
