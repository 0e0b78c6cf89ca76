package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type classed struct{}

func (classed) Error() string      { return "upstream 503" }
func (classed) ErrorClass() string { return "classifier_transient" }

func TestClassify(t *testing.T) {
	assert.Empty(t, Classify(nil))
	assert.Equal(t, "classifier_transient", Classify(fmt.Errorf("attempt 2: %w", classed{})))
	assert.Equal(t, "timeout", Classify(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, "canceled", Classify(context.Canceled))
	assert.Equal(t, "errors_errorstring", Classify(fmt.Errorf("wrap: %w", errors.New("x"))))
}
