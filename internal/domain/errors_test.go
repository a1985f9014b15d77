package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationDetail(t *testing.T) {
	inner := fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)

	assert.Equal(t, "rating must be between 1 and 5", ValidationDetail(inner))
	assert.Equal(t, "rating must be between 1 and 5",
		ValidationDetail(fmt.Errorf("create review: %w", fmt.Errorf("tx: %w", inner))))
	assert.Equal(t, "invalid input", ValidationDetail(ErrValidation))
	assert.Equal(t, "invalid input", ValidationDetail(errors.New("boom")))
	assert.Equal(t, "invalid input", ValidationDetail(nil))
}
