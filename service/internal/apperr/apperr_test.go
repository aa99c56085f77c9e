package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("guess: %w", Invalid("rank", "must be >= 0"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "guess: invalid rank: must be >= 0", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "rank", ve.Field)
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistenceError{Operation: "record game", Err: cause}
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Retryable(err))
	assert.False(t, Retryable(ErrNotFound))
}
