package validation_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PiccoloProcione/supersmp/pkg/validation"
)

func TestNew(t *testing.T) {
	errBad := validation.New("bad input")
	errOther := validation.New("bad input")
	wrapped := fmt.Errorf("parsing %q: %w", "x", errBad)

	assert.EqualError(t, errBad, "bad input")
	assert.ErrorIs(t, wrapped, errBad)
	assert.ErrorIs(t, wrapped, validation.ErrInvalid)
	assert.NotErrorIs(t, wrapped, errOther)
	assert.NotErrorIs(t, errors.New("bad input"), validation.ErrInvalid)
}
