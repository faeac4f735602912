//go:build !opencv

package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenWithoutOpenCV(t *testing.T) {
	src, err := Open(Options{Device: 1})
	assert.Nil(t, src)
	assert.ErrorIs(t, err, ErrUnavailable)
}
