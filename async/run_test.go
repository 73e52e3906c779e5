package async

import (
	"errors"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	assert := assert_.New(t)
	a := <-Run(func() int {
		return 123
	})
	assert.Equal(123, a)

	b := <-Run(func() error {
		return errors.New("failed")
	})
	assert.EqualError(b, "failed")
}
