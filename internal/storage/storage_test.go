package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageBeyondEnd(t *testing.T) {
	t.Run("末页之内", func(t *testing.T) {
		assert.False(t, PageBeyondEnd(12, 0, 10))
		assert.False(t, PageBeyondEnd(12, 1, 10))
	})

	t.Run("末页之后", func(t *testing.T) {
		assert.True(t, PageBeyondEnd(12, 2, 10))
		assert.True(t, PageBeyondEnd(10, 1, 10))
		assert.True(t, PageBeyondEnd(0, 0, 10))
	})

	t.Run("页码极大不溢出", func(t *testing.T) {
		assert.True(t, PageBeyondEnd(12, math.MaxInt/10+1, 10))
		assert.True(t, PageBeyondEnd(12, math.MaxInt, math.MaxInt))
	})
}
