package slice

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, Map([]int{1, 2, 3}, strconv.Itoa))
	assert.Empty(t, Map(nil, strconv.Itoa))
}

func TestAll(t *testing.T) {
	positive := func(i int) bool { return i > 0 }
	assert.True(t, All([]int{1, 2}, positive))
	assert.False(t, All([]int{1, -2}, positive))
	assert.True(t, All(nil, positive))
}
