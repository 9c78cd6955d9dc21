// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameStackTopAndSecond(t *testing.T) {
	var s nameStack
	s.push("EventData")
	s.push("Data")
	assert.Equal(t, "Data", s.top())
	assert.Equal(t, "EventData", s.second())

	s.pop()
	assert.Equal(t, "EventData", s.top())
	assert.Equal(t, "", s.second())
}

func TestNameStackBoundedDepth(t *testing.T) {
	var s nameStack
	for i := 0; i < maxNameStackDepth+10; i++ {
		s.push("x")
	}
	assert.Equal(t, maxNameStackDepth, s.depth())
}

func TestNameStackPopBelowEmptyIsNoOp(t *testing.T) {
	var s nameStack
	s.pop()
	s.pop()
	assert.Equal(t, 0, s.depth())
	assert.Equal(t, "", s.top())
}

func TestTruncateName(t *testing.T) {
	long := strings.Repeat("a", 300)
	assert.Equal(t, maxNameBytes, len(truncateName(long)))
}

func TestNameStackReset(t *testing.T) {
	var s nameStack
	s.push("a")
	s.push("b")
	s.reset()
	assert.Equal(t, 0, s.depth())
}
