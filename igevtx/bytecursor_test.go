// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHaveAndRemaining(t *testing.T) {
	c := newRootContext(newChunkState([]byte{1, 2, 3, 4}))
	assert.True(t, c.have(4))
	assert.False(t, c.have(5))
	assert.Equal(t, 4, c.remaining())

	v, err := c.readU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), v)
	assert.Equal(t, 2, c.remaining())
}

func TestContextReadPastEndFails(t *testing.T) {
	c := newRootContext(newChunkState([]byte{1, 2}))
	_, err := c.readU32()
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestInheritWithOffsetTruncatesNotErrors(t *testing.T) {
	parent := newRootContext(newChunkState(make([]byte, 10)))
	parent.offset = 6

	child := inheritWithOffset(parent, 100)
	assert.Equal(t, 4, len(child.data), "child span must stay within the parent's remaining bytes")
	assert.Equal(t, int64(6), child.chunkOrigin)

	exhausted := newRootContext(newChunkState(make([]byte, 10)))
	exhausted.offset = 10
	empty := inheritWithOffset(exhausted, 5)
	assert.Equal(t, 0, len(empty.data))
}

func TestInheritWithOffsetSpanIsSubsetOfParent(t *testing.T) {
	parent := newRootContext(newChunkState(make([]byte, 64)))
	parent.offset = 10
	child := inheritWithOffset(parent, 20)

	childStart := child.chunkOrigin
	childEnd := childStart + int64(len(child.data))
	parentStart := parent.chunkOrigin + int64(parent.offset)
	parentEnd := parent.chunkOrigin + int64(len(parent.data))

	assert.GreaterOrEqual(t, childStart, parentStart)
	assert.LessOrEqual(t, childEnd, parentEnd)
}

func TestTranscodeUTF16ToUTF8Bounded(t *testing.T) {
	units := []uint16{'h', 'i', 0x00e9} // "hi" + e-acute (2-byte UTF-8)
	dst := make([]byte, 3)
	n := transcodeUTF16ToUTF8Bounded(units, dst)
	assert.Equal(t, "hi", string(dst[:n]), "must stop rather than overflow the destination")
}

func TestTranscodeUTF16ToUTF8Unbounded(t *testing.T) {
	units := []uint16{'A', 'B', 'C'}
	assert.Equal(t, "ABC", transcodeUTF16ToUTF8(units))
}

func TestReadPrefixedUnicodeStringAdvancesPastDeclaredCount(t *testing.T) {
	var buf []byte
	buf = append(buf, 3, 0) // count = 3
	buf = append(buf, 'a', 0, 'b', 0, 'c', 0)
	buf = append(buf, 0, 0) // NUL terminator
	buf = append(buf, 0xAA, 0xBB) // trailing bytes that must remain untouched

	c := newRootContext(newChunkState(buf))
	s, err := readPrefixedUnicodeString(c, true)
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
	assert.Equal(t, 2, c.remaining())
}
