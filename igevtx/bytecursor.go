// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ParseState tracks whether the Tokenizer is inside an attribute value or
// at the top level of an element.
type ParseState int

const (
	StateNormal ParseState = iota
	StateInAttribute
)

// maxCachedValue records the size of the 256-byte stack buffers of the
// C++ original this decoder is ported from. Nothing in this package reads
// it: decoded names are capped by maxNameBytes, cached values are not
// capped.
const maxCachedValue = 256

// chunkState is the per-chunk state shared by every Context window carved
// out of that chunk: the raw 64KiB buffer (for chunk-relative
// back-references), the Template Cache and the Name Stack. It is reset at
// every chunk boundary (spec.md Invariant 3, §5).
type chunkState struct {
	data      []byte
	templates map[uint32]*Template
	names     nameStack
}

func newChunkState(data []byte) *chunkState {
	return &chunkState{
		data:      data,
		templates: make(map[uint32]*Template),
	}
}

// Context is a bounded read cursor over a byte window, with a link back to
// its enclosing chunk so that chunk-relative Name offsets resolve without
// hoisting the chunk buffer through every call (spec.md §3, §9).
type Context struct {
	chunk       *chunkState
	data        []byte
	offset      int
	chunkOrigin int64
	cachedValue string
	template    *Template
	state       ParseState
}

// newRootContext creates the top-level Context for a chunk: its window is
// the entire chunk buffer and its chunk-relative origin is zero.
func newRootContext(chunk *chunkState) *Context {
	return &Context{chunk: chunk, data: chunk.data, offset: 0, chunkOrigin: 0}
}

// newWindow carves a Context over an arbitrary sub-slice of the chunk
// buffer, used by the Framer to hand the Tokenizer exactly one record's
// payload.
func newWindow(chunk *chunkState, data []byte, chunkOrigin int64) *Context {
	return &Context{chunk: chunk, data: data, chunkOrigin: chunkOrigin}
}

func (c *Context) have(n int) bool {
	return c.offset+n <= len(c.data)
}

func (c *Context) remaining() int {
	return len(c.data) - c.offset
}

// absOffset returns this cursor's position expressed as a chunk-relative
// offset, used to decide whether a Name reference points at the current
// position (inline) or elsewhere in the chunk (back-reference).
func (c *Context) absOffset() int64 {
	return c.chunkOrigin + int64(c.offset)
}

func (c *Context) skip(n int) {
	c.offset += n
}

func (c *Context) readBytes(n int) ([]byte, error) {
	if !c.have(n) {
		return nil, errors.Wrapf(ErrShortRead, "need %d bytes, have %d", n, c.remaining())
	}
	b := c.data[c.offset : c.offset+n]
	c.offset += n
	return b, nil
}

func (c *Context) readU8() (uint8, error) {
	b, err := c.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Context) readU16() (uint16, error) {
	b, err := c.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Context) readU32() (uint32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Context) readU64() (uint64, error) {
	b, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *Context) readU16N(n int) ([]uint16, error) {
	b, err := c.readBytes(2 * n)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return out, nil
}

// inheritWithOffset builds a child Context over the parent's remaining
// bytes, truncated (never extended) to fit. This is a correction, not an
// error: a template body length that overruns the chunk simply yields a
// shorter child window (spec.md §4.1).
func inheritWithOffset(parent *Context, wantedLen int) *Context {
	var data []byte
	if parent.offset >= len(parent.data) {
		data = parent.data[len(parent.data):]
	} else {
		end := parent.offset + wantedLen
		if end > len(parent.data) {
			end = len(parent.data)
		}
		data = parent.data[parent.offset:end]
	}
	return &Context{
		chunk:       parent.chunk,
		data:        data,
		offset:      0,
		chunkOrigin: parent.chunkOrigin + int64(parent.offset),
	}
}

// updateLen shrinks (never grows) the window.
func (c *Context) updateLen(newLen int) {
	if newLen <= len(c.data) {
		c.data = c.data[:newLen]
	}
}

// transcodeUTF16ToUTF8Bounded is the pure code-unit UTF-16->UTF-8
// transcoder of spec.md §4.1: no surrogate pair composition, and it
// writes nothing past the destination's capacity (defensive, matching the
// original's fixed stack buffers).
func transcodeUTF16ToUTF8Bounded(units []uint16, dst []byte) int {
	used := 0
	for _, w := range units {
		var charLen int
		var msb, mask byte
		switch {
		case w <= 0x7F:
			charLen = 1
		case w <= 0x7FF:
			charLen = 2
			msb = 0xC0
			mask = 0x1F
		default:
			charLen = 3
			msb = 0xE0
			mask = 0x0F
		}
		if used+charLen >= len(dst) {
			return used
		}
		if charLen == 1 {
			dst[used] = byte(w)
			used++
			continue
		}
		for i := charLen - 1; i > 0; i-- {
			dst[used+i] = 0x80 | byte(w&0x3F)
			w >>= 6
		}
		dst[used] = msb | (byte(w) & mask)
		used += charLen
	}
	return used
}

// transcodeUTF16ToUTF8 is the unbounded convenience form used wherever the
// destination is sized to fit exactly (argument values, whose length is
// known up front from the BinXml stream rather than a fixed stack buffer).
func transcodeUTF16ToUTF8(units []uint16) string {
	dst := make([]byte, len(units)*3+1)
	n := transcodeUTF16ToUTF8Bounded(units, dst)
	return string(dst[:n])
}

// readPrefixedUnicodeString reads a `u16 count` followed by `count`
// little-endian code units, optionally a terminating NUL, advancing the
// cursor past the declared count (plus the NUL). All declared code units
// are decoded; the result is not length-bounded here (spec.md §4.1).
func readPrefixedUnicodeString(c *Context, nullTerminated bool) (string, error) {
	count, err := c.readU16()
	if err != nil {
		return "", err
	}
	units, err := c.readU16N(int(count))
	if err != nil {
		return "", err
	}
	if nullTerminated {
		if _, err := c.readU16(); err != nil {
			return "", err
		}
	}
	return transcodeUTF16ToUTF8(units), nil
}
