// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import "github.com/pkg/errors"

// readName resolves a chunk-relative Name reference (spec.md §4.2). The
// stream always carries a 4-byte chunk-relative offset; if that offset
// equals the current position the Name body is decoded in place,
// otherwise it's read through a temporary cursor over the chunk buffer
// and the caller's cursor only advances past the 4-byte pointer.
func readName(c *Context) (string, error) {
	// +4 because the name struct, if inline, starts right after the
	// pointer we're about to read.
	inlinePos := c.absOffset() + 4

	offset, err := c.readU32()
	if err != nil {
		return "", errors.Wrap(err, "read name offset")
	}

	if int64(offset) == inlinePos {
		return readNameBody(c)
	}

	if int64(offset) < 0 || int(offset) > len(c.chunk.data) {
		return "", errors.Wrapf(ErrInvariantViolation, "name offset 0x%x outside chunk", offset)
	}

	tmp := newRootContext(c.chunk)
	tmp.offset = int(offset)
	return readNameBody(tmp)
}

// readNameBody reads the fixed layout at a Name's chunk offset: a 4-byte
// next-pointer (unused by this decoder, kept only for cursor arithmetic),
// a 2-byte hash, then a NUL-terminated prefixed Unicode string.
func readNameBody(c *Context) (string, error) {
	if _, err := c.readU32(); err != nil { // next-pointer
		return "", errors.Wrap(err, "read name next-pointer")
	}
	if _, err := c.readU16(); err != nil { // hash
		return "", errors.Wrap(err, "read name hash")
	}
	s, err := readPrefixedUnicodeString(c, true)
	if err != nil {
		return "", errors.Wrap(err, "read name string")
	}
	return truncateName(s), nil
}
