// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import "github.com/pkg/errors"

// The five error kinds the Tokenizer, Framer and Typed Value Decoder can
// raise. They're wrapped with call-site context via github.com/pkg/errors
// as they propagate; callers that care about the kind use errors.Is.
var (
	ErrShortRead          = errors.New("short read: fixed-width read past window end")
	ErrMalformedToken     = errors.New("malformed token: unrecognized primary token byte")
	ErrBadMagic           = errors.New("bad magic")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrConversionFailure  = errors.New("conversion failure")
)
