// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import (
	"fmt"
	"io"
	"time"
)

// recordEmitter is the Emitter of spec.md §4.8: a flat key/value sink for
// a single record. No escaping is performed, matching the source's known
// limitation around embedded quotes (spec.md §9 note 3).
type recordEmitter struct {
	w io.Writer
}

func newRecordEmitter(w io.Writer) *recordEmitter {
	return &recordEmitter{w: w}
}

func (r *recordEmitter) emit(key, value string) {
	fmt.Fprintf(r.w, "'%s':%s, ", key, value)
}

// writePrelude writes the `Record #<n> <YYYY-MM-DD>T<HH:MM:SS>Z ` header
// that precedes a record's pair stream.
func (r *recordEmitter) writePrelude(number uint64, ts time.Time) {
	fmt.Fprintf(r.w, "Record #%d %04d-%02d-%02dT%02d:%02d:%02dZ ",
		number, ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second())
}

func (r *recordEmitter) finish() {
	fmt.Fprintln(r.w)
}
