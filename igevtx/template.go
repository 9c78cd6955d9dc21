// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import "github.com/Velocidex/ordereddict"

// argSlot is an argument index's declared (key, value-type) pair,
// registered by a Normal/OptionalSubstitution token (spec.md §4.5).
type argSlot struct {
	key       string
	valueType uint16
}

// Template is the per-chunk cached skeleton of a BinXml template: an
// insertion-ordered sequence of fixed (key, literal-value) pairs and a
// mapping from argument index to the slot that fills it at instance time
// (spec.md §3). Fixed pairs are held in an ordereddict.Dict rather than a
// plain map so that re-instantiating the same template byte-for-byte
// reproduces the same pair order every time (spec.md §8 round-trip law),
// the same representation Velocidex/evtx uses for a decoded BinXml record.
type Template struct {
	id    uint32
	fixed *ordereddict.Dict
	args  map[uint16]argSlot
}

func newTemplate(id uint32) *Template {
	return &Template{
		id:    id,
		fixed: ordereddict.NewDict(),
		args:  make(map[uint16]argSlot),
	}
}

// registerFixed records a (key, value) pair discovered while parsing the
// template body. A repeat key keeps its first-seen position and takes the
// new value, so re-registering the same key (e.g. a sibling element with a
// repeated tag name) leaves only the latest value visible, at the position
// of the first occurrence.
func (t *Template) registerFixed(key, value string) {
	if _, seen := t.fixed.Get(key); !seen {
		t.fixed.Set(key, value)
		return
	}
	// ordereddict.Dict.Set moves an existing key to the end, so rebuild
	// the dict to overwrite the value in place instead.
	updated := ordereddict.NewDict()
	for _, k := range t.fixed.Keys() {
		v, _ := t.fixed.Get(k)
		if k == key {
			v = value
		}
		updated.Set(k, v)
	}
	t.fixed = updated
}

// registerArg records which key name and declared type fill argument
// index idx at instance time.
func (t *Template) registerArg(idx uint16, key string, valueType uint16) {
	t.args[idx] = argSlot{key: key, valueType: valueType}
}

func (t *Template) arg(idx uint16) (argSlot, bool) {
	s, ok := t.args[idx]
	return s, ok
}

// lookupTemplate and registerTemplate implement the Template Cache
// (spec.md §4.4): reset en bloc at every chunk boundary, looked up by
// the BinXml stream's 32-bit short ID.
func (cs *chunkState) lookupTemplate(id uint32) (*Template, bool) {
	t, ok := cs.templates[id]
	return t, ok
}

func (cs *chunkState) registerTemplate(id uint32) *Template {
	t := newTemplate(id)
	cs.templates[id] = t
	return t
}
