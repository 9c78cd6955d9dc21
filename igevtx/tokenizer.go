// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// BinXml primary token bytes (spec.md §4.5). Tokens with a has-attributes
// variant carry the same action with the 0x40 bit set.
const (
	tokenEOF                       = 0x00
	tokenOpenStartElement           = 0x01
	tokenOpenStartElementWithAttrs  = 0x41
	tokenCloseStartElement          = 0x02
	tokenCloseEmptyElement          = 0x03
	tokenCloseElement               = 0x04
	tokenValueText                  = 0x05
	tokenValueTextAlt               = 0x45
	tokenAttribute                  = 0x06
	tokenAttributeAlt               = 0x46
	tokenTemplateInstance           = 0x0C
	tokenSubstitution                = 0x0D
	tokenOptionalSubstitution        = 0x0E
	tokenFragmentHeader             = 0x0F
)

func isNoOpToken(tok byte) bool {
	switch tok {
	case 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x47, 0x48, 0x49:
		return true
	}
	return false
}

// setState is the only primitive allowed to change Context.state: it pops
// the Name Stack exactly once on every InAttribute->non-InAttribute edge,
// since an attribute name's scope lasts only until its value is read or
// the state otherwise changes (spec.md §4.5).
func setState(ctx *Context, next ParseState) {
	if ctx.state == StateInAttribute && next != StateInAttribute {
		ctx.chunk.names.pop()
	}
	ctx.state = next
}

// resolveKey implements the "proper key name" rule: the EventData/Data/@Name
// idiom redirects the key for the content that follows the Name attribute's
// value to that cached value instead of the literal element name "Data"
// (spec.md §4.5).
func resolveKey(ctx *Context) string {
	names := &ctx.chunk.names
	if names.top() == "Data" && names.second() == "EventData" && ctx.cachedValue != "" {
		return ctx.cachedValue
	}
	return names.top()
}

// recordPair routes a resolved (key, value) pair either onto the template
// currently being defined (cache-miss body parse) or straight to the
// output sink, depending on whether this Context sits inside a template
// body.
func recordPair(ctx *Context, rec *recordEmitter, key, value string) {
	if ctx.template != nil {
		ctx.template.registerFixed(key, value)
		return
	}
	rec.emit(key, value)
}

// runTokenizer drives the BinXml Tokenizer over ctx until the window is
// exhausted, an EOF token is seen, or a malformed token is hit (spec.md
// §4.5). ctx.template, if non-nil, is the Template Description currently
// being populated; a nil template means values resolve straight to rec.
func runTokenizer(ctx *Context, rec *recordEmitter) error {
	for ctx.have(1) {
		tok, err := ctx.readU8()
		if err != nil {
			return err
		}

		switch tok {
		case tokenEOF:
			ctx.skip(ctx.remaining())
			return nil

		case tokenOpenStartElement, tokenOpenStartElementWithAttrs:
			if err := handleOpenStartElement(ctx, tok == tokenOpenStartElementWithAttrs); err != nil {
				return err
			}

		case tokenCloseStartElement:
			setState(ctx, StateNormal)

		case tokenCloseEmptyElement, tokenCloseElement:
			setState(ctx, StateNormal)
			ctx.chunk.names.pop()

		case tokenValueText, tokenValueTextAlt:
			if err := handleValueText(ctx, rec); err != nil {
				return err
			}

		case tokenAttribute, tokenAttributeAlt:
			if err := handleAttribute(ctx); err != nil {
				return err
			}

		case tokenTemplateInstance:
			if err := handleTemplateInstance(ctx, rec); err != nil {
				return err
			}

		case tokenSubstitution, tokenOptionalSubstitution:
			if err := handleSubstitution(ctx); err != nil {
				return err
			}

		case tokenFragmentHeader:
			if _, err := ctx.readBytes(3); err != nil {
				return err
			}

		default:
			if isNoOpToken(tok) {
				continue
			}
			return errors.Wrapf(ErrMalformedToken, "token 0x%02x", tok)
		}
	}
	return nil
}

func handleOpenStartElement(ctx *Context, hasAttrs bool) error {
	if _, err := ctx.readU16(); err != nil { // dependency-id, unexercised (spec.md §9 open question a)
		return err
	}
	if _, err := ctx.readU32(); err != nil { // element-length, boundaries are tracked via Close tokens instead
		return err
	}
	name, err := readName(ctx)
	if err != nil {
		return err
	}
	if hasAttrs {
		if _, err := ctx.readU32(); err != nil { // attribute-list-length
			return err
		}
	}
	ctx.chunk.names.push(name)
	setState(ctx, StateNormal)
	return nil
}

func handleValueText(ctx *Context, rec *recordEmitter) error {
	if _, err := ctx.readU8(); err != nil { // string-type, rendering doesn't vary by it
		return err
	}
	value, err := readPrefixedUnicodeString(ctx, false)
	if err != nil {
		return err
	}

	names := &ctx.chunk.names
	top, second := names.top(), names.second()
	key := resolveKey(ctx)

	if !(top == "Name" && second == "Data") {
		recordPair(ctx, rec, key, decorateTextValue(key, value))
	}

	ctx.cachedValue = value
	return nil
}

// decorateTextValue applies the EventID and LogonType decorations the Typed
// Value Decoder applies to typed arguments (spec.md §4.6) to literal text
// carried by a ValueText token, falling back to a quoted string for
// anything else. The Address1/Address2 dotted-quad is not applied to text.
func decorateTextValue(key, value string) string {
	switch key {
	case "EventID":
		if n, err := strconv.ParseUint(value, 10, 16); err == nil {
			s := fmt.Sprintf("%04d", n)
			if desc, ok := eventDescription(uint16(n)); ok {
				s += fmt.Sprintf(" (%s)", desc)
			}
			return s
		}
	case "LogonType":
		if n, err := strconv.ParseUint(value, 10, 32); err == nil {
			s := fmt.Sprintf("%08d", n)
			if label, ok := logonTypeLabel(uint32(n)); ok {
				s += fmt.Sprintf(" (%s)", label)
			}
			return s
		}
	}
	return "'" + value + "'"
}

func handleAttribute(ctx *Context) error {
	name, err := readName(ctx)
	if err != nil {
		return err
	}
	ctx.chunk.names.push(name)
	setState(ctx, StateInAttribute)
	return nil
}

func handleSubstitution(ctx *Context) error {
	idx, err := ctx.readU16()
	if err != nil {
		return err
	}
	valueType, err := ctx.readU8()
	if err != nil {
		return err
	}
	vt := uint16(valueType)
	if vt == 0 {
		valueType2, err := ctx.readU8()
		if err != nil {
			return err
		}
		vt = uint16(valueType2)
	}

	if ctx.template != nil {
		ctx.template.registerArg(idx, resolveKey(ctx), vt)
	}
	return nil
}

// handleTemplateInstance implements the full TemplateInstance protocol of
// spec.md §4.5: cache lookup, register-before-parse on miss, emission of
// the Description's fixed pairs, then per-argument decode and emission.
func handleTemplateInstance(ctx *Context, rec *recordEmitter) error {
	disc, err := ctx.readU8()
	if err != nil {
		return err
	}
	if disc != 1 {
		return errors.Wrapf(ErrInvariantViolation, "template instance discriminator %d", disc)
	}

	shortID, err := ctx.readU32()
	if err != nil {
		return err
	}
	if _, err := ctx.readU32(); err != nil { // template-body-length, redundant with the cache-miss copy below
		return err
	}
	numArgs, err := ctx.readU32()
	if err != nil {
		return err
	}

	tpl, hit := ctx.chunk.lookupTemplate(shortID)
	if !hit {
		if _, err := ctx.readBytes(16); err != nil { // long-id, unused: the cache is keyed by short-id only
			return err
		}
		bodyLength, err := ctx.readU32()
		if err != nil {
			return err
		}

		// Register before parsing: a template body that names its own
		// short-id must find itself already cached, not recurse.
		tpl = ctx.chunk.registerTemplate(shortID)
		child := inheritWithOffset(ctx, int(bodyLength))
		child.template = tpl
		if err := runTokenizer(child, rec); err != nil {
			return err
		}
		ctx.skip(int(bodyLength))

		numArgs, err = ctx.readU32()
		if err != nil {
			return err
		}
	}

	for _, key := range tpl.fixed.Keys() {
		v, _ := tpl.fixed.Get(key)
		s, _ := v.(string)
		rec.emit(key, s)
	}

	type argDesc struct {
		length    int
		valueType uint16
	}
	descs := make([]argDesc, numArgs)
	for i := range descs {
		length, err := ctx.readU16()
		if err != nil {
			return err
		}
		valueType, err := ctx.readU16()
		if err != nil {
			return err
		}
		descs[i] = argDesc{length: int(length), valueType: valueType}
	}

	for idx, d := range descs {
		slot, ok := tpl.arg(uint16(idx))
		if !ok {
			if !ctx.have(d.length) {
				return errors.Wrapf(ErrShortRead, "unregistered argument %d needs %d bytes", idx, d.length)
			}
			ctx.skip(d.length)
			continue
		}
		value, err := decodeValue(ctx, slot.valueType, d.length, slot.key, rec)
		if err != nil {
			return err
		}
		if slot.valueType != valueTypeEmpty {
			rec.emit(slot.key, value)
		}
	}
	return nil
}
