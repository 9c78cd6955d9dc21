// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// Typed value encodings understood by the Typed Value Decoder (spec.md §4.6).
const (
	valueTypeEmpty       = 0x00
	valueTypeString      = 0x01
	valueTypeUInt8       = 0x04
	valueTypeUInt16      = 0x06
	valueTypeUInt32      = 0x08
	valueTypeUInt64      = 0x0A
	valueTypeBinary      = 0x0E
	valueTypeGUID        = 0x0F
	valueTypeFileTime    = 0x11
	valueTypeSID         = 0x13
	valueTypeHexInt32    = 0x14
	valueTypeHexInt64    = 0x15
	valueTypeBinXML      = 0x21
	valueTypeStringArray = 0x81
)

// decodeValue renders length bytes of the declared type into printable
// form, always consuming exactly length bytes of the outer cursor
// regardless of how the type's own decoding walked its bounded
// sub-window (spec.md §4.6's boundary behaviors demand this: a truncated
// or malformed value must never desynchronize the outer stream).
func decodeValue(outer *Context, valueType uint16, length int, key string, rec *recordEmitter) (string, error) {
	if !outer.have(length) {
		return "", errors.Wrapf(ErrShortRead, "value of type 0x%02x needs %d bytes", valueType, length)
	}
	sub := inheritWithOffset(outer, length)
	value, err := decodeValueBody(sub, valueType, length, key, rec)
	outer.skip(length)
	return value, err
}

func decodeValueBody(sub *Context, valueType uint16, length int, key string, rec *recordEmitter) (string, error) {
	switch valueType {
	case valueTypeEmpty:
		return "", nil

	case valueTypeString:
		units, err := sub.readU16N(length / 2)
		if err != nil {
			return "", err
		}
		return "'" + transcodeUTF16ToUTF8(units) + "'", nil

	case valueTypeUInt8:
		v, err := sub.readU8()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%02d", v), nil

	case valueTypeUInt16:
		v, err := sub.readU16()
		if err != nil {
			return "", err
		}
		s := fmt.Sprintf("%04d", v)
		if key == "EventID" {
			if desc, ok := eventDescription(v); ok {
				s += fmt.Sprintf(" (%s)", desc)
			}
		}
		return s, nil

	case valueTypeUInt32:
		v, err := sub.readU32()
		if err != nil {
			return "", err
		}
		s := fmt.Sprintf("%08d", v)
		switch {
		case key == "LogonType":
			if label, ok := logonTypeLabel(v); ok {
				s += fmt.Sprintf(" (%s)", label)
			}
		case key == "Address1" || key == "Address2":
			var raw [4]byte
			binary.LittleEndian.PutUint32(raw[:], v)
			s += fmt.Sprintf(" (%d.%d.%d.%d)", raw[0], raw[1], raw[2], raw[3])
		}
		return s, nil

	case valueTypeUInt64:
		v, err := sub.readU64()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%016d", v), nil

	case valueTypeBinary:
		b, err := sub.readBytes(length)
		if err != nil {
			return "", err
		}
		return strings.ToUpper(hex.EncodeToString(b)), nil

	case valueTypeGUID:
		g, err := decodeGUID(sub)
		if err != nil {
			return "", err
		}
		return formatGUIDQuirk(g), nil

	case valueTypeFileTime:
		v, err := sub.readU64()
		if err != nil {
			return "", err
		}
		t, ok := filetimeToTime(v)
		if !ok {
			slog.Debug("filetime conversion failed, falling back to hex", "error", ErrConversionFailure, "raw", v)
			return fmt.Sprintf("%016X", v), nil
		}
		return t.Format("2006.01.02-15:04:05"), nil

	case valueTypeSID:
		return decodeSID(sub, length)

	case valueTypeHexInt32:
		v, err := sub.readU32()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%08X", v), nil

	case valueTypeHexInt64:
		v, err := sub.readU64()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%016X", v), nil

	case valueTypeBinXML:
		// Nested fragment errors are swallowed by design: a malformed
		// inner fragment must not poison the outer record (spec.md §7).
		if err := runTokenizer(sub, rec); err != nil {
			slog.Debug("nested binxml fragment malformed, swallowing", "error", err)
		}
		return "", nil

	case valueTypeStringArray:
		return decodeStringArray(sub, length)

	default:
		return fmt.Sprintf("<unknown type 0x%02x, %d bytes>", valueType, length), nil
	}
}

// decodeSID renders a Windows Security Identifier: revision, a
// 6-byte big-endian authority, then one sub-authority per four
// remaining bytes (spec.md §4.6, §8).
func decodeSID(sub *Context, length int) (string, error) {
	if length < 8 {
		return "", errors.Wrapf(ErrInvariantViolation, "SID too short: %d bytes", length)
	}
	revision, err := sub.readU8()
	if err != nil {
		return "", err
	}
	if _, err := sub.readU8(); err != nil { // sub-authority count, unused: the loop below is bounded by length instead
		return "", err
	}
	authBytes, err := sub.readBytes(6)
	if err != nil {
		return "", err
	}
	var authority uint64
	for _, b := range authBytes {
		authority = authority<<8 | uint64(b)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "S-%d-%d", revision, authority)
	for remaining := length - 8; remaining >= 4; remaining -= 4 {
		sa, err := sub.readU32()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "-%d", sa)
	}
	return b.String(), nil
}

// decodeStringArray renders a NUL-separated UTF-16 string array as a
// bracketed, comma-separated list (spec.md §4.6, type 0x81). A final
// segment with no trailing NUL is flushed too, matching the source's
// incremental write (it never drops an unterminated tail).
func decodeStringArray(sub *Context, length int) (string, error) {
	units, err := sub.readU16N(length / 2)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte('[')
	start := 0
	first := true
	flush := func(end int) {
		if !first {
			b.WriteByte(',')
		}
		b.WriteByte('\'')
		b.WriteString(transcodeUTF16ToUTF8(units[start:end]))
		b.WriteByte('\'')
		first = false
	}
	for i, w := range units {
		switch w {
		case '\r', '\n':
			units[i] = ' '
		case 0:
			flush(i)
			start = i + 1
		}
	}
	if start < len(units) {
		flush(len(units))
	}
	b.WriteByte(']')
	return b.String(), nil
}
