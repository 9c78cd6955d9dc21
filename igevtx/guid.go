// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// decodeGUID reads the Microsoft GUID wire layout (u32, u16, u16, u8[8])
// and stores it as a uuid.UUID (the same typed 16-byte container
// snowflk-kleiodb holds its identifiers in), reassembling the fields into
// the standard big-endian byte order so the value round-trips through any
// other uuid-aware tooling.
func decodeGUID(c *Context) (uuid.UUID, error) {
	d1, err := c.readU32()
	if err != nil {
		return uuid.UUID{}, err
	}
	w1, err := c.readU16()
	if err != nil {
		return uuid.UUID{}, err
	}
	w2, err := c.readU16()
	if err != nil {
		return uuid.UUID{}, err
	}
	b1, err := c.readBytes(8)
	if err != nil {
		return uuid.UUID{}, err
	}

	var raw [16]byte
	binary.BigEndian.PutUint32(raw[0:4], d1)
	binary.BigEndian.PutUint16(raw[4:6], w1)
	binary.BigEndian.PutUint16(raw[6:8], w2)
	copy(raw[8:16], b1)
	return uuid.UUID(raw), nil
}

// formatGUIDQuirk renders a GUID the way this decoder's source always
// has: %08X-%02X-%02X-<16 hex digits>, not uuid.UUID.String()'s canonical
// 8-4-4-4-12 grouping (spec.md §4.6, §9 note 2). This is a known
// source quirk, preserved deliberately for output-format compatibility.
func formatGUIDQuirk(u uuid.UUID) string {
	d1 := binary.BigEndian.Uint32(u[0:4])
	w1 := binary.BigEndian.Uint16(u[4:6])
	w2 := binary.BigEndian.Uint16(u[6:8])
	return fmt.Sprintf("%08X-%02X-%02X-%02X%02X%02X%02X%02X%02X%02X%02X",
		d1, w1, w2, u[8], u[9], u[10], u[11], u[12], u[13], u[14], u[15])
}
