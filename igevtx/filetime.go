// (c) 2019, igosha (2igosha@gmail.com)
package igevtx

import "time"

// filetimeEpochOffset is the number of 100-ns ticks between the FILETIME
// epoch (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeEpochOffset = 116444736000000000

// filetimeToTime converts a Windows FILETIME (100-ns ticks since 1601) to
// a UTC time.Time. ok is false if the value cannot be represented
// (spec.md §4.6, type 0x11: "on conversion failure fall back to hex").
func filetimeToTime(ft uint64) (time.Time, bool) {
	ticks := int64(ft) - filetimeEpochOffset
	if ticks < 0 {
		return time.Time{}, false
	}
	sec := ticks / 10000000
	nsec := (ticks % 10000000) * 100
	return time.Unix(sec, nsec).UTC(), true
}
