// (c) 2019, igosha (2igosha@gmail.com)
// Reference: https://docs.microsoft.com/en-us/openspecs/windows_protocols/ms-even6/c73573ae-1c90-43a2-a65f-ad7501155956
package igevtx

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/pkg/errors"
)

const (
	fileHeaderSize  = 0x1000
	chunkSize       = 0x10000
	chunkHeaderSize = 0x200
	fileVersion     = 0x00030001
	recMagic        = 0x00002a2a
	recHeaderSize   = 4 + 4 + 8 + 8
)

var (
	fileMagic  = [8]byte{'E', 'l', 'f', 'F', 'i', 'l', 'e', 0x00}
	chunkMagic = [8]byte{'E', 'l', 'f', 'C', 'h', 'n', 'k', 0x00}
)

// ParseEvtx is the Record & Chunk Framer of spec.md §4.7: it walks the file
// header, then successive 64KiB chunks, handing each record's payload to
// the Tokenizer and its output to the Emitter. A chunk-level magic
// mismatch or a short chunk read ends the scan cleanly rather than as an
// error (the file may simply be shorter than its preallocated size).
func ParseEvtx(r io.Reader, w io.Writer) error {
	header := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return errors.Wrap(err, "read file header")
	}

	hc := newRootContext(newChunkState(header))
	magic, err := hc.readBytes(8)
	if err != nil {
		return err
	}
	if !bytes.Equal(magic, fileMagic[:]) {
		return errors.Wrapf(ErrBadMagic, "file header magic %x", magic)
	}
	hc.skip(8 + 8 + 8 + 4) // ChunksAllocated, ChunksUsed, Checksum, Flags
	version, err := hc.readU32()
	if err != nil {
		return err
	}
	if version != fileVersion {
		return errors.Wrapf(ErrBadMagic, "file version 0x%08x", version)
	}

	chunkBuf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(r, chunkBuf)
		if err != nil || n < chunkSize {
			slog.Debug("short read on chunk, ending scan", "bytes_read", n, "error", err)
			return nil
		}

		cs := newChunkState(append([]byte(nil), chunkBuf...))
		cc := newRootContext(cs)
		magic, err := cc.readBytes(8)
		if err != nil {
			slog.Debug("short read on chunk magic, ending scan", "error", err)
			return nil
		}
		if !bytes.Equal(magic, chunkMagic[:]) {
			slog.Debug("chunk magic mismatch, ending scan", "magic", magic)
			return nil
		}
		firstNum, err := cc.readU64()
		if err != nil {
			slog.Debug("short read on chunk FirstNum, ending scan", "error", err)
			return nil
		}
		lastNum, err := cc.readU64()
		if err != nil {
			slog.Debug("short read on chunk LastNum, ending scan", "error", err)
			return nil
		}

		if err := parseChunkRecords(cs, firstNum, lastNum, w); err != nil {
			return err
		}
	}
}

// parseChunkRecords walks the record stream following a chunk's header,
// stopping cleanly at the first unrecognized record magic or declared size
// that would overrun the chunk (spec.md §4.7, §8 boundary behaviors).
func parseChunkRecords(cs *chunkState, firstNum, lastNum uint64, w io.Writer) error {
	offset := chunkHeaderSize
	for offset+recHeaderSize <= len(cs.data) {
		rc := newRootContext(cs)
		rc.offset = offset

		magic, err := rc.readU32()
		if err != nil {
			slog.Debug("short read on record magic, ending chunk", "error", err)
			return nil
		}
		if magic != recMagic {
			slog.Debug("record magic mismatch, ending chunk", "magic", magic)
			return nil
		}
		size, err := rc.readU32()
		if err != nil {
			slog.Debug("short read on record size, ending chunk", "error", err)
			return nil
		}
		number, err := rc.readU64()
		if err != nil {
			slog.Debug("short read on record number, ending chunk", "error", err)
			return nil
		}
		timestamp, err := rc.readU64()
		if err != nil {
			slog.Debug("short read on record timestamp, ending chunk", "error", err)
			return nil
		}
		if size < recHeaderSize || offset+int(size) > len(cs.data) {
			slog.Debug("record size invariant violated, ending chunk", "offset", offset, "size", size)
			return nil
		}

		payload := cs.data[offset+recHeaderSize : offset+int(size)]
		payloadCtx := newWindow(cs, payload, int64(offset+recHeaderSize))

		ts, ok := filetimeToTime(timestamp)
		if !ok {
			return errors.Wrapf(ErrConversionFailure, "record #%d timestamp 0x%016x", number, timestamp)
		}

		rec := newRecordEmitter(w)
		rec.writePrelude(number, ts)
		perr := runTokenizer(payloadCtx, rec)
		rec.finish()

		if perr != nil {
			if number >= firstNum && number <= lastNum {
				return perr
			}
			slog.Debug("tokenizer error on record outside declared live range, tolerating", "number", number, "error", perr)
			return nil
		}

		offset += int(size)
	}
	return nil
}
