// Package pack ties the script, deflate and cartridge packages together:
// it compresses code into a cartridge's code chunk, runs the auto-rename
// search over it, and drives the pack/extract/empty/analyze pipelines the
// cmd/tic CLI exposes.
package pack

import (
	"bytes"

	"github.com/exoticorn/tic-tool/deflate"
	"github.com/klauspost/compress/zlib"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "pack: " + string(e) }

// zlibHeaderLen and adlerLen bound the parts of a zlib stream that aren't
// raw DEFLATE data (§6: chunk type 0x10's payload is "a zlib stream with
// its Adler-32 suffix truncated" — the 2-byte header is kept).
const (
	zlibHeaderLen = 2
	adlerLen      = 4
)

// Compress produces the smaller of two zlib-wrapped compressions of raw —
// one at the size-maximizing setting, one at the fast setting (§4.6) — with
// the trailing 4-byte Adler-32 checksum truncated, matching the reference
// packer's own zlib-minus-checksum chunk payload (`main.rs`'s
// `compress_code`, which does exactly `data.truncate(data.len() - 4)`). The
// returned bytes are chunk type 0x10's payload as-is: header kept, checksum
// dropped.
func Compress(raw []byte) ([]byte, error) {
	best, err := compressAt(raw, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	fast, err := compressAt(raw, zlib.BestSpeed)
	if err != nil {
		return nil, err
	}
	if len(fast) < len(best) {
		return fast, nil
	}
	return best, nil
}

func compressAt(raw []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, Error(err.Error())
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, Error(err.Error())
	}
	if err := zw.Close(); err != nil {
		return nil, Error(err.Error())
	}
	b := buf.Bytes()
	if len(b) < zlibHeaderLen+adlerLen {
		return nil, Error("compressed output shorter than a zlib header+checksum")
	}
	return b[:len(b)-adlerLen], nil
}

// StripZlibHeader drops a chunk-0x10 payload's leading 2-byte zlib header,
// yielding the raw DEFLATE bytes deflate.Analyze expects (§6: "the analyser
// consumes only raw-deflate input").
func StripZlibHeader(payload []byte) []byte {
	if len(payload) < zlibHeaderLen {
		return nil
	}
	return payload[zlibHeaderLen:]
}

// Decompress inflates a 0x10 chunk's payload (zlib header kept, Adler-32
// suffix already truncated) back to the original code bytes. It reuses
// deflate.Analyze rather than a second independent inflater, so extraction
// and the rename search's own analysis pass can never disagree about what a
// given compressed chunk decodes to.
func Decompress(payload []byte) ([]byte, error) {
	an, err := deflate.Analyze(StripZlibHeader(payload))
	if err != nil {
		return nil, Error(err.Error())
	}
	return an.Unpacked, nil
}
