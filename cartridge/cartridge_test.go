package cartridge

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/exoticorn/tic-tool/internal/testutil"
)

func TestWriteReadRoundTrip(t *testing.T) {
	vectors := []struct {
		desc   string
		chunks []Chunk
	}{
		{
			desc:   "single code chunk",
			chunks: []Chunk{{Type: TypeCode, Data: []byte("a=1")}},
		},
		{
			desc: "code then trailing empty new-palette",
			chunks: []Chunk{
				{Type: TypeCompressedCode, Data: []byte{1, 2, 3}},
				{Type: TypeNewPalette},
			},
		},
		{
			desc:   "trailing chunk with empty payload that isn't new-palette",
			chunks: []Chunk{{Type: TypeCode, Bank: 2}},
		},
		{
			desc: "bank bits round-trip",
			chunks: []Chunk{
				{Type: 0x03, Bank: 7, Data: []byte{0xff}},
			},
		},
	}
	for _, v := range vectors {
		t.Run(v.desc, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, v.chunks); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if buf.Len() != TotalSize(v.chunks) {
				t.Errorf("TotalSize mismatch: got %d, want %d", TotalSize(v.chunks), buf.Len())
			}
			got, err := Read(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			want := v.chunks
			for i := range want {
				if want[i].Data == nil {
					want[i].Data = []byte{}
				}
			}
			for i := range got {
				if got[i].Data == nil {
					got[i].Data = []byte{}
				}
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewPaletteZeroLengthKeepsLengthField(t *testing.T) {
	chunks := []Chunk{{Type: TypeNewPalette}}
	var buf bytes.Buffer
	if err := Write(&buf, chunks); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// header byte + 2-byte length, no reserved byte, no payload.
	if got, want := buf.Len(), 3; got != want {
		t.Errorf("len = %d, want %d", got, want)
	}
}

func TestNonPaletteTrailingEmptyOmitsEverything(t *testing.T) {
	chunks := []Chunk{{Type: TypeCode}}
	var buf bytes.Buffer
	if err := Write(&buf, chunks); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, want := buf.Len(), 1; got != want {
		t.Errorf("len = %d, want %d", got, want)
	}
}

func TestReadFixedByteStream(t *testing.T) {
	// header 0x05 (type 5, bank 0), len=3 LE, reserved, data 01 02 03;
	// then a trailing zero-length new-palette chunk (length field kept).
	raw := testutil.MustDecodeHex("05030000010203110000")
	got, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []Chunk{
		{Type: TypeCode, Data: []byte{1, 2, 3}},
		{Type: TypeNewPalette},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTruncated(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte{0x05, 0x10})); err == nil {
		t.Error("expected error on truncated chunk header")
	}
}
