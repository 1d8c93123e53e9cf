package deflate

import (
	"testing"

	"github.com/exoticorn/tic-tool/internal/testutil"
)

func TestAnalyzeStaticBlock(t *testing.T) {
	// Final, static-Huffman block encoding the three literal bytes 'a','b','c'
	// followed by end-of-block. Static lit/length codes 0-143 are 8 bits,
	// value+0x30 per RFC 1951 §3.2.6; end-of-block (256) is 7 bits of zero.
	data := testutil.MustDecodeBitGen(`<<<
		1 01            # final block, static huffman
		> 10010001       # 'a' = 97 -> code 97+48=0x91, 8 bits, MSB first
		> 10010010       # 'b' = 98 -> 0x92
		> 10010011       # 'c' = 99 -> 0x93
		> 0000000        # end of block (256), 7 bits
	`)

	an, err := Analyze(data)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got, want := string(an.Unpacked), "abc"; got != want {
		t.Fatalf("Unpacked = %q, want %q", got, want)
	}
	if len(an.Blocks) != 1 || an.Blocks[0].Type != BlockStatic {
		t.Fatalf("expected exactly one static block, got %+v", an.Blocks)
	}
	for i := range an.Unpacked {
		if an.LiteralIndex[i] != SentinelIndex {
			t.Errorf("byte %d: LiteralIndex = %d, want SentinelIndex (every byte here is a literal)", i, an.LiteralIndex[i])
		}
		if an.Cost[i] != 8 {
			t.Errorf("byte %d: Cost = %v, want 8", i, an.Cost[i])
		}
	}
}

func TestHuffmanReadCanonical(t *testing.T) {
	var b HuffmanBuilder
	// A tiny canonical code: A=0 (1 bit), B=10 (2 bits), C=11 (2 bits).
	b.AddCode('A', 1)
	b.AddCode('B', 2)
	b.AddCode('C', 2)
	h := b.Build()

	bs := NewBitstream(testutil.MustDecodeBitGen(`<<< > 0 10 11`))
	for _, want := range []uint32{'A', 'B', 'C'} {
		if got := h.Read(bs); got != want {
			t.Errorf("Read() = %q, want %q", got, want)
		}
	}
}

func TestRedistributeCostSpreadsOverCopies(t *testing.T) {
	a := &Analysis{
		Unpacked:     []byte{'x', 'x', 'x'},
		LiteralIndex: []int{SentinelIndex, 0, 0},
		Cost:         []float64{9, 1, 1},
	}
	redistributeCost(a)

	total := a.Cost[0] + a.Cost[1] + a.Cost[2]
	if total < 10.99 || total > 11.01 {
		t.Errorf("total cost = %v, want ~11 (redistribution must conserve total bits)", total)
	}
	if a.Cost[1] != a.Cost[2] {
		t.Errorf("Cost[1]=%v, Cost[2]=%v, want equal (two copies of the same origin)", a.Cost[1], a.Cost[2])
	}
	if a.Cost[0] >= 9 {
		t.Errorf("Cost[0] = %v, want less than the original 9 (some cost moved to its copies)", a.Cost[0])
	}
}

func TestAnalyzeRejectsTruncatedStream(t *testing.T) {
	if _, err := Analyze([]byte{0x01}); err == nil {
		t.Error("expected an error decoding a truncated stream")
	}
}
