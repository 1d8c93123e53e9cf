package pack

import (
	"testing"

	"github.com/exoticorn/tic-tool/cartridge"
	"github.com/exoticorn/tic-tool/internal/testutil"
	"github.com/exoticorn/tic-tool/script"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	src := []byte("local x=1 function f() return x+1 end f()f()f()f()f()")
	payload, err := Compress(src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	got, err := Decompress(payload)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(got) != string(src) {
		t.Errorf("round trip = %q, want %q", got, src)
	}
}

func TestEmitChunkPrefersRawWhenNotSmaller(t *testing.T) {
	// A handful of bytes: zlib framing overhead guarantees the compressed
	// candidate is never smaller than the raw input.
	chunk, err := emitChunk([]byte("ab"))
	if err != nil {
		t.Fatalf("emitChunk: %v", err)
	}
	if chunk.Type != cartridge.TypeCode {
		t.Errorf("Type = %#x, want raw code chunk 0x%x", chunk.Type, cartridge.TypeCode)
	}
}

func TestEmitChunkPrefersCompressedWhenSmaller(t *testing.T) {
	src := make([]byte, 2000)
	for i := range src {
		src[i] = 'a'
	}
	chunk, err := emitChunk(src)
	if err != nil {
		t.Fatalf("emitChunk: %v", err)
	}
	if chunk.Type != cartridge.TypeCompressedCode {
		t.Errorf("Type = %#x, want compressed code chunk 0x%x", chunk.Type, cartridge.TypeCompressedCode)
	}
	if len(chunk.Data) >= len(src) {
		t.Errorf("compressed len %d not smaller than raw len %d", len(chunk.Data), len(src))
	}
}

func TestMergeRenamesRetargetsChainedRename(t *testing.T) {
	prior := map[string]string{"longname": "q"}
	next := map[string]string{"q": "r"}
	merged := MergeRenames(prior, next)
	if merged["longname"] != "r" {
		t.Errorf("longname -> %q, want %q (retargeted through the chain)", merged["longname"], "r")
	}
	if _, stillThere := merged["q"]; stillThere {
		t.Errorf("merged still has a stale q-> entry: %v", merged)
	}
}

func TestExpandPoolSkipsUsedNames(t *testing.T) {
	candidates := []rankedChar{
		{char: 'z', score: 5},
		{char: 'q', score: 3},
	}
	used := map[string]bool{"z": true}
	pool := buildRenamePool(2, candidates, used)
	if len(pool) != 2 {
		t.Fatalf("len(pool) = %d, want 2", len(pool))
	}
	if pool[0] != "q" {
		t.Errorf("pool[0] = %q, want %q (z is already used)", pool[0], "q")
	}
	for _, p := range pool {
		if used[p] {
			t.Errorf("pool contains already-used name %q", p)
		}
	}
}

// TestCompressDecompressRoundTripFuzz feeds a spread of deterministic
// pseudo-random byte slices through Compress/Decompress, exercising sizes a
// hand-picked fixture wouldn't, while staying reproducible across runs.
func TestCompressDecompressRoundTripFuzz(t *testing.T) {
	r := testutil.NewRand(1)
	for _, n := range []int{0, 1, 7, 31, 255, 4096} {
		src := r.Bytes(n)
		payload, err := Compress(src)
		if err != nil {
			t.Fatalf("Compress(%d bytes): %v", n, err)
		}
		got, err := Decompress(payload)
		if err != nil {
			t.Fatalf("Decompress(%d bytes): %v", n, err)
		}
		if string(got) != string(src) {
			t.Errorf("round trip of %d random bytes did not match", n)
		}
	}
}

func TestAutoRenameNeverGrowsCompressedSize(t *testing.T) {
	src := []byte(`
function longname()
  longname_result = longname_result + 1
end
longname()
longname()
longname()
`)
	tree := script.Tokenize(src)
	_, tree = script.ExtractDirectives(tree)

	before := script.Serialize(tree.Clone())
	compressedBefore, err := Compress(before)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	best, _, err := AutoRename(tree, 20)
	if err != nil {
		t.Fatalf("AutoRename: %v", err)
	}
	compressedAfter, err := Compress(best)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressedAfter) > len(compressedBefore) {
		t.Errorf("auto-rename grew compressed size: %d -> %d", len(compressedBefore), len(compressedAfter))
	}
}
