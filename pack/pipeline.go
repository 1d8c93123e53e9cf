package pack

import (
	"sort"

	"github.com/exoticorn/tic-tool/cartridge"
	"github.com/exoticorn/tic-tool/deflate"
	"github.com/exoticorn/tic-tool/script"
)

// ErrNoCode is returned when an input cartridge carries no code chunk.
var ErrNoCode error = Error("no code chunk found")

// Options controls one Pack run (§6 CLI flags).
type Options struct {
	NoTransform bool // -k: skip tokenise/serialise, pack the source verbatim
	AutoRename  bool // -a: run the rename search to convergence
	Strip       bool // -s: drop unknown chunks
	NewPalette  bool // -n: force a 0x11 chunk
	Iterations  int  // cap on the auto-rename search's outer loop; 0 = unbounded (cycle detection still applies)
}

// LoadCode extracts the code bytes from a cartridge's chunks: it reads the
// code chunk (decompressing a 0x10 chunk via Decompress) and returns every
// other chunk alongside it. Deciding whether an input file is a cartridge
// or raw source is left to the caller.
func LoadCode(chunks []cartridge.Chunk) ([]byte, []cartridge.Chunk, error) {
	var code []byte
	var rest []cartridge.Chunk
	for _, c := range chunks {
		switch c.Type {
		case cartridge.TypeCode:
			code = c.Data
		case cartridge.TypeCompressedCode:
			unpacked, err := Decompress(c.Data)
			if err != nil {
				return nil, nil, err
			}
			code = unpacked
		default:
			rest = append(rest, c)
		}
	}
	if code == nil {
		return nil, nil, ErrNoCode
	}
	return code, rest, nil
}

// Pack runs the full pipeline (§2): optionally transform the source via the
// script package, run the auto-rename search to convergence, compress, and
// pick the smaller of the compressed or raw chunk encoding.
func Pack(code []byte, opts Options) (cartridge.Chunk, error) {
	if opts.NoTransform {
		return emitChunk(code)
	}

	tree := script.Tokenize(code)
	_, tree = script.ExtractDirectives(tree)

	if !opts.AutoRename {
		minified := script.Serialize(tree)
		return emitChunk(minified)
	}

	minified, _, err := AutoRename(tree, opts.Iterations)
	if err != nil {
		return cartridge.Chunk{}, err
	}
	return emitChunk(minified)
}

// AutoRename runs the rename search (§4.5) to convergence: each step
// reserialises, recompresses, reanalyses, and keeps the result only if the
// compressed cartridge shrinks; it stops when the merged rename map repeats
// (a cycle) or, if maxIterations > 0, after that many steps.
func AutoRename(tree script.Sequence, maxIterations int) ([]byte, map[string]string, error) {
	best := script.Serialize(tree.Clone())
	bestCompressed, err := Compress(best)
	if err != nil {
		return nil, nil, err
	}

	merged := map[string]string{}
	seen := map[string]bool{mapKey(merged): true}
	used := map[string]bool{}

	for iter := 0; maxIterations <= 0 || iter < maxIterations; iter++ {
		an, err := deflate.Analyze(StripZlibHeader(bestCompressed))
		if err != nil {
			// §7: the search tolerates a corrupt analysis by falling back
			// to size-only decisions for this candidate, i.e. stopping the
			// search here with whatever was already kept.
			break
		}

		candidateTree := script.ApplyRenames(tree.Clone(), merged)
		script.Serialize(candidateTree) // record emitted offsets; the bytes equal best
		next := SearchStep(candidateTree, an, used)
		if len(next) == 0 {
			break
		}

		candidateMerged := MergeRenames(merged, next)
		key := mapKey(candidateMerged)
		if seen[key] {
			break
		}
		seen[key] = true
		for _, to := range next {
			used[to] = true
		}

		renamedTree := script.ApplyRenames(tree.Clone(), candidateMerged)
		renamedBytes := script.Serialize(renamedTree)
		renamedCompressed, err := Compress(renamedBytes)
		if err != nil {
			break
		}

		if len(renamedCompressed) < len(bestCompressed) {
			best = renamedBytes
			bestCompressed = renamedCompressed
			merged = candidateMerged
		}
	}

	return best, merged, nil
}

// mapKey gives two rename maps the same string iff they have the same
// entries, used to detect the cycle that ends the auto-rename search.
func mapKey(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		s += k + "->" + m[k] + ";"
	}
	return s
}

// emitChunk implements §4.6's final fallback: compress code at both
// settings, and emit the smaller of the two compressed candidates unless
// the raw code is no longer than it, in which case emit the raw chunk.
func emitChunk(code []byte) (cartridge.Chunk, error) {
	compressed, err := Compress(code)
	if err != nil {
		return cartridge.Chunk{}, err
	}
	if len(code) <= len(compressed) {
		return cartridge.Chunk{Type: cartridge.TypeCode, Data: code}, nil
	}
	return cartridge.Chunk{Type: cartridge.TypeCompressedCode, Data: compressed}, nil
}

// Extract returns the code bytes found in an input cartridge's chunks.
func Extract(chunks []cartridge.Chunk) ([]byte, error) {
	code, _, err := LoadCode(chunks)
	return code, err
}

// Empty builds the chunk list for an empty cartridge (§6 `empty` command):
// a zero-length code chunk, plus an optional zero-length new-palette chunk.
func Empty(newPalette bool) []cartridge.Chunk {
	chunks := []cartridge.Chunk{{Type: cartridge.TypeCode}}
	if newPalette {
		chunks = append(chunks, cartridge.Chunk{Type: cartridge.TypeNewPalette})
	}
	return chunks
}

// Analyze decodes a 0x10 chunk's payload (zlib header kept, Adler-32
// already truncated, per §6) for the `analyze` CLI command.
func Analyze(payload []byte) (*deflate.Analysis, error) {
	return deflate.Analyze(StripZlibHeader(payload))
}
