package pack

import (
	"math"
	"sort"

	"github.com/exoticorn/tic-tool/deflate"
	"github.com/exoticorn/tic-tool/script"
)

// poolPriority seeds the two-character name pool (§4.5 step 3): letters
// likely to be cheap and rarely forced to separate from a neighbour come
// first.
const poolPriority = "_ghijklmnoqrstuvwyzpxabcdefGHIJKLMNOQRSTUVWYZPXABCDEF"

// rankedIdentifier is one entry of the renameable-identifier ranking.
type rankedIdentifier struct {
	name        string
	score       float64
	firstOffset int
}

// rankedChar is one entry of the candidate replacement-character ranking.
type rankedChar struct {
	char        byte
	score       float64
	firstOffset int
}

// whitespaceClass implements §4.5 step 2's tie-break: a replacement
// character that never forces a serialiser separator against an adjacent
// number literal ranks higher than one that sometimes does.
func whitespaceClass(c byte) int {
	switch {
	case c >= 'a' && c <= 'f':
		return 0
	case c == 'p' || c == 'x':
		return 1
	default:
		return 2
	}
}

// rankRenameableIdentifiers implements §4.5 step 1: score every renameable
// identifier by its "expensive mass" — one point for each byte of its
// occurrences that was emitted as a literal rather than copied by a match,
// weighted 10x for bytes from a dynamic-Huffman block — normalized by name
// length, and sort descending (ties broken by
// earliest occurrence).
func rankRenameableIdentifiers(renameable map[string][]script.Occurrence, all map[string][]script.Occurrence, an *deflate.Analysis) []rankedIdentifier {
	var ranked []rankedIdentifier
	for name := range renameable {
		occs := all[name]
		if len(occs) == 0 {
			continue
		}
		var sum float64
		first := occs[0].Offset
		for _, occ := range occs {
			if occ.Offset < first {
				first = occ.Offset
			}
			for o := occ.Offset; o < occ.Offset+occ.Length; o++ {
				if o >= len(an.LiteralIndex) || an.LiteralIndex[o] != deflate.SentinelIndex {
					continue
				}
				if an.BlockType[o] == deflate.BlockDynamic {
					sum += 1.0
				} else {
					sum += 0.1
				}
			}
		}
		ranked = append(ranked, rankedIdentifier{
			name:        name,
			score:       sum / float64(len(name)),
			firstOffset: first,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].firstOffset < ranked[j].firstOffset
	})
	return ranked
}

// isIdentStartByte reports whether b is a valid first byte of an identifier.
func isIdentStartByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// candidateCharOffsets finds every emitted-output byte offset that is a
// valid identifier-start byte and does not belong to any occurrence of a
// renameable identifier (§3 candidate_chars) — every occurrence, not just
// its declaration site, since a rename rewrites every one of them.
func candidateCharOffsets(an *deflate.Analysis, renameableSpans map[string][]script.Occurrence) []int {
	excluded := make(map[int]bool)
	for _, occs := range renameableSpans {
		for _, occ := range occs {
			for o := occ.Offset; o < occ.Offset+occ.Length; o++ {
				excluded[o] = true
			}
		}
	}
	var out []int
	for o, b := range an.Unpacked {
		if isIdentStartByte(b) && !excluded[o] {
			out = append(out, o)
		}
	}
	return out
}

// rankCandidateChars implements §4.5 step 2: bucket candidate_chars offsets
// by the byte value they carry, score each bucket the same way occurrences
// are scored in step 1, and sort descending (ties by whitespace efficiency
// class, then earliest offset).
func rankCandidateChars(offsets []int, an *deflate.Analysis) []rankedChar {
	type bucket struct {
		score float64
		first int
	}
	buckets := make(map[byte]*bucket)
	for _, o := range offsets {
		if an.LiteralIndex[o] != deflate.SentinelIndex {
			continue
		}
		c := an.Unpacked[o]
		b, ok := buckets[c]
		if !ok {
			b = &bucket{first: o}
			buckets[c] = b
		}
		if o < b.first {
			b.first = o
		}
		if an.BlockType[o] == deflate.BlockDynamic {
			b.score += 1.0
		} else {
			b.score += 0.1
		}
	}
	var ranked []rankedChar
	for c, b := range buckets {
		ranked = append(ranked, rankedChar{char: c, score: b.score, firstOffset: b.first})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		ci, cj := whitespaceClass(ranked[i].char), whitespaceClass(ranked[j].char)
		if ci != cj {
			return ci > cj
		}
		return ranked[i].firstOffset < ranked[j].firstOffset
	})
	return ranked
}

// expandPool first seeds pool with remaining unused single-character names
// from poolPriority, in priority order, then appends synthesized
// two-character names (§4.5 step 3) until it has at least n entries,
// skipping anything already present in pool or used.
func expandPool(pool []string, n int, used map[string]bool) []string {
	have := make(map[string]bool, len(pool))
	for _, p := range pool {
		have[p] = true
	}
	chars := make([]byte, 0, len(poolPriority))
	for i := 0; i < len(poolPriority); i++ {
		chars = append(chars, poolPriority[i])
	}

	for _, c := range chars {
		if len(pool) >= n {
			return pool
		}
		name := string(c)
		if have[name] || used[name] {
			continue
		}
		have[name] = true
		pool = append(pool, name)
	}

	for p := 0; len(pool) < n; p++ {
		d := int((isqrt2(p)))
		x := p - d*(d+1)/2
		y := d - x
		if x >= len(chars) || y >= len(chars) {
			// Ran out of synthesizable names from this alphabet; stop
			// rather than loop forever.
			break
		}
		name := string(chars[y]) + string(chars[x])
		if have[name] || used[name] {
			continue
		}
		have[name] = true
		pool = append(pool, name)
	}
	return pool
}

// isqrt2 computes floor(sqrt(2p + 0.75) - 0.5), exactly as §4.5 step 3
// specifies the triangular-number enumeration.
func isqrt2(p int) int {
	return int(math.Sqrt(2*float64(p)+0.75) - 0.5)
}

// buildRenamePool returns a name for each of the n ranked identifiers,
// drawing first from the fixed single-character candidate ranking and then
// from synthesized two-character names (§4.5 steps 3-4).
func buildRenamePool(n int, candidates []rankedChar, used map[string]bool) []string {
	pool := make([]string, 0, n)
	for _, c := range candidates {
		if len(pool) >= n {
			break
		}
		name := string(c.char)
		if used[name] {
			continue
		}
		pool = append(pool, name)
	}
	if len(pool) < n {
		pool = expandPool(pool, n, used)
	}
	return pool
}

// SearchStep runs one iteration of the rename search (§4.5 steps 1-4): it
// ranks renameable identifiers and candidate replacement characters against
// the given analysis, and pairs them off into a rename map. used lists
// names already used as a replacement target by an earlier iteration, so
// this step never reuses one.
func SearchStep(tree script.Sequence, an *deflate.Analysis, used map[string]bool) map[string]string {
	renameable := script.RenameableIdentifiers(tree)
	all := script.AllIdentifierOccurrences(tree)

	ranked := rankRenameableIdentifiers(renameable, all, an)
	if len(ranked) == 0 {
		return nil
	}

	renameableSpans := make(map[string][]script.Occurrence, len(renameable))
	for name := range renameable {
		renameableSpans[name] = all[name]
	}
	offsets := candidateCharOffsets(an, renameableSpans)
	chars := rankCandidateChars(offsets, an)

	pool := buildRenamePool(len(ranked), chars, used)

	out := map[string]string{}
	for i, id := range ranked {
		if i >= len(pool) {
			break
		}
		if id.name == pool[i] {
			continue // renaming to itself achieves nothing
		}
		out[id.name] = pool[i]
	}
	return out
}

// MergeRenames implements §4.5 step 5: folding a newly proposed rename map
// into a prior one by aliasing, so a chain of renames across iterations
// collapses to a single hop per identifier instead of compounding.
func MergeRenames(prior, next map[string]string) map[string]string {
	merged := make(map[string]string, len(prior)+len(next))
	for k, v := range prior {
		merged[k] = v
	}
	for newSrc, newDst := range next {
		retargeted := false
		for oldSrc, oldDst := range merged {
			if oldDst == newSrc {
				merged[oldSrc] = newDst
				retargeted = true
			}
		}
		if !retargeted {
			merged[newSrc] = newDst
		}
	}
	return merged
}
