package script

import "regexp"

var codeStringCommentRE = regexp.MustCompile(`^-- *code string *$`)

// rewriteNestedCode walks seq looking for load "…" calls and
// "-- code string" comments followed by a string literal, and replaces the
// string token with a *CodeString holding a freshly parsed token tree for
// its (unescaped) content. It recurses into the result so code strings
// nested arbitrarily deep are all discovered.
func rewriteNestedCode(seq Sequence) Sequence {
	out := make(Sequence, 0, len(seq))
	for i := 0; i < len(seq); i++ {
		n := seq[i]
		switch v := n.(type) {
		case *Subtree:
			out = append(out, &Subtree{Nodes: rewriteNestedCode(v.Nodes)})
			continue
		case *CodeString:
			out = append(out, &CodeString{Inner: rewriteNestedCode(v.Inner), Delim: v.Delim})
			continue
		case *Token:
			if v.Kind == KindIdentifier && string(v.Text) == "load" {
				if str, ok := nextStringToken(seq, i+1); ok {
					out = append(out, v)
					for j := i + 1; j <= str.idx; j++ {
						if j != str.idx {
							out = append(out, seq[j])
						}
					}
					out = append(out, buildCodeString(str.tok))
					i = str.idx
					continue
				}
			}
			if v.Kind == KindComment && codeStringCommentRE.Match(v.Text) {
				if str, ok := nextStringToken(seq, i+1); ok {
					for j := i + 1; j < str.idx; j++ {
						out = append(out, seq[j])
					}
					out = append(out, buildCodeString(str.tok))
					i = str.idx
					continue
				}
			}
		}
		out = append(out, n)
	}
	return out
}

type foundString struct {
	idx int
	tok *Token
}

// nextStringToken scans forward from idx for the next *Token, returning it
// if (and only if) it is a string literal; any Token found that isn't a
// string means the pattern doesn't match.
func nextStringToken(seq Sequence, idx int) (foundString, bool) {
	for j := idx; j < len(seq); j++ {
		t, ok := seq[j].(*Token)
		if !ok {
			continue
		}
		if t.Kind == KindString {
			return foundString{idx: j, tok: t}, true
		}
		return foundString{}, false
	}
	return foundString{}, false
}

// buildCodeString unescapes a quoted string literal's content, re-tokenises
// it as a nested program, and remaps every resulting token's Offset from an
// index into the unescaped buffer back to a byte offset in the original
// input, so diagnostics and the rename search can point at real source
// positions even through nested quoting.
func buildCodeString(str *Token) *CodeString {
	delim := str.Text[0]
	raw := str.Text[1 : len(str.Text)-1]

	unescaped := make([]byte, 0, len(raw))
	origin := make([]int, 0, len(raw)) // unescaped index -> offset in str.Text
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			var b byte
			switch raw[i] {
			case 'n':
				b = '\n'
			case 'r':
				b = '\r'
			case 't':
				b = '\t'
			case '\\':
				b = '\\'
			default:
				b = raw[i]
			}
			unescaped = append(unescaped, b)
			origin = append(origin, i+1) // +1 for the opening quote byte
			continue
		}
		unescaped = append(unescaped, raw[i])
		origin = append(origin, i+1)
	}

	cur := &cursor{src: unescaped}
	inner := parseSubtree(cur)
	remapOffsets(inner, str.Offset, origin)
	return &CodeString{Inner: rewriteNestedCode(inner), Delim: delim}
}

// remapOffsets rewrites every token's Offset, currently an index into the
// unescaped buffer passed to parseSubtree, into the corresponding byte
// offset in the original source: base + origin[offset] (clamped to the end
// of origin for a token sitting exactly at EOF of the unescaped buffer).
func remapOffsets(seq Sequence, base int, origin []int) {
	for _, n := range seq {
		switch v := n.(type) {
		case *Token:
			v.Offset = base + clampOrigin(origin, v.Offset)
		case *Subtree:
			remapOffsets(v.Nodes, base, origin)
		case *CodeString:
			remapOffsets(v.Inner, base, origin)
		}
	}
}

func clampOrigin(origin []int, idx int) int {
	if len(origin) == 0 {
		return 0
	}
	if idx >= len(origin) {
		return origin[len(origin)-1] + 1
	}
	return origin[idx]
}
