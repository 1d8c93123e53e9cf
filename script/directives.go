package script

import "regexp"

var (
	renameDirectiveRE = regexp.MustCompile(`^-- *rename *(\w+) *-> *(\w+) *$`)
	transformToLoadRE = regexp.MustCompile(`^-- *transform *to *load *$`)
)

// ExtractDirectives walks seq tree-wide collecting "-- rename OLD -> NEW"
// comments into a flat rename map, and rewriting any "-- transform to load"
// annotated "function NAME ( ) … end" into "NAME = load CodeString{…}".
// The collected renames are applied (via ApplyRenames) to the returned tree,
// and the map is returned as well.
//
// Renames are collected flat across the whole tree rather than lexically
// scoped to the block the comment appears in: the auto-rename search (see
// AllIdentifierOccurrences) already treats every occurrence of an identifier
// as one renameable group regardless of nesting, so directive-driven renames
// use the same flat semantics for consistency.
func ExtractDirectives(seq Sequence) (map[string]string, Sequence) {
	renames := map[string]string{}
	out := extractDirectives(seq, renames)
	return renames, ApplyRenames(out, renames)
}

func extractDirectives(seq Sequence, renames map[string]string) Sequence {
	out := make(Sequence, 0, len(seq))
	for i := 0; i < len(seq); i++ {
		n := seq[i]
		switch v := n.(type) {
		case *CodeString:
			out = append(out, &CodeString{Inner: extractDirectives(v.Inner, renames), Delim: v.Delim})
			continue
		case *Subtree:
			out = append(out, &Subtree{Nodes: extractDirectives(v.Nodes, renames)})
			continue
		case *Token:
			if v.Kind == KindComment {
				if m := renameDirectiveRE.FindSubmatch(v.Text); m != nil {
					renames[string(m[1])] = string(m[2])
					continue
				}
				if transformToLoadRE.Match(v.Text) {
					if sub, ok := nextSubtree(seq, i+1); ok {
						if name, body, ok := matchFunctionNoArgsShape(sub.sub); ok {
							out = append(out, buildLoadAssignment(name, body)...)
							i = sub.idx
							continue
						}
					}
				}
			}
		}
		out = append(out, n)
	}
	return out
}

type foundSubtree struct {
	idx int
	sub *Subtree
}

// nextSubtree scans forward from idx for the next *Subtree, returning it
// only if no non-comment node sits between idx and it.
func nextSubtree(seq Sequence, idx int) (foundSubtree, bool) {
	for j := idx; j < len(seq); j++ {
		if t, ok := seq[j].(*Token); ok && t.Kind == KindComment {
			continue
		}
		if sub, ok := seq[j].(*Subtree); ok {
			return foundSubtree{idx: j, sub: sub}, true
		}
		return foundSubtree{}, false
	}
	return foundSubtree{}, false
}

// matchFunctionNoArgsShape recognizes "function NAME ( ) <body> end" and
// returns the function name and the token sequence between "(" ")" and the
// trailing "end" (exclusive of both delimiters).
func matchFunctionNoArgsShape(sub *Subtree) (name string, body Sequence, ok bool) {
	nodes := sub.Nodes
	idx := 0
	next := func() (*Token, bool) {
		for idx < len(nodes) {
			t, isTok := nodes[idx].(*Token)
			idx++
			if !isTok {
				return nil, false
			}
			return t, true
		}
		return nil, false
	}

	kw, isTok := next()
	if !isTok || kw.Kind != KindIdentifier || string(kw.Text) != "function" {
		return "", nil, false
	}
	nameTok, isTok := next()
	if !isTok || nameTok.Kind != KindIdentifier {
		return "", nil, false
	}
	lp, isTok := next()
	if !isTok || lp.Kind != KindOther || string(lp.Text) != "(" {
		return "", nil, false
	}
	rp, isTok := next()
	if !isTok || rp.Kind != KindOther || string(rp.Text) != ")" {
		return "", nil, false
	}
	if len(nodes) == 0 {
		return "", nil, false
	}
	last, isTok := nodes[len(nodes)-1].(*Token)
	if !isTok || last.Kind != KindIdentifier || string(last.Text) != "end" {
		return "", nil, false
	}
	return string(nameTok.Text), nodes[idx : len(nodes)-1], true
}

// buildLoadAssignment produces "NAME = load CodeString{body}" as a flat
// token/node sequence.
func buildLoadAssignment(name string, body Sequence) Sequence {
	return Sequence{
		&Token{Kind: KindIdentifier, Text: []byte(name)},
		&Token{Kind: KindOther, Text: []byte("=")},
		&Token{Kind: KindIdentifier, Text: []byte("load")},
		&CodeString{Inner: body, Delim: '"'},
	}
}
