package script

// reservedIdentifiers names identifiers that are never renameable: the
// fantasy-console lifecycle callbacks the runtime calls by name.
var reservedIdentifiers = map[string]bool{
	"TIC": true,
	"SCN": true,
	"OVR": true,
}

// ApplyRenames substitutes every identifier token whose text is a key of
// renames with its mapped value, flat across the whole tree: the same
// function serves both directive-driven renames and the merged map the
// auto-rename search produces each iteration.
func ApplyRenames(seq Sequence, renames map[string]string) Sequence {
	if len(renames) == 0 {
		return seq
	}
	out := make(Sequence, len(seq))
	for i, n := range seq {
		switch v := n.(type) {
		case *Token:
			if v.Kind == KindIdentifier {
				if to, ok := renames[string(v.Text)]; ok {
					out[i] = &Token{Kind: v.Kind, Offset: v.Offset, Text: []byte(to)}
					continue
				}
			}
			out[i] = v
		case *Subtree:
			out[i] = &Subtree{Nodes: ApplyRenames(v.Nodes, renames)}
		case *CodeString:
			out[i] = &CodeString{Inner: ApplyRenames(v.Inner, renames), Delim: v.Delim}
		}
	}
	return out
}

// Occurrence records one emitted-output byte span an identifier occupies.
type Occurrence struct {
	Name   string
	Offset int
	Length int
}

// RenameableIdentifiers collects every distinct identifier name in seq that
// is a candidate for the auto-rename search: any identifier immediately
// followed by a lone "=" (so in "NAME.field = …" the field name counts and
// NAME does not) and function declaration names, excluding
// reservedIdentifiers.
// It must be called against a tree that has already been through
// Serialize, so Occurrence.Offset reflects final emitted byte positions.
func RenameableIdentifiers(seq Sequence) map[string][]Occurrence {
	occ := map[string][]Occurrence{}
	collectRenameable(seq, occ)
	return occ
}

func collectRenameable(seq Sequence, occ map[string][]Occurrence) {
	for i := 0; i < len(seq); i++ {
		switch v := seq[i].(type) {
		case *CodeString:
			collectRenameable(v.Inner, occ)
		case *Subtree:
			if len(v.Nodes) >= 2 {
				if kw, ok := v.Nodes[0].(*Token); ok && kw.Kind == KindIdentifier && string(kw.Text) == "function" {
					if nameTok, ok := v.Nodes[1].(*Token); ok && nameTok.Kind == KindIdentifier && !reservedIdentifiers[string(nameTok.Text)] {
						addOccurrence(occ, nameTok)
					}
				}
			}
			collectRenameable(v.Nodes, occ)
		case *Token:
			if v.Kind != KindIdentifier || reservedIdentifiers[string(v.Text)] {
				continue
			}
			if next := nextSignificantToken(seq, i+1); next != nil && next.Kind == KindOther && string(next.Text) == "=" {
				// Exclude comparisons ("==") and compound-assign spellings
				// the tokeniser never emits as a single "=" token anyway;
				// the lexer already folds "==" into one Other token, so a
				// lone "=" here is always a plain assignment.
				addOccurrence(occ, v)
			}
		}
	}
}

func addOccurrence(occ map[string][]Occurrence, t *Token) {
	name := string(t.Text)
	occ[name] = append(occ[name], Occurrence{Name: name, Offset: t.Offset, Length: len(t.Text)})
}

func nextSignificantToken(seq Sequence, idx int) *Token {
	for j := idx; j < len(seq); j++ {
		if t, ok := seq[j].(*Token); ok {
			return t
		}
		return nil
	}
	return nil
}

// AllIdentifierOccurrences collects, for every identifier appearing
// anywhere in seq (not just renameable declaration sites), its emitted
// byte spans. This is the full occurrence set the rename search costs
// against, as opposed to RenameableIdentifiers' declaration-site subset
// that determines which names may be renamed at all.
func AllIdentifierOccurrences(seq Sequence) map[string][]Occurrence {
	occ := map[string][]Occurrence{}
	collectAllIdentifiers(seq, occ)
	return occ
}

func collectAllIdentifiers(seq Sequence, occ map[string][]Occurrence) {
	for _, n := range seq {
		switch v := n.(type) {
		case *CodeString:
			collectAllIdentifiers(v.Inner, occ)
		case *Subtree:
			collectAllIdentifiers(v.Nodes, occ)
		case *Token:
			if v.Kind == KindIdentifier {
				addOccurrence(occ, v)
			}
		}
	}
}
