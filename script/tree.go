package script

// Node is one element of a Sequence: a *Token, a *Subtree, or a *CodeString.
type Node interface {
	isNode()
}

// Sequence is an ordered list of tree nodes.
type Sequence []Node

// Subtree is a function ... end region. It groups its tokens so that
// directive rewrites (transform-to-load) can match on shape; it has no
// effect on serialisation beyond emitting its contents inline.
type Subtree struct {
	Nodes Sequence
}

func (*Subtree) isNode() {}

// CodeString is a structural wrapper around a quoted string that is itself
// source code: either a load "…" argument or a string preceded by a
// "-- code string" comment. Inner is a token tree parsed from the
// unescaped string content; Delim is the quote byte the string used.
// CodeString has no identifier of its own — renaming passes recurse into
// Inner the same way they recurse into a Subtree.
type CodeString struct {
	Inner Sequence
	Delim byte
}

func (*CodeString) isNode() {}

// Clone deep-copies a sequence, including every token's text, so that
// repeated rename passes never alias a previous iteration's tree.
func (seq Sequence) Clone() Sequence {
	if seq == nil {
		return nil
	}
	out := make(Sequence, len(seq))
	for i, n := range seq {
		switch v := n.(type) {
		case *Token:
			out[i] = cloneToken(*v)
		case *Subtree:
			out[i] = &Subtree{Nodes: v.Nodes.Clone()}
		case *CodeString:
			out[i] = &CodeString{Inner: v.Inner.Clone(), Delim: v.Delim}
		}
	}
	return out
}
