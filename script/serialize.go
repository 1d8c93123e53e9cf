package script

import "bytes"

// Serialize flattens seq into minified source bytes, inserting the minimum
// separator whitespace needed to keep adjacent tokens from re-tokenising
// into one, escaping nested CodeString content for its delimiter, and
// overwriting every Token's Offset in place with its final byte position
// in the returned output.
func Serialize(seq Sequence) []byte {
	s := &serializer{}
	s.emit(seq)
	return s.buf.Bytes()
}

type serializer struct {
	buf      bytes.Buffer
	lastKind Kind
	lastText []byte
	hasLast  bool
}

func (s *serializer) emit(seq Sequence) {
	for _, n := range seq {
		switch v := n.(type) {
		case *Token:
			s.emitToken(v)
		case *Subtree:
			s.emit(v.Nodes)
		case *CodeString:
			s.emitCodeString(v)
		}
	}
}

func (s *serializer) emitToken(t *Token) {
	if t.Kind == KindComment {
		// Comments carry no runtime meaning and are dropped entirely,
		// matching lua.rs's serializer.
		return
	}
	if s.hasLast && needsSeparator(s.lastKind, s.lastText, t.Kind, t.Text) {
		s.buf.WriteByte(' ')
	}
	t.Offset = s.buf.Len()
	s.buf.Write(t.Text)
	s.lastKind, s.lastText, s.hasLast = t.Kind, t.Text, true
}

// emitCodeString serialises the nested program raw (its own nested
// CodeStrings already escaped themselves for their own delimiter as part of
// that recursive call), then escapes the resulting bytes exactly once for
// this CodeString's own delimiter before splicing them in. Escaping each
// level exactly once as it bubbles outward is what produces the doubling
// cascade for multiply-nested code strings: a lone backslash written at the
// innermost level is doubled again by every enclosing layer (1, 2, 4, ...).
func (s *serializer) emitCodeString(cs *CodeString) {
	inner := &serializer{}
	inner.emit(cs.Inner)

	escaped, posMap := escapeForDelim(inner.buf.Bytes(), cs.Delim)
	base := s.buf.Len() + 1 // +1 for the opening delimiter byte about to be written
	remapSerializedOffsets(cs.Inner, base, posMap)

	s.buf.WriteByte(cs.Delim)
	s.buf.Write(escaped)
	s.buf.WriteByte(cs.Delim)
	s.lastKind, s.lastText, s.hasLast = KindString, nil, true
}

// escapeForDelim puts a backslash before every backslash and every
// occurrence of delim in data, and returns alongside it posMap, where posMap[i] is the position in
// the escaped output that original byte i starts at — needed to relocate
// token offsets recorded against the unescaped buffer.
func escapeForDelim(data []byte, delim byte) (escaped []byte, posMap []int) {
	out := make([]byte, 0, len(data))
	posMap = make([]int, len(data)+1)
	for i, b := range data {
		posMap[i] = len(out)
		if b == '\\' || b == delim {
			out = append(out, '\\')
		}
		out = append(out, b)
	}
	posMap[len(data)] = len(out)
	return out, posMap
}

// remapSerializedOffsets rewrites every token's Offset in seq (currently a
// position in the unescaped inner buffer) to base + posMap[offset], the
// position it actually landed at once escaping and outer nesting pushed it
// out. It recurses into Subtree and CodeString contents, whose own Offsets
// were set relative to that same unescaped inner buffer during inner.emit.
func remapSerializedOffsets(seq Sequence, base int, posMap []int) {
	for _, n := range seq {
		switch v := n.(type) {
		case *Token:
			v.Offset = base + posMap[v.Offset]
		case *Subtree:
			remapSerializedOffsets(v.Nodes, base, posMap)
		case *CodeString:
			remapSerializedOffsets(v.Inner, base, posMap)
		}
	}
}

// needsSeparator reports whether a space must be inserted between two
// adjacent emitted tokens so that re-tokenising the output reproduces the
// same two tokens, rather than merging their last/first bytes into one.
// Per the serialiser contract: previous=Identifier separates before a
// '_'/alphanumeric byte; previous=Number separates before '.', an ASCII hex
// digit, or 'x'/'X' when the number's last byte is '0'; previous=HexNumber
// separates before '.', an ASCII hex digit, or 'p'/'P'.
func needsSeparator(prevKind Kind, prevText []byte, kind Kind, text []byte) bool {
	if len(text) == 0 {
		return false
	}
	next := text[0]
	switch prevKind {
	case KindIdentifier:
		return isIdentByte(next)
	case KindNumber:
		if next == '.' || isHexDigit(next) {
			return true
		}
		if (next == 'x' || next == 'X') && len(prevText) > 0 && prevText[len(prevText)-1] == '0' {
			return true
		}
		return false
	case KindHexNumber:
		if next == '.' || isHexDigit(next) {
			return true
		}
		return next == 'p' || next == 'P'
	}
	return false
}
