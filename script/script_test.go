package script

import "testing"

func minify(t *testing.T, src string) string {
	t.Helper()
	seq := Tokenize([]byte(src))
	_, seq = ExtractDirectives(seq)
	return string(Serialize(seq))
}

func TestSeparatorInsertionNumbers(t *testing.T) {
	vectors := []struct{ src, want string }{
		{"a=1 p=2", "a=1p=2"},
		{"a=1 e=2", "a=1 e=2"},
		{"a=0 x=2", "a=0 x=2"},
	}
	for _, v := range vectors {
		if got := minify(t, v.src); got != v.want {
			t.Errorf("minify(%q) = %q, want %q", v.src, got, v.want)
		}
	}
}

func TestSeparatorInsertionHexNumbers(t *testing.T) {
	vectors := []struct{ src, want string }{
		{"ad=0x3FF9 poke(ad,r)", "ad=0x3FF9 poke(ad,r)"},
		{"ad=0x3FF9 x=1", "ad=0x3FF9x=1"},
		{"ad=0x3FF9.2p-4 p=1", "ad=0x3FF9.2p-4 p=1"},
	}
	for _, v := range vectors {
		if got := minify(t, v.src); got != v.want {
			t.Errorf("minify(%q) = %q, want %q", v.src, got, v.want)
		}
	}
}

func TestPlainStringLeftUntouched(t *testing.T) {
	src := `a=" a=2 b=3 \" \ c=4 d=5 "b=2`
	if got := minify(t, src); got != src {
		t.Errorf("minify(%q) = %q, want identity", src, got)
	}
}

func TestLongBracketCommentDropped(t *testing.T) {
	src := "a = --[=[ blah \n blub ]=] 4"
	if got, want := minify(t, src), "a=4"; got != want {
		t.Errorf("minify(%q) = %q, want %q", src, got, want)
	}
}

func TestLongBracketStringLevelMatching(t *testing.T) {
	seq := Tokenize([]byte("[==[foo[=[bar]=]baz]==]..."))
	var kinds []Kind
	var texts []string
	for _, n := range seq {
		tok, ok := n.(*Token)
		if !ok {
			t.Fatalf("unexpected non-token node: %#v", n)
		}
		kinds = append(kinds, tok.Kind)
		texts = append(texts, string(tok.Text))
	}
	want := []string{"[==[foo[=[bar]=]baz]==]", ".", ".", "."}
	if len(texts) != len(want) {
		t.Fatalf("got %d tokens %v, want %d tokens %v", len(texts), texts, len(want), want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestRenameDirectiveReachesIntoNestedCodeString(t *testing.T) {
	src := "-- rename a->b\nA=load\"a=2\""
	got := minify(t, src)
	if want := `A=load"b=2"`; got != want {
		t.Errorf("minify(%q) = %q, want %q", src, got, want)
	}
}

func TestRoundTripIdempotentWithoutComments(t *testing.T) {
	src := "function foo(x) y=x+1 return y end foo(3)"
	seq := Tokenize([]byte(src))
	first := Serialize(seq)

	reseq := Tokenize(first)
	second := Serialize(reseq)
	if string(first) != string(second) {
		t.Errorf("serialize not idempotent: %q != %q", first, second)
	}
}

func TestOffsetFidelity(t *testing.T) {
	seq := Tokenize([]byte("alpha=beta+1"))
	out := Serialize(seq)
	for _, n := range seq {
		tok, ok := n.(*Token)
		if !ok || tok.Kind != KindIdentifier {
			continue
		}
		got := out[tok.Offset : tok.Offset+len(tok.Text)]
		if string(got) != string(tok.Text) {
			t.Errorf("offset %d: out[...] = %q, want %q", tok.Offset, got, tok.Text)
		}
	}
}

func TestApplyRenamesDescendsIntoNestedCodeString(t *testing.T) {
	seq := Tokenize([]byte(`x=load"x=x+1"`))
	seq = ApplyRenames(seq, map[string]string{"x": "q"})
	got := string(Serialize(seq))
	if want := `q=load"q=q+1"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEscapingCascadesThroughNesting(t *testing.T) {
	// An inner CodeString whose content contains its own delimiter must
	// come out escaped once per enclosing layer.
	inner := Sequence{&Token{Kind: KindString, Text: []byte(`"hi"`)}}
	mid := &CodeString{Inner: inner, Delim: '"'}
	outer := &CodeString{Inner: Sequence{mid}, Delim: '"'}

	out := string(Serialize(Sequence{outer}))
	want := `"\"\\\"hi\\\"\""`
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}
