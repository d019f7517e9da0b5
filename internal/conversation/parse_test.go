package conversation

import (
	"strings"
	"testing"
)

func TestRenderPythonReprTranscript(t *testing.T) {
	got := Render(nil, `[{'role': 'user', 'content': 'hi'}]`)
	if got != "**user**: hi" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestRenderMultiTurnPythonRepr(t *testing.T) {
	raw := `[{'role': 'user', 'content': 'hola'}, {'role': 'assistant', 'content': 'hello'}]`
	got := Render(nil, raw)
	want := "**user**: hola\n\n**assistant**: hello"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderEscapedSingleQuoteInContent(t *testing.T) {
	got := Render(nil, `[{'role': 'assistant', 'content': 'it\'s done'}]`)
	if got != "**assistant**: it's done" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestRenderValidJSONWithStrayApostropheEscape(t *testing.T) {
	got := Render(nil, `[{"role": "assistant", "content": "It\'s fine"}]`)
	if got != "**assistant**: It's fine" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestRenderPlainJSONTranscript(t *testing.T) {
	got := Render(nil, `[{"role": "system", "content": "be brief"}]`)
	if got != "**system**: be brief" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestRenderNonBracketedInputUnchanged(t *testing.T) {
	input := "not a list at all"
	if got := Render(nil, input); got != input {
		t.Fatalf("expected input returned unchanged, got %q", got)
	}
}

func TestRenderUnparseableBracketedInputUnchanged(t *testing.T) {
	input := "[this is { not recoverable]"
	if got := Render(nil, input); got != input {
		t.Fatalf("expected input returned unchanged, got %q", got)
	}
}

func TestParseTurnOrderPreserved(t *testing.T) {
	raw := `[{'role': 'user', 'content': 'first'}, {'role': 'assistant', 'content': 'second'}, {'role': 'user', 'content': 'third'}]`
	turns, ok := Parse(raw)
	if !ok {
		t.Fatal("expected transcript to parse")
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, want := range []string{"first", "second", "third"} {
		if turns[i].Content != want {
			t.Fatalf("turn %d content %q, want %q", i, turns[i].Content, want)
		}
	}
}

func TestParseNonBracketedFails(t *testing.T) {
	if _, ok := Parse("role: user"); ok {
		t.Fatal("expected parse failure for non-bracketed input")
	}
}

func TestParseSingleQuotedWithEmbeddedDoubleQuotes(t *testing.T) {
	raw := `[{'role': 'user', 'content': 'say "hello"'}]`
	turns, ok := Parse(raw)
	if !ok {
		t.Fatal("expected transcript to parse")
	}
	if turns[0].Content != `say "hello"` {
		t.Fatalf("unexpected content %q", turns[0].Content)
	}
}

func TestKnownRole(t *testing.T) {
	for _, role := range []string{"user", "Assistant", " system "} {
		if !KnownRole(role) {
			t.Fatalf("expected %q to be a known role", role)
		}
	}
	if KnownRole("moderator") {
		t.Fatal("moderator should not be a known role")
	}
}

func TestRenderTurnsJoinsWithBlankLines(t *testing.T) {
	out := RenderTurns([]Turn{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}})
	if strings.Count(out, "\n\n") != 1 {
		t.Fatalf("expected one blank-line separator, got %q", out)
	}
}
