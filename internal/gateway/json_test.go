package gateway

import "testing"

func TestExtractJSONUnwrapsMarkdownFence(t *testing.T) {
	raw := "```json\n[{\"title\":\"one\"}]\n```"
	got := ExtractJSON(raw)
	if got != `[{"title":"one"}]` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONUnwrapsSurroundingProse(t *testing.T) {
	raw := "Here is the outline you asked for:\n{\"title\":\"深度学习\"}\nLet me know if you need changes."
	got := ExtractJSON(raw)
	if got != `{"title":"深度学习"}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONPrefersEarlierValue(t *testing.T) {
	raw := `{"a":1} and also [2,3]`
	got := ExtractJSON(raw)
	if got != `{"a":1}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONReturnsTrimmedInputWhenNoCandidate(t *testing.T) {
	got := ExtractJSON("  the model refused to answer  ")
	if got != "the model refused to answer" {
		t.Fatalf("unexpected passthrough: %q", got)
	}
}

func TestExtractJSONReturnsInputWhenCandidateInvalid(t *testing.T) {
	raw := `prefix {"broken": } suffix`
	got := ExtractJSON(raw)
	if got != raw {
		t.Fatalf("invalid candidate must pass the input through, got %q", got)
	}
}
