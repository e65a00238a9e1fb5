package answer

import (
	"strings"
	"testing"
)

func TestPrompt_ContainsContextInRankOrder(t *testing.T) {
	p := Prompt("what is the revenue?", []string{"first hit", "second hit"})

	if !strings.Contains(p, "first hit\n\nsecond hit") {
		t.Errorf("context not joined in rank order:\n%s", p)
	}
	if !strings.Contains(p, "Question: what is the revenue?") {
		t.Errorf("query missing:\n%s", p)
	}
	if !strings.Contains(p, Refusal("what is the revenue?")) {
		t.Errorf("refusal phrase missing:\n%s", p)
	}
}

func TestRefusal(t *testing.T) {
	want := `Sorry, I cannot find the answer to your question "who?" in this document.`
	if got := Refusal("who?"); got != want {
		t.Errorf("Refusal() = %q, want %q", got, want)
	}
}

func TestRefusal_KeepsQueryVerbatim(t *testing.T) {
	q := "What does \"RAG\" mean in C:\\docs?\nand below"
	got := Refusal(q)
	if !strings.Contains(got, `"`+q+`"`) {
		t.Errorf("Refusal() = %q, want the query quoted verbatim", got)
	}
}
