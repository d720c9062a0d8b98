package translate

import (
	"testing"
)

func TestParseArrayPlain(t *testing.T) {
	out, err := parseArray(`["bonjour", "monde"]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0] != "bonjour" || out[1] != "monde" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestParseArrayWithCodeFence(t *testing.T) {
	out, err := parseArray("```json\n[\"a\", \"b\"]\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestParseArrayNoArray(t *testing.T) {
	if _, err := parseArray("sorry, I cannot translate that"); err == nil {
		t.Fatal("expected error for response without array")
	}
}
