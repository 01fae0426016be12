package replaycore

import "testing"

func TestExpandVariablesBothSyntaxes(t *testing.T) {
	env := map[string]string{"HOME": "/root", "NAME": "x"}
	got, err := ExpandVariables("${HOME}/out/$(NAME).txt", env, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/root/out/x.txt" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandVariablesUnknownIsEmpty(t *testing.T) {
	got, err := ExpandVariables("prefix-${MISSING}-suffix", nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "prefix--suffix" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandVariablesStrictFailsOnUnknown(t *testing.T) {
	_, err := ExpandVariables("${MISSING}", nil, true)
	if err == nil {
		t.Fatalf("expected error in strict mode")
	}
}

func TestExpandVariablesUnterminatedIsLiteral(t *testing.T) {
	got, err := ExpandVariables("literal${HOME", map[string]string{"HOME": "/root"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "literal${HOME" {
		t.Fatalf("got %q", got)
	}
}
