package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorUnwrapChain(t *testing.T) {
	inner := errors.New("boom")
	err := Generation(fmt.Errorf("chapter 3: %w", inner))

	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is: want inner error in chain")
	}
	if got := CodeOf(err); got != CodeGeneration {
		t.Fatalf("CodeOf: want=%q got=%q", CodeGeneration, got)
	}
	if got := StatusOf(err); got != http.StatusBadGateway {
		t.Fatalf("StatusOf: want=%d got=%d", http.StatusBadGateway, got)
	}
}

func TestMalformedPreservesRaw(t *testing.T) {
	raw := "```json\n{\"oops\": \n```"
	err := Malformed(raw, errors.New("unexpected end of JSON input"))

	got, ok := RawOutput(err)
	if !ok {
		t.Fatalf("RawOutput: want preserved raw text")
	}
	if got != raw {
		t.Fatalf("RawOutput: want=%q got=%q", raw, got)
	}
	if CodeOf(err) != CodeMalformedOutput {
		t.Fatalf("CodeOf: want=%q got=%q", CodeMalformedOutput, CodeOf(err))
	}

	wrapped := fmt.Errorf("process run: %w", err)
	if _, ok := RawOutput(wrapped); !ok {
		t.Fatalf("RawOutput: want raw text through wrapping")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("CodeOf plain error: want empty got=%q", got)
	}
	if got := StatusOf(errors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("StatusOf plain error: want=%d got=%d", http.StatusInternalServerError, got)
	}
}
