package cli

import (
	"reflect"
	"testing"
)

func TestParseJQ_Empty(t *testing.T) {
	q, err := ParseJQ("")
	if err != nil {
		t.Fatalf("ParseJQ error: %v", err)
	}
	if q != nil {
		t.Fatalf("ParseJQ(\"\") = %v, want nil", q)
	}

	// A nil JQ is the identity.
	got, err := q.Apply(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if got.(map[string]any)["a"] != 1 {
		t.Errorf("Apply = %v", got)
	}
}

func TestParseJQ_Invalid(t *testing.T) {
	if _, err := ParseJQ(".foo["); err == nil {
		t.Error("ParseJQ should fail for invalid expression")
	}
}

func TestJQ_Apply_SingleResult(t *testing.T) {
	q, err := ParseJQ(".total_count")
	if err != nil {
		t.Fatalf("ParseJQ error: %v", err)
	}

	type page struct {
		TotalCount int `json:"total_count"`
	}

	got, err := q.Apply(page{TotalCount: 42})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	// JSON round-trip turns numbers into float64.
	if got != float64(42) {
		t.Errorf("Apply = %v (%T), want 42", got, got)
	}
}

func TestJQ_Apply_MultipleResults(t *testing.T) {
	q, err := ParseJQ(".transcripts[].text")
	if err != nil {
		t.Fatalf("ParseJQ error: %v", err)
	}

	input := map[string]any{
		"transcripts": []any{
			map[string]any{"text": "first"},
			map[string]any{"text": "second"},
		},
	}

	got, err := q.Apply(input)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	want := []any{"first", "second"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}

func TestJQ_Apply_NoResult(t *testing.T) {
	q, err := ParseJQ(".transcripts[] | select(.text == \"missing\")")
	if err != nil {
		t.Fatalf("ParseJQ error: %v", err)
	}

	input := map[string]any{"transcripts": []any{}}

	if _, err := q.Apply(input); err == nil {
		t.Error("Apply should fail when expression yields nothing")
	}
}

func TestJQ_Apply_RuntimeError(t *testing.T) {
	q, err := ParseJQ(".a[0]")
	if err != nil {
		t.Fatalf("ParseJQ error: %v", err)
	}

	// Indexing a string is a jq runtime error.
	if _, err := q.Apply(map[string]any{"a": "not an array"}); err == nil {
		t.Error("Apply should surface jq runtime errors")
	}
}
