package provider

import (
	"encoding/json"
	"testing"
)

func TestNormalizeOutputDirectString(t *testing.T) {
	got, ok := NormalizeOutput(json.RawMessage(`"https://cdn.example.com/out.png"`))
	if !ok {
		t.Fatalf("expected a result")
	}
	if got != "https://cdn.example.com/out.png" {
		t.Fatalf("result = %q", got)
	}
}

func TestNormalizeOutputNestedOutputString(t *testing.T) {
	got, ok := NormalizeOutput(json.RawMessage(`{"output":"abc"}`))
	if !ok || got != "abc" {
		t.Fatalf("got (%q, %v), want (abc, true)", got, ok)
	}
}

func TestNormalizeOutputNestedOutputObject(t *testing.T) {
	got, ok := NormalizeOutput(json.RawMessage(`{"output":{"image":"xyz"}}`))
	if !ok || got != "xyz" {
		t.Fatalf("got (%q, %v), want (xyz, true)", got, ok)
	}
}

func TestNormalizeOutputListTakesFirst(t *testing.T) {
	got, ok := NormalizeOutput(json.RawMessage(`{"images":["a","b"]}`))
	if !ok || got != "a" {
		t.Fatalf("got (%q, %v), want (a, true)", got, ok)
	}
}

func TestNormalizeOutputTopLevelURL(t *testing.T) {
	got, ok := NormalizeOutput(json.RawMessage(`{"url":"https://cdn.example.com/v.mp4","status":"done"}`))
	if !ok || got != "https://cdn.example.com/v.mp4" {
		t.Fatalf("got (%q, %v)", got, ok)
	}
}

func TestNormalizeOutputOutputFieldWins(t *testing.T) {
	// The nested output field is tried before list and top-level shapes.
	got, ok := NormalizeOutput(json.RawMessage(`{"output":"first","images":["second"],"url":"third"}`))
	if !ok || got != "first" {
		t.Fatalf("got (%q, %v), want (first, true)", got, ok)
	}
}

func TestNormalizeOutputUnrecognizedShapes(t *testing.T) {
	for _, raw := range []string{``, `{}`, `null`, `{"progress":42}`, `{"images":[]}`, `""`, `{"output":{}}`} {
		if got, ok := NormalizeOutput(json.RawMessage(raw)); ok {
			t.Fatalf("input %q: expected no result, got %q", raw, got)
		}
	}
}
