package jsonx

import "testing"

func TestExtractObjectFromNoisyText(t *testing.T) {
	text := "Sure, here you go:\n{\"tables\": [\"public.sales\"]}\nTERMINATE"
	got := ExtractObject(nil, text)
	if got != `{"tables": ["public.sales"]}` {
		t.Fatalf("ExtractObject() = %q", got)
	}
}

func TestExtractObjectReturnsMinimalPrefix(t *testing.T) {
	text := `{"a": 1}{"b": 2}`
	got := ExtractObject(nil, text)
	if got != `{"a": 1}` {
		t.Fatalf("ExtractObject() = %q", got)
	}
}

func TestExtractObjectNestedBraces(t *testing.T) {
	text := `prefix {"outer": {"inner": [1, 2]}} suffix`
	got := ExtractObject(nil, text)
	if got != `{"outer": {"inner": [1, 2]}}` {
		t.Fatalf("ExtractObject() = %q", got)
	}
}

func TestExtractObjectNoBrace(t *testing.T) {
	if got := ExtractObject(nil, "no object here"); got != EmptyObject {
		t.Fatalf("ExtractObject() = %q, want %q", got, EmptyObject)
	}
}

func TestExtractObjectInvalidObject(t *testing.T) {
	if got := ExtractObject(nil, "{not json at all"); got != EmptyObject {
		t.Fatalf("ExtractObject() = %q, want %q", got, EmptyObject)
	}
}
