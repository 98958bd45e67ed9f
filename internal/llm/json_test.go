package llm

import (
	"reflect"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
		ok   bool
	}{
		{"bare object", `{"letters":["a"]}`, map[string]any{"letters": []any{"a"}}, true},
		{"fenced", "```json\n{\"words\":[\"cat\"]}\n```", map[string]any{"words": []any{"cat"}}, true},
		{"leading chatter", `Sure! Here it is: {"definition":"x","sentence":"y"}`, map[string]any{"definition": "x", "sentence": "y"}, true},
		{"nested braces", `noise {"a":{"b":1}} trailing`, map[string]any{"a": map[string]any{"b": float64(1)}}, true},
		{"broken then valid", `{"broken": {"words":["dog"]}`, map[string]any{"words": []any{"dog"}}, true},
		{"no object", "just words", nil, false},
		{"empty", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if tt.ok && !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanWordList(t *testing.T) {
	got := cleanWordList([]string{" Apple ", "apple", "3rd", "", "banana!", "cherry"}, 10)
	want := []string{"apple", "cherry"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got = cleanWordList([]string{"a", "b", "c"}, 2)
	if len(got) != 2 {
		t.Fatalf("limit not applied: %v", got)
	}
}
