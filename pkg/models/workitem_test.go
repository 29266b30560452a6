package models

import (
	"reflect"
	"testing"
)

func TestParseWorkItems(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain lines",
			input: "add login endpoint\nadd logout endpoint",
			want:  []string{"add login endpoint", "add logout endpoint"},
		},
		{
			name:  "bullet markers stripped",
			input: "- first\n* second\n+ third",
			want:  []string{"first", "second", "third"},
		},
		{
			name:  "ordinals stripped",
			input: "1. first\n2) second\n10. tenth",
			want:  []string{"first", "second", "tenth"},
		},
		{
			name:  "checkboxes stripped",
			input: "- [ ] pending thing\n- [x] done thing",
			want:  []string{"pending thing", "done thing"},
		},
		{
			name:  "blank lines and headings skipped",
			input: "# Sprint 12\n\nfix the cache\n\n## notes\nadd metrics",
			want:  []string{"fix the cache", "add metrics"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := ParseWorkItems(tt.input)
			var texts []string
			for _, it := range items {
				texts = append(texts, it.Text)
			}
			if !reflect.DeepEqual(texts, tt.want) {
				t.Errorf("ParseWorkItems() texts = %v, want %v", texts, tt.want)
			}
			for i, it := range items {
				if it.SourceIndex != i {
					t.Errorf("item %d has SourceIndex %d, want %d", i, it.SourceIndex, i)
				}
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Backend API", "backend-api"},
		{"auth / session handling", "auth-session-handling"},
		{"  spaces   everywhere  ", "spaces-everywhere"},
		{"UPPER_case_mix 42", "upper-case-mix-42"},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
