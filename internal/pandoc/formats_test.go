package pandoc

import "testing"

func TestOutputFormats(t *testing.T) {
	formats := OutputFormats()
	if len(formats) == 0 {
		t.Fatal("expected formats")
	}
	if formats[0].Value != "html" {
		t.Errorf("first format = %q, want html", formats[0].Value)
	}

	seen := map[string]bool{}
	for _, f := range formats {
		if seen[f.Value] {
			t.Errorf("duplicate format %q", f.Value)
		}
		seen[f.Value] = true
		if err := validateFormat(f.Value); err != nil {
			t.Errorf("catalog format %q rejected: %v", f.Value, err)
		}
	}

	// Callers get a copy.
	formats[0].Value = "mutated"
	if OutputFormats()[0].Value != "html" {
		t.Error("OutputFormats() exposed internal slice")
	}
}

func TestIsKnownInputExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{"md", true},
		{".md", true},
		{"DOCX", true},
		{".Tex", true},
		{"creole", true},
		{"pdf", false},
		{"", false},
		{"exe", false},
	}
	for _, tt := range tests {
		if got := IsKnownInputExtension(tt.ext); got != tt.want {
			t.Errorf("IsKnownInputExtension(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}
