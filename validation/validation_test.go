package validation

import (
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
		wantOK bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"watch url with params", "https://www.youtube.com/watch?v=abcdefghijk&t=42s", "abcdefghijk", true},
		{"mobile", "https://m.youtube.com/watch?v=a_b-c_d-e_f", "a_b-c_d-e_f", true},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"shorts", "https://youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"surrounding whitespace", "  https://youtu.be/dQw4w9WgXcQ \n", "dQw4w9WgXcQ", true},
		{"first match wins", "https://youtu.be/AAAAAAAAAAA?v=BBBBBBBBBBB", "AAAAAAAAAAA", true},
		{"plain text", "not a url", "", false},
		{"empty", "", "", false},
		{"too short", "https://youtu.be/short", "", false},
		{"other domain", "https://example.com/watch?v=dQw4w9WgXcQ", "", false},
	}

	e := NewExtractor(true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := e.Extract(tt.input)
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("Extract(%q) = (%q, %v), want (%q, %v)", tt.input, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestExtractWithoutDomainGate(t *testing.T) {
	e := NewExtractor(false)

	id, ok := e.Extract("https://example.com/watch?v=dQw4w9WgXcQ")
	if !ok || id != "dQw4w9WgXcQ" {
		t.Errorf("expected dQw4w9WgXcQ from any host, got (%q, %v)", id, ok)
	}

	if _, ok := e.Extract("not a url"); ok {
		t.Error("expected no identifier in plain text")
	}
}

func TestExtractIdentifierShape(t *testing.T) {
	inputs := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/___________",
		"https://www.youtube.com/live/0123456789-",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQextra",
	}

	e := NewExtractor(true)
	for _, input := range inputs {
		id, ok := e.Extract(input)
		if !ok {
			t.Errorf("Extract(%q) found nothing", input)
			continue
		}
		if len(id) != 11 {
			t.Errorf("Extract(%q) = %q, want 11 characters", input, id)
		}
	}
}

func TestThumbnailURL(t *testing.T) {
	got := ThumbnailURL("dQw4w9WgXcQ")
	want := "https://img.youtube.com/vi/dQw4w9WgXcQ/0.jpg"
	if got != want {
		t.Errorf("ThumbnailURL() = %q, want %q", got, want)
	}
}
