package safeio

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafePath(t *testing.T) {
	base := filepath.FromSlash("/data/raw/2025/10/2025-10-04_Rat_6773")
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"agenda/01_Haushalt/vorlage.pdf", false},
		{"session-documents/Protokoll..v2.pdf", false},
		{"../etc/passwd", true},
		{"agenda/../../outside", true},
		{"", false},
	}
	for _, tt := range tests {
		got, err := SafePath(base, tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrPathTraversal) {
				t.Errorf("SafePath(%q): err = %v, want ErrPathTraversal", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafePath(%q): %v", tt.input, err)
			continue
		}
		if !strings.HasPrefix(got, base) {
			t.Errorf("SafePath(%q) = %q escapes base", tt.input, got)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(bytes.NewReader([]byte("hello")), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("at limit: %q %v", data, err)
	}
	if _, err := LimitedReadAll(bytes.NewReader([]byte("hello!")), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: err = %v, want ErrTooLarge", err)
	}
}
