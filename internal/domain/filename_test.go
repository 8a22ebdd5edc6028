package domain

import "testing"

func TestValidFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple name", "alpha.txt", true},
		{"name with spaces", "my document.txt", true},
		{"dotfile", ".hidden", true},
		{"single dot prefix", "a.b.c", true},
		{"utf8 name", "资料.bin", true},
		{"empty", "", false},
		{"traversal", "../etc/passwd", false},
		{"embedded traversal", "a/../b", false},
		{"bare dotdot", "..", false},
		{"dotdot suffix", "name..", false},
		{"absolute unix", "/etc/passwd", false},
		{"absolute backslash", "\\share", false},
		{"forward slash", "dir/file", false},
		{"backslash", "dir\\file", false},
		{"drive letter", "C:\\temp", false},
		{"drive letter no slash", "c:file", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFilename(tt.input); got != tt.want {
				t.Errorf("ValidFilename(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
