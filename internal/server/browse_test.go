package server

import "testing"

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"src/lib.rs", "text/x-rust; charset=utf-8"},
		{"Cargo.toml", "text/toml; charset=utf-8"},
		{"Cargo.toml.orig", "text/toml; charset=utf-8"},
		{"Cargo.lock", "text/plain; charset=utf-8"},
		{"README.md", "text/plain; charset=utf-8"},
		{".cargo_vcs_info.json", "application/json; charset=utf-8"},
		{"LICENSE-MIT", "text/plain; charset=utf-8"},
		{"LICENSE", "text/plain; charset=utf-8"},
		{"assets/logo.png", "image/png"},
		{"data.bin", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := detectContentType(tt.filename); got != tt.want {
				t.Errorf("detectContentType(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
