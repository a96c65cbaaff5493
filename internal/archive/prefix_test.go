package archive

import (
	"errors"
	"testing"
)

func TestRebase(t *testing.T) {
	r := NewRebaser("foo-0.1.0", "bar-0.1.0")

	tests := []struct {
		name string
		want string
	}{
		{"foo-0.1.0/Cargo.toml", "bar-0.1.0/Cargo.toml"},
		{"foo-0.1.0/src/lib.rs", "bar-0.1.0/src/lib.rs"},
		{"foo-0.1.0/src/", "bar-0.1.0/src/"},
		{"foo-0.1.0/", "bar-0.1.0/"},
		{"foo-0.1.0", "bar-0.1.0"},
		{"foo-0.1.0/a//b.rs", "bar-0.1.0/a/b.rs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Rebase(tt.name)
			if err != nil {
				t.Fatalf("Rebase(%q) failed: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("Rebase(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestRebaseOutsideRoot(t *testing.T) {
	r := NewRebaser("foo-0.1.0", "bar-0.1.0")

	for _, name := range []string{
		"Cargo.toml",
		"foo-0.1.0.orig/Cargo.toml",
		"foo-0.1/Cargo.toml",
		"other-0.1.0/src/lib.rs",
		"/foo-0.1.0/Cargo.toml",
		"foo-0.1.0/../etc/passwd",
		"",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Rebase(name)
			if !errors.Is(err, ErrOutsidePackageRoot) {
				t.Errorf("Rebase(%q) error = %v, want %v", name, err, ErrOutsidePackageRoot)
			}
		})
	}
}

func TestRel(t *testing.T) {
	r := NewRebaser("foo-0.1.0/", "bar-0.1.0")

	tests := []struct {
		name string
		want string
	}{
		{"foo-0.1.0/tests/it.rs", "tests/it.rs"},
		{"foo-0.1.0/", ""},
		{"foo-0.1.0/./build.rs", "build.rs"},
	}

	for _, tt := range tests {
		got, err := r.Rel(tt.name)
		if err != nil {
			t.Fatalf("Rel(%q) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("Rel(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
