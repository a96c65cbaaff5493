package crate

import (
	"errors"
	"strings"
	"testing"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename  string
		wantName  string
		wantMajor string
		wantOK    bool
	}{
		{"foo-0.1.0.crate", "foo", "0", true},
		{"serde_json-1.0.108.crate", "serde_json", "1", true},
		{"with-tests-0.1.0.crate", "with-tests", "0", true},
		{"tokio-12.0.0.crate", "tokio", "12", true},
		{"netscape-0.1.0.crate", "netscape", "0", true},
		{"foo.crate", "", "", false},
		{"foo-bar.crate", "", "", false},
		{"foo-1a.2.crate", "", "", false},
		{"-0.1.0.crate", "", "", false},
		{"foo-.1.0.crate", "", "", false},
		{"foo-0", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			name, major, ok := ParseFilename(tt.filename)
			if ok != tt.wantOK || name != tt.wantName || major != tt.wantMajor {
				t.Errorf("ParseFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.filename, name, major, ok, tt.wantName, tt.wantMajor, tt.wantOK)
			}
		})
	}
}

func TestResolveName(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected string
		want     string
		wantErr  error
	}{
		{"inferred", "foo-0.1.0.crate", "", "foo", nil},
		{"expected matches", "foo-0.1.0.crate", "foo", "foo", nil},
		{"hyphenated", "with-tests-0.1.0.crate", "with-tests", "with-tests", nil},
		{"prefix is not a match", "netscape-0.1.0.crate", "net", "", ErrNameMismatch},
		{"expected but not inferable", "foo.crate", "foo", "", ErrNameMismatch},
		{"not inferable", "foo.crate", "", "", ErrNameInference},
		{"no version", "foo-bar.crate", "", "", ErrNameInference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveName(tt.filename, tt.expected)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveName(%q, %q) error = %v, want %v", tt.filename, tt.expected, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveName(%q, %q) unexpected error: %v", tt.filename, tt.expected, err)
			}
			if got != tt.want {
				t.Errorf("ResolveName(%q, %q) = %q, want %q", tt.filename, tt.expected, got, tt.want)
			}
		})
	}
}

func TestBaseDir(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"foo-0.1.0.crate", "foo-0.1.0"},
		{"foo-0.1.0", "foo-0.1"},
		{"foo", "foo"},
	}

	for _, tt := range tests {
		if got := BaseDir(tt.filename); got != tt.want {
			t.Errorf("BaseDir(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestNewRename(t *testing.T) {
	r, err := NewRename("foo-0.1.0.crate", "", "bar")
	if err != nil {
		t.Fatalf("NewRename failed: %v", err)
	}

	want := Rename{
		OldName:     "foo",
		NewName:     "bar",
		Version:     "0.1.0",
		Filename:    "foo-0.1.0.crate",
		NewFilename: "bar-0.1.0.crate",
		BaseDir:     "foo-0.1.0",
		NewBaseDir:  "bar-0.1.0",
	}
	if *r != want {
		t.Errorf("NewRename = %+v, want %+v", *r, want)
	}
}

func TestNewRenameReplacesEveryOccurrence(t *testing.T) {
	r, err := NewRename("v1-1.0.0-v1.crate", "v1", "v2")
	if err != nil {
		t.Fatalf("NewRename failed: %v", err)
	}
	if r.NewFilename != "v2-1.0.0-v2.crate" {
		t.Errorf("NewFilename = %q, want %q", r.NewFilename, "v2-1.0.0-v2.crate")
	}
}

func TestNewRenameErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		oldName  string
		newName  string
		wantErr  error
	}{
		{"empty new name", "foo-0.1.0.crate", "", "", ErrInvalidName},
		{"same name", "foo-0.1.0.crate", "", "foo", ErrInvalidName},
		{"parent directory", "foo-0.1.0.crate", "", "../x", ErrInvalidName},
		{"path separator", "foo-0.1.0.crate", "", "a/b", ErrInvalidName},
		{"backslash", "foo-0.1.0.crate", "", `a\b`, ErrInvalidName},
		{"dot", "foo-0.1.0.crate", "", "a.b", ErrInvalidName},
		{"leading digit", "foo-0.1.0.crate", "", "9lives", ErrInvalidName},
		{"leading hyphen", "foo-0.1.0.crate", "", "-bar", ErrInvalidName},
		{"space", "foo-0.1.0.crate", "", "my crate", ErrInvalidName},
		{"non-ascii", "foo-0.1.0.crate", "", "café", ErrInvalidName},
		{"too long", "foo-0.1.0.crate", "", "a" + strings.Repeat("b", MaxNameLength), ErrInvalidName},
		{"mismatch", "netscape-0.1.0.crate", "net", "net2", ErrNameMismatch},
		{"uninferable", "foo.tar.gz", "", "bar", ErrNameInference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRename(tt.filename, tt.oldName, tt.newName)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewRename error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"bar", "my-crate", "my_crate", "Serde2", "a", "a" + strings.Repeat("b", MaxNameLength-1)}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "..", "../escaped", "a/b", "_bar", "9lives", "a.b", "a\x00b"}
	for _, name := range invalid {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want %v", name, err, ErrInvalidName)
		}
	}
}
