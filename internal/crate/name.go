// Package crate knows how cargo names .crate files and how a crate refers to
// itself from source code outside its library.
//
// A .crate file is named "<name>-<version>.crate" and unpacks into a single
// directory "<name>-<version>/". Renaming a crate therefore touches three
// strings: the package name, the file name and that base directory.
package crate

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrNameInference = errors.New("unable to infer crate name")
	ErrNameMismatch  = errors.New("crate name mismatch")
	ErrInvalidName   = errors.New("invalid crate name")
)

// ParseFilename splits a .crate file name into its crate name and the major
// version component.
//
// Crate names cannot contain '.', so the split walks backwards from the first
// dot to the last '-' before it. The segment in between must be all ASCII
// digits, which keeps "netscape-0.1.0.crate" from being read as a version of
// "net".
func ParseFilename(filename string) (name, major string, ok bool) {
	dot := strings.IndexByte(filename, '.')
	if dot < 0 {
		return "", "", false
	}
	dash := strings.LastIndexByte(filename[:dot], '-')
	if dash < 0 {
		return "", "", false
	}
	name = filename[:dash]
	major = filename[dash+1 : dot]
	if name == "" || major == "" || !isDigits(major) {
		return "", "", false
	}
	return name, major, true
}

// ResolveName returns the crate name the file must contain.
// If expected is non-empty it has to equal the name inferred from filename.
func ResolveName(filename, expected string) (string, error) {
	inferred, _, ok := ParseFilename(filename)
	if expected != "" {
		if !ok || inferred != expected {
			return "", fmt.Errorf("%w: .crate file %q does not match given old name %q", ErrNameMismatch, filename, expected)
		}
		return expected, nil
	}
	if !ok {
		return "", fmt.Errorf("%w from file name %q", ErrNameInference, filename)
	}
	return inferred, nil
}

// Version returns everything between "<name>-" and the final extension.
// The file name must start with name.
func Version(filename, name string) string {
	v := strings.TrimPrefix(filename, name+"-")
	return strings.TrimSuffix(v, path.Ext(v))
}

// BaseDir is the directory a .crate file unpacks into: the file name without
// its final extension.
func BaseDir(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}

// Rename is the plan for repackaging one .crate file under a new name.
type Rename struct {
	OldName     string
	NewName     string
	Version     string
	Filename    string // input file name, e.g. foo-0.1.0.crate
	NewFilename string // output file name, e.g. bar-0.1.0.crate
	BaseDir     string // e.g. foo-0.1.0
	NewBaseDir  string // e.g. bar-0.1.0
}

// NewRename resolves the old name from filename (checked against oldName when
// given) and derives every name the output needs.
//
// The output file name replaces each occurrence of the old name in the input
// file name, so a version string that happens to contain the old name is
// rewritten as well.
func NewRename(filename, oldName, newName string) (*Rename, error) {
	if err := ValidateName(newName); err != nil {
		return nil, err
	}
	old, err := ResolveName(filename, oldName)
	if err != nil {
		return nil, err
	}
	if old == newName {
		return nil, fmt.Errorf("%w: new name %q is the current name", ErrInvalidName, newName)
	}

	newFilename := strings.ReplaceAll(filename, old, newName)
	return &Rename{
		OldName:     old,
		NewName:     newName,
		Version:     Version(filename, old),
		Filename:    filename,
		NewFilename: newFilename,
		BaseDir:     BaseDir(filename),
		NewBaseDir:  BaseDir(newFilename),
	}, nil
}

// MaxNameLength is the longest package name crates.io accepts.
const MaxNameLength = 64

// ValidateName checks name against the crates.io naming rules: ASCII letters,
// digits, '-' and '_', starting with a letter, at most MaxNameLength bytes.
// A valid name can never contain a path separator or "..".
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxNameLength)
	}
	if !isLetter(name[0]) {
		return fmt.Errorf("%w: %q must start with a letter", ErrInvalidName, name)
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !isLetter(c) && !isDigit(c) && c != '-' && c != '_' {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, c)
		}
	}
	return nil
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
