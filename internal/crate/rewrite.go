package crate

import (
	"bytes"
	"path"
	"strings"
)

const (
	// ManifestName is the file name of a package manifest.
	ManifestName = "Cargo.toml"

	// LibraryDir holds the library target. Code there refers to its own crate
	// as crate:: or ::, never by name, so it is never rewritten.
	LibraryDir = "src"

	// SourceExt is the extension of files the reference rewriter touches.
	SourceExt = ".rs"
)

// Pattern rewrites " old::" paths to " new::" in source text.
//
// The leading space keeps the match from hitting identifiers that only end
// in the crate name (foo_toml::) or paths that contain it as an inner segment
// (foo::toml::). Paths after a tab, at the start of a line, or directly after
// '(' are missed, as are "use old;" and "extern crate old;".
type Pattern struct {
	From string
	To   string
}

// NewPattern builds the substitution for renaming oldName to newName. Crate
// names use '-' on disk and '_' in source, so both are normalized.
func NewPattern(oldName, newName string) Pattern {
	return Pattern{
		From: " " + Ident(oldName) + "::",
		To:   " " + Ident(newName) + "::",
	}
}

// Ident converts a crate name to the identifier used for it in source.
func Ident(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Rewrite replaces every occurrence of p.From in src in a single left to
// right pass and reports how many were replaced. When nothing matches, src is
// returned as is.
func (p Pattern) Rewrite(src []byte) ([]byte, int) {
	n := bytes.Count(src, []byte(p.From))
	if n == 0 {
		return src, 0
	}
	return bytes.ReplaceAll(src, []byte(p.From), []byte(p.To)), n
}

// IsManifest reports whether rel names a manifest file.
func IsManifest(rel string) bool {
	return path.Base(rel) == ManifestName
}

// Eligible reports whether the file at rel, a path relative to the crate's
// base directory, gets its crate references rewritten: a .rs file outside
// the library directory.
func Eligible(rel string) bool {
	if path.Ext(rel) != SourceExt {
		return false
	}
	first, _, _ := strings.Cut(rel, "/")
	return first != LibraryDir
}
