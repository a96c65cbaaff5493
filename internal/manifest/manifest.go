// Package manifest edits the Cargo.toml embedded in a .crate file.
//
// Only the package name is ever changed. The document is decoded into a
// generic table tree rather than a typed struct so that keys this package
// does not know about survive the round trip; formatting, key order and
// comments are whatever the TOML encoder produces.
package manifest

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

var (
	ErrParse              = errors.New("parse Cargo.toml")
	ErrWorkspace          = errors.New("manifest is a workspace, so is not packaged")
	ErrMissingPackage     = errors.New("manifest does not contain a package")
	ErrNameMismatch       = errors.New("package name mismatch")
	ErrInvalidPackageName = errors.New("invalid package name")
)

// Document is a parsed manifest.
type Document interface {
	// IsWorkspace reports whether the manifest declares a [workspace].
	IsWorkspace() bool

	// PackageName returns package.name, or "" if it is not a string. ok is
	// false when there is no [package] table.
	PackageName() (name string, ok bool)

	// SetPackageName replaces package.name.
	SetPackageName(name string) error

	// Marshal serializes the document.
	Marshal() ([]byte, error)
}

// Parse decodes a TOML manifest.
func Parse(data []byte) (Document, error) {
	doc := &tomlDocument{}
	if err := toml.Unmarshal(data, &doc.root); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%w: line %d column %d: %v", ErrParse, row, col, derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.root == nil {
		doc.root = map[string]any{}
	}
	return doc, nil
}

type tomlDocument struct {
	root map[string]any
}

func (d *tomlDocument) IsWorkspace() bool {
	_, ok := d.root["workspace"]
	return ok
}

func (d *tomlDocument) pkg() (map[string]any, bool) {
	table, ok := d.root["package"].(map[string]any)
	return table, ok
}

func (d *tomlDocument) PackageName() (string, bool) {
	table, ok := d.pkg()
	if !ok {
		return "", false
	}
	name, _ := table["name"].(string)
	return name, true
}

func (d *tomlDocument) SetPackageName(name string) error {
	if name == "" {
		return ErrInvalidPackageName
	}
	table, ok := d.pkg()
	if !ok {
		return ErrMissingPackage
	}
	table["name"] = name
	return nil
}

func (d *tomlDocument) Marshal() ([]byte, error) {
	return toml.Marshal(d.root)
}

// Rename rewrites the package name in a manifest from oldName to newName and
// returns the serialized result.
func Rename(data []byte, oldName, newName string) ([]byte, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if doc.IsWorkspace() {
		return nil, ErrWorkspace
	}
	name, ok := doc.PackageName()
	if !ok {
		return nil, ErrMissingPackage
	}
	if name == "" {
		return nil, fmt.Errorf("%w: package.name is missing or not a string", ErrParse)
	}
	if name != oldName {
		return nil, fmt.Errorf("%w: crate name in .crate file (%q) did not match given name (%q)", ErrNameMismatch, name, oldName)
	}
	if err := doc.SetPackageName(newName); err != nil {
		return nil, err
	}

	out, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize modified Cargo.toml: %w", err)
	}
	return out, nil
}
