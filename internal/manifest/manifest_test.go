package manifest

import (
	"errors"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

const fooManifest = `# generated by cargo package
[package]
edition = "2021"
name = "foo"
version = "0.1.0"
authors = ["Jane <jane@example.com>"]
description = "A test crate"

[dependencies]
serde = { version = "1", features = ["derive"] }

[dev-dependencies.tempfile]
version = "3"

[[bin]]
name = "foo-cli"
path = "src/main.rs"

[[bin]]
name = "foo-other"
path = "src/bin/other.rs"
`

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		t.Fatalf("output is not valid TOML: %v\n%s", err, data)
	}
	return m
}

func TestRename(t *testing.T) {
	out, err := Rename([]byte(fooManifest), "foo", "bar")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	got := decode(t, out)
	want := decode(t, []byte(fooManifest))
	want["package"].(map[string]any)["name"] = "bar"

	pkg := got["package"].(map[string]any)
	if pkg["name"] != "bar" {
		t.Errorf("package.name = %v, want bar", pkg["name"])
	}

	// Everything but the name must survive.
	gotBytes, _ := toml.Marshal(got)
	wantBytes, _ := toml.Marshal(want)
	if string(gotBytes) != string(wantBytes) {
		t.Errorf("manifest content changed beyond the name:\ngot:\n%s\nwant:\n%s", gotBytes, wantBytes)
	}
}

func TestRenameKeepsBinTargets(t *testing.T) {
	out, err := Rename([]byte(fooManifest), "foo", "bar")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	bins, ok := decode(t, out)["bin"].([]any)
	if !ok || len(bins) != 2 {
		t.Fatalf("bin = %v, want two targets", decode(t, out)["bin"])
	}
	first := bins[0].(map[string]any)
	if first["name"] != "foo-cli" {
		t.Errorf("bin[0].name = %v, want foo-cli", first["name"])
	}
}

func TestRenameErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  error
	}{
		{
			name:     "malformed",
			manifest: "[package\nname = \"foo\"",
			wantErr:  ErrParse,
		},
		{
			name:     "workspace",
			manifest: "[workspace]\nmembers = [\"a\"]\n\n[package]\nname = \"foo\"\n",
			wantErr:  ErrWorkspace,
		},
		{
			name:     "workspace with wrong name",
			manifest: "[workspace]\n\n[package]\nname = \"other\"\n",
			wantErr:  ErrWorkspace,
		},
		{
			name:     "workspace without package",
			manifest: "[workspace]\nmembers = [\"a\", \"b\"]\n",
			wantErr:  ErrWorkspace,
		},
		{
			name:     "no package",
			manifest: "[dependencies]\nserde = \"1\"\n",
			wantErr:  ErrMissingPackage,
		},
		{
			name:     "package without name",
			manifest: "[package]\nversion = \"0.1.0\"\n",
			wantErr:  ErrParse,
		},
		{
			name:     "name mismatch",
			manifest: "[package]\nname = \"other\"\n",
			wantErr:  ErrNameMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rename([]byte(tt.manifest), "foo", "bar")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Rename error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDocument(t *testing.T) {
	doc, err := Parse([]byte(fooManifest))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if doc.IsWorkspace() {
		t.Error("IsWorkspace() = true, want false")
	}

	name, ok := doc.PackageName()
	if !ok || name != "foo" {
		t.Errorf("PackageName() = (%q, %v), want (foo, true)", name, ok)
	}

	if err := doc.SetPackageName(""); !errors.Is(err, ErrInvalidPackageName) {
		t.Errorf("SetPackageName(\"\") error = %v, want %v", err, ErrInvalidPackageName)
	}
	if err := doc.SetPackageName("bar"); err != nil {
		t.Fatalf("SetPackageName failed: %v", err)
	}
	if name, _ := doc.PackageName(); name != "bar" {
		t.Errorf("PackageName() after set = %q, want bar", name)
	}
}

func TestDocumentWithoutPackage(t *testing.T) {
	doc, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := doc.PackageName(); ok {
		t.Error("PackageName() ok = true for empty manifest")
	}
	if err := doc.SetPackageName("bar"); !errors.Is(err, ErrMissingPackage) {
		t.Errorf("SetPackageName error = %v, want %v", err, ErrMissingPackage)
	}
}
