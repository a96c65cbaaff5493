package repackage

import (
	"errors"

	"github.com/git-pkgs/repackage/internal/archive"
	"github.com/git-pkgs/repackage/internal/crate"
	"github.com/git-pkgs/repackage/internal/manifest"
)

var (
	ErrInvalidInputPath = errors.New("invalid .crate file path")
	ErrMissingManifest  = errors.New(".crate file did not contain a Cargo.toml file")
)

// Kind classifies err into a stable label for metrics and status codes.
// It returns "" for a nil error and "io" for anything not raised by the
// repackaging checks themselves.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInputPath):
		return "invalid_input_path"
	case errors.Is(err, crate.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, crate.ErrNameInference):
		return "name_inference_failed"
	case errors.Is(err, crate.ErrNameMismatch), errors.Is(err, manifest.ErrNameMismatch):
		return "name_mismatch"
	case errors.Is(err, manifest.ErrWorkspace):
		return "workspace_not_supported"
	case errors.Is(err, manifest.ErrMissingPackage):
		return "missing_package_section"
	case errors.Is(err, manifest.ErrParse):
		return "manifest_parse_error"
	case errors.Is(err, archive.ErrOutsidePackageRoot):
		return "entry_outside_package_root"
	case errors.Is(err, ErrMissingManifest):
		return "missing_manifest"
	default:
		return "io"
	}
}
