// Package repackage renames a packaged crate.
//
// DotCrate takes a cargo .crate file and writes a copy next to it in which the
// package name, the file name, the archive's base directory and every
// "<old>::" path in integration tests, examples, benches and build scripts
// use the new name. The library sources under src/ are left untouched; they
// refer to themselves through "crate::".
//
// Both archives are streamed entry by entry, so memory use is bounded by the
// largest single Cargo.toml or .rs file rather than the crate.
package repackage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/git-pkgs/repackage/internal/crate"
	"github.com/git-pkgs/repackage/internal/metrics"
)

// DotCrate repackages the .crate file at cratePath as newName. If oldName is
// empty it is inferred from the file name, otherwise the file name must agree
// with it.
//
// The output is written to the same directory as the input, overwriting any
// existing file of that name. It is removed again if the input turns out to
// have no Cargo.toml; on any other failure a partial file may be left behind.
func DotCrate(cratePath, oldName, newName string, opts ...Option) (res *Result, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordRun(Kind(err), time.Since(start))
	}()

	o := newOptions(opts)

	filename, err := crateFilename(cratePath)
	if err != nil {
		return nil, err
	}

	rename, err := crate.NewRename(filename, oldName, newName)
	if err != nil {
		return nil, err
	}
	outPath := filepath.Join(filepath.Dir(cratePath), rename.NewFilename)

	in, err := os.Open(cratePath)
	if err != nil {
		return nil, fmt.Errorf("open .crate file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("create new .crate file: %w", err)
	}

	o.logger.Debug("repackaging crate",
		"input", cratePath,
		"output", outPath,
		"from", rename.OldName,
		"to", rename.NewName,
		"version", rename.Version)

	res, err = Transcode(out, in, rename, opts...)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close new .crate file: %w", cerr)
	}
	if err != nil {
		if errors.Is(err, ErrMissingManifest) {
			if rerr := os.Remove(outPath); rerr != nil {
				o.logger.Warn("failed to remove incomplete .crate file", "path", outPath, "error", rerr)
			}
		}
		return nil, err
	}

	res.Output = outPath
	o.logger.Info("repackaged crate",
		"output", outPath,
		"name", res.NewName,
		"version", res.Version,
		"rewrites", res.Rewrites)
	return res, nil
}

// crateFilename returns the last element of cratePath, rejecting paths that
// do not name a file or whose name is not valid UTF-8.
func crateFilename(cratePath string) (string, error) {
	if cratePath == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidInputPath)
	}
	filename := filepath.Base(cratePath)
	switch filename {
	case ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q has no file name", ErrInvalidInputPath, cratePath)
	}
	if !utf8.ValidString(filename) {
		return "", fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidInputPath, cratePath)
	}
	return filename, nil
}
