package repackage

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/git-pkgs/repackage/internal/archive"
	"github.com/git-pkgs/repackage/internal/crate"
	"github.com/git-pkgs/repackage/internal/manifest"
	"github.com/git-pkgs/repackage/internal/metrics"
)

// Routes an archive entry can take.
const (
	RouteManifest    = "manifest"
	RouteSource      = "source"
	RoutePassthrough = "passthrough"
)

// Result describes a finished repackaging.
type Result struct {
	OldName string
	NewName string
	Version string

	// Output is the path of the written .crate file. Empty for Transcode.
	Output string

	Manifests   int // entries sent through the manifest editor
	Sources     int // .rs files checked for crate references
	Passthrough int // entries copied unchanged
	Rewrites    int // crate references rewritten across all sources
}

// Option configures a repackaging run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type transcoder struct {
	rename  *crate.Rename
	pattern crate.Pattern
	rebaser *archive.Rebaser
	out     *archive.Writer
	logger  *slog.Logger
	result  *Result

	// buf holds the content of the entry being edited; reset per entry.
	buf bytes.Buffer
}

// Transcode reads the .crate stream src, renames it as planned by r and
// writes the result to dst. Entries are written in input order.
//
// ErrMissingManifest is returned if no Cargo.toml was found; dst then holds
// every other entry, but not a valid archive trailer.
func Transcode(dst io.Writer, src io.Reader, r *crate.Rename, opts ...Option) (*Result, error) {
	o := newOptions(opts)

	out, err := archive.NewWriter(dst)
	if err != nil {
		return nil, err
	}

	t := &transcoder{
		rename:  r,
		pattern: crate.NewPattern(r.OldName, r.NewName),
		rebaser: archive.NewRebaser(r.BaseDir, r.NewBaseDir),
		out:     out,
		logger:  o.logger,
		result: &Result{
			OldName: r.OldName,
			NewName: r.NewName,
			Version: r.Version,
		},
	}

	if err := archive.Walk(src, t.entry); err != nil {
		return nil, err
	}
	if t.result.Manifests == 0 {
		return nil, ErrMissingManifest
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("finish repackaged .crate file: %w", err)
	}

	return t.result, nil
}

func (t *transcoder) entry(e *archive.Entry) error {
	rel, err := t.rebaser.Rel(e.Path)
	if err != nil {
		return err
	}
	name, err := t.rebaser.Rebase(e.Path)
	if err != nil {
		return err
	}

	regular := e.Header.Typeflag == tar.TypeReg
	switch {
	case regular && crate.IsManifest(rel):
		err = t.manifest(e, name)
	case regular && crate.Eligible(rel):
		err = t.source(e, name)
	default:
		t.logger.Debug("copying entry", "path", name)
		metrics.RecordEntry(RoutePassthrough)
		t.result.Passthrough++
		if err := t.out.Append(e.Header, name, e.Body); err != nil {
			return fmt.Errorf("append unmodified file to new .crate file: %w", err)
		}
	}
	return err
}

func (t *transcoder) manifest(e *archive.Entry, name string) error {
	t.buf.Reset()
	if _, err := t.buf.ReadFrom(e.Body); err != nil {
		return fmt.Errorf("read Cargo.toml from .crate file: %w", err)
	}

	data, err := manifest.Rename(t.buf.Bytes(), t.rename.OldName, t.rename.NewName)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Path, err)
	}

	e.Header.Size = int64(len(data))
	if err := t.out.Append(e.Header, name, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("append modified Cargo.toml to new .crate file: %w", err)
	}

	t.logger.Debug("renamed package in manifest", "path", name, "from", t.rename.OldName, "to", t.rename.NewName)
	metrics.RecordEntry(RouteManifest)
	t.result.Manifests++
	return nil
}

func (t *transcoder) source(e *archive.Entry, name string) error {
	t.buf.Reset()
	if _, err := t.buf.ReadFrom(e.Body); err != nil {
		return fmt.Errorf("read .rs file for in-place modification: %w", err)
	}

	data, n := t.pattern.Rewrite(t.buf.Bytes())

	e.Header.Size = int64(len(data))
	if err := t.out.Append(e.Header, name, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("append rewritten .rs file to new .crate file: %w", err)
	}

	if n > 0 {
		t.logger.Debug("rewrote crate references", "path", name, "count", n)
	}
	metrics.RecordEntry(RouteSource)
	metrics.RecordRewrites(n)
	t.result.Sources++
	t.result.Rewrites += n
	return nil
}
