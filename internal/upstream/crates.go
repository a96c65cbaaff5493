package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/repackage/internal/crate"
	"github.com/git-pkgs/repackage/internal/metrics"
	"github.com/git-pkgs/repackage/internal/storage"
)

var ErrInvalidCrate = errors.New("invalid crate name or version")

// Download describes a crate file written to disk.
type Download struct {
	Path   string
	URL    string
	Size   int64
	SHA256 string
}

// CrateURL returns the download URL of name@version below base, in the
// layout static.crates.io uses: {base}/{name}/{name}-{version}.crate
func CrateURL(base, name, version string) string {
	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(name) + "/" + url.PathEscape(name+"-"+version+".crate")
}

// DownloadCrate fetches name@version from base into dir as
// "{name}-{version}.crate". The file only appears once it is complete.
func (f *Fetcher) DownloadCrate(ctx context.Context, base, name, version, dir string) (*Download, error) {
	if err := crate.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCrate, err)
	}
	if version == "" || strings.ContainsAny(version, `/\`) || strings.Contains(version, "..") {
		return nil, fmt.Errorf("%w: version %q", ErrInvalidCrate, version)
	}

	u := CrateURL(base, name, version)

	artifact, err := f.Fetch(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer func() { _ = artifact.Body.Close() }()

	tmp, err := os.CreateTemp(dir, ".download-*.crate")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	hr := storage.NewHashingReader(artifact.Body)
	if _, err := io.Copy(tmp, hr); err != nil {
		_ = tmp.Close()
		metrics.RecordUpstreamError(ecosystem, "read_failed")
		return nil, fmt.Errorf("downloading %s: %w", u, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}
	if artifact.Size >= 0 && hr.Size() != artifact.Size {
		metrics.RecordUpstreamError(ecosystem, "short_read")
		return nil, fmt.Errorf("downloading %s: got %d of %d bytes", u, hr.Size(), artifact.Size)
	}

	path := filepath.Join(dir, name+"-"+version+".crate")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("moving download into place: %w", err)
	}

	return &Download{
		Path:   path,
		URL:    u,
		Size:   hr.Size(),
		SHA256: hr.Sum(),
	}, nil
}
