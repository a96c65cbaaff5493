package archive

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrOutsidePackageRoot is returned for an entry that does not live under the
// archive's base directory.
var ErrOutsidePackageRoot = errors.New("entry not under package root")

// Rebaser moves archive paths from one top-level directory to another.
type Rebaser struct {
	from string
	to   string
}

// NewRebaser returns a Rebaser that moves paths under from to be under to.
func NewRebaser(from, to string) *Rebaser {
	return &Rebaser{
		from: strings.Trim(from, "/"),
		to:   strings.Trim(to, "/"),
	}
}

// Rel returns name relative to the base directory. The base directory entry
// itself has an empty relative path.
func (r *Rebaser) Rel(name string) (string, error) {
	trimmed := strings.TrimSuffix(name, "/")
	if trimmed == r.from {
		return "", nil
	}
	rel, ok := strings.CutPrefix(trimmed, r.from+"/")
	if !ok || r.from == "" {
		return "", fmt.Errorf("%w: %s", ErrOutsidePackageRoot, name)
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrOutsidePackageRoot, name)
		}
	}
	if rel = path.Clean(rel); rel == "." {
		rel = ""
	}
	return rel, nil
}

// Rebase returns name moved under the new base directory. A trailing slash,
// as tar uses for directories, is kept.
func (r *Rebaser) Rebase(name string) (string, error) {
	rel, err := r.Rel(name)
	if err != nil {
		return "", err
	}
	out := r.to
	if rel != "" {
		out = r.to + "/" + rel
	}
	if strings.HasSuffix(name, "/") {
		out += "/"
	}
	return out, nil
}

// prefixStripper wraps a Reader and strips a prefix from all file paths.
type prefixStripper struct {
	reader Reader
	prefix string
}

func (p *prefixStripper) List() ([]FileInfo, error) {
	files, err := p.reader.List()
	if err != nil {
		return nil, err
	}

	return p.stripPrefix(files), nil
}

func (p *prefixStripper) ListDir(dirPath string) ([]FileInfo, error) {
	files, err := p.reader.ListDir(p.prefix + normalizeDir(dirPath))
	if err != nil {
		return nil, err
	}

	return p.stripPrefix(files), nil
}

func (p *prefixStripper) Extract(filePath string) (io.ReadCloser, error) {
	return p.reader.Extract(p.prefix + filePath)
}

func (p *prefixStripper) Close() error {
	return p.reader.Close()
}

// stripPrefix removes the prefix from all file paths.
func (p *prefixStripper) stripPrefix(files []FileInfo) []FileInfo {
	result := make([]FileInfo, 0, len(files))

	for _, f := range files {
		// Skip files that don't have the prefix
		if !strings.HasPrefix(f.Path, p.prefix) {
			continue
		}

		stripped := f
		stripped.Path = strings.TrimPrefix(f.Path, p.prefix)
		stripped.Name = extractName(stripped.Path)

		// Skip if path is now empty (was the prefix directory itself)
		if stripped.Path == "" || stripped.Path == "/" {
			continue
		}

		result = append(result, stripped)
	}

	return result
}
