package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/repackage/internal/metrics"
)

// Ecosystem is the path prefix and purl type of published crates.
const Ecosystem = "cargo"

var ErrAlreadyPublished = errors.New("crate version already published")

// Artifact describes a published crate.
type Artifact struct {
	Path   string // object key in the bucket
	PURL   string
	Size   int64
	SHA256 string // what a cargo index records as "cksum"
}

// Publish uploads the crate read from r as name@version. An existing object
// at the same path is only replaced when overwrite is set, since registries
// treat a published version as immutable.
func Publish(ctx context.Context, s Storage, name, version, filename string, r io.Reader, overwrite bool) (*Artifact, error) {
	path := ArtifactPath(Ecosystem, name, version, filename)

	if !overwrite {
		start := time.Now()
		exists, err := s.Exists(ctx, path)
		metrics.RecordStorageOperation("exists", time.Since(start))
		if err != nil {
			metrics.RecordStorageError("exists")
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyPublished, path)
		}
	}

	start := time.Now()
	size, hash, err := s.Store(ctx, path, r)
	metrics.RecordStorageOperation("store", time.Since(start))
	if err != nil {
		metrics.RecordStorageError("store")
		return nil, fmt.Errorf("publishing %s: %w", path, err)
	}

	return &Artifact{
		Path:   path,
		PURL:   purl.MakePURLString(Ecosystem, name, version),
		Size:   size,
		SHA256: hash,
	}, nil
}
