// Package archive reads and writes the gzip-compressed tarballs cargo uses
// for .crate files.
//
// Two access modes are provided:
//   - Streaming (Walk, Writer): entries are visited once, in order, without
//     holding the archive in memory. Used to transcode a crate.
//   - Browsing (Open, Reader): the whole archive is loaded into memory and
//     files can be listed and extracted by path. Used to compare crates.
//
// Supported file names are .crate, .tar.gz, .tgz and .tar.
package archive

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrFileNotFound is returned by Extract for a path not in the archive.
var ErrFileNotFound = errors.New("file not found")

// FileInfo represents metadata about a file in an archive.
type FileInfo struct {
	Path    string    // Full path within archive
	Name    string    // Base name
	Size    int64     // Uncompressed size in bytes
	ModTime time.Time // Modification time
	IsDir   bool      // Whether this is a directory
	Mode    uint32    // File mode/permissions
}

// Reader provides methods to browse and extract files from archives.
type Reader interface {
	// List returns all files in the archive.
	List() ([]FileInfo, error)

	// ListDir returns files in a specific directory path.
	// Use "" or "/" for root directory.
	ListDir(dirPath string) ([]FileInfo, error)

	// Extract reads a specific file from the archive.
	// Returns io.ReadCloser for the file content.
	Extract(filePath string) (io.ReadCloser, error)

	// Close releases resources associated with the reader.
	Close() error
}

// Open creates an archive reader for the given content.
// The filename is used to detect the archive format.
// The content reader will be read entirely into memory.
func Open(filename string, content io.Reader) (Reader, error) {
	switch format := detectFormat(filename); format {
	case "tar":
		return openTar(content, false)
	case "tar.gz":
		return openTar(content, true)
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", filename)
	}
}

// OpenWithPrefix opens an archive and strips the given prefix from all paths.
// Crates wrap their content in a "<name>-<version>/" directory; stripping it
// lets two versions, or a crate and its renamed copy, be compared path by path.
func OpenWithPrefix(filename string, content io.Reader, stripPrefix string) (Reader, error) {
	reader, err := Open(filename, content)
	if err != nil {
		return nil, err
	}

	if stripPrefix == "" {
		return reader, nil
	}

	return &prefixStripper{
		reader: reader,
		prefix: normalizeDir(stripPrefix),
	}, nil
}

// detectFormat determines archive format from filename extension.
func detectFormat(filename string) string {
	filename = strings.ToLower(filename)

	if strings.HasSuffix(filename, ".tar.gz") {
		return "tar.gz"
	}

	switch path.Ext(filename) {
	case ".crate", ".tgz":
		return "tar.gz"
	case ".tar":
		return "tar"
	default:
		return ""
	}
}

// normalizeDir normalizes directory path for consistent comparison.
func normalizeDir(dirPath string) string {
	dirPath = strings.TrimSpace(dirPath)
	dirPath = strings.Trim(dirPath, "/")
	if dirPath == "" {
		return ""
	}
	return dirPath + "/"
}

// isInDir checks if filePath is directly in dirPath (not in subdirectories).
func isInDir(filePath, dirPath string) bool {
	dirPath = normalizeDir(dirPath)

	// Normalize file path by trimming trailing slash
	filePath = strings.TrimSuffix(filePath, "/")

	if dirPath == "" {
		return !strings.Contains(filePath, "/")
	}

	if !strings.HasPrefix(filePath+"/", dirPath) {
		return false
	}

	rel := strings.TrimPrefix(filePath, strings.TrimSuffix(dirPath, "/"))
	rel = strings.TrimPrefix(rel, "/")

	return rel != "" && !strings.Contains(rel, "/")
}

func extractName(p string) string {
	p = strings.TrimSuffix(p, "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
