// Package diff compares the contents of two crate archives.
package diff

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/git-pkgs/repackage/internal/archive"
)

// FileDiff represents the diff for a single file.
type FileDiff struct {
	Path         string `json:"path"`
	Type         string `json:"type"` // "modified", "added", "deleted"
	Diff         string `json:"diff,omitempty"`
	IsBinary     bool   `json:"is_binary,omitempty"`
	LinesAdded   int    `json:"lines_added"`
	LinesDeleted int    `json:"lines_deleted"`
}

// CompareResult contains the complete comparison between two archives.
type CompareResult struct {
	Files        []FileDiff `json:"files"`
	TotalAdded   int        `json:"total_added"`
	TotalDeleted int        `json:"total_deleted"`
	FilesChanged int        `json:"files_changed"`
	FilesAdded   int        `json:"files_added"`
	FilesDeleted int        `json:"files_deleted"`
}

// CompareCrates compares two .crate files by content. Each archive has its
// base directory stripped first, so a crate and its renamed copy line up
// path for path.
func CompareCrates(oldPath, oldBase, newPath, newBase string) (*CompareResult, error) {
	oldReader, err := openCrate(oldPath, oldBase)
	if err != nil {
		return nil, err
	}
	defer func() { _ = oldReader.Close() }()

	newReader, err := openCrate(newPath, newBase)
	if err != nil {
		return nil, err
	}
	defer func() { _ = newReader.Close() }()

	return Compare(oldReader, newReader)
}

func openCrate(path, base string) (archive.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r, err := archive.OpenWithPrefix(filepath.Base(path), f, base)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return r, nil
}

// Compare generates a diff between two archive readers.
func Compare(oldReader, newReader archive.Reader) (*CompareResult, error) {
	oldFiles, err := oldReader.List()
	if err != nil {
		return nil, fmt.Errorf("listing old archive: %w", err)
	}

	newFiles, err := newReader.List()
	if err != nil {
		return nil, fmt.Errorf("listing new archive: %w", err)
	}

	oldMap := make(map[string]archive.FileInfo)
	newMap := make(map[string]archive.FileInfo)

	for _, f := range oldFiles {
		if !f.IsDir {
			oldMap[f.Path] = f
		}
	}

	for _, f := range newFiles {
		if !f.IsDir {
			newMap[f.Path] = f
		}
	}

	result := &CompareResult{
		Files: []FileDiff{},
	}

	allPaths := make(map[string]bool)
	for path := range oldMap {
		allPaths[path] = true
	}
	for path := range newMap {
		allPaths[path] = true
	}

	paths := make([]string, 0, len(allPaths))
	for path := range allPaths {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		_, inOld := oldMap[path]
		_, inNew := newMap[path]

		var fileDiff FileDiff

		switch {
		case inOld && !inNew:
			fileDiff = FileDiff{
				Path: path,
				Type: "deleted",
			}
			result.FilesDeleted++

		case !inOld && inNew:
			fileDiff = FileDiff{
				Path: path,
				Type: "added",
			}
			result.FilesAdded++

			if content, err := readFileContent(newReader, path); err == nil {
				if isBinary(content) {
					fileDiff.IsBinary = true
				} else {
					fileDiff.Diff = generateAddedDiff(path, content)
					fileDiff.LinesAdded = countLines(content)
					result.TotalAdded += fileDiff.LinesAdded
				}
			}

		default:
			oldContent, err1 := readFileContent(oldReader, path)
			newContent, err2 := readFileContent(newReader, path)

			if err1 != nil || err2 != nil {
				continue // Skip files we can't read
			}

			if bytes.Equal(oldContent, newContent) {
				continue
			}

			fileDiff = FileDiff{
				Path: path,
				Type: "modified",
			}
			result.FilesChanged++

			if isBinary(oldContent) || isBinary(newContent) {
				fileDiff.IsBinary = true
			} else {
				diffText, added, deleted := generateUnifiedDiff(path, oldContent, newContent)
				fileDiff.Diff = diffText
				fileDiff.LinesAdded = added
				fileDiff.LinesDeleted = deleted
				result.TotalAdded += added
				result.TotalDeleted += deleted
			}
		}

		result.Files = append(result.Files, fileDiff)
	}

	return result, nil
}

// Write prints result as a patch followed by a one-line summary.
func Write(w io.Writer, result *CompareResult) error {
	for _, f := range result.Files {
		var err error
		switch {
		case f.IsBinary:
			_, err = fmt.Fprintf(w, "Binary file %s %s\n", f.Path, f.Type)
		case f.Type == "deleted":
			_, err = fmt.Fprintf(w, "--- a/%s\n+++ /dev/null\n", f.Path)
		default:
			_, err = io.WriteString(w, f.Diff)
		}
		if err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%d files changed, %d added, %d deleted (+%d -%d lines)\n",
		result.FilesChanged, result.FilesAdded, result.FilesDeleted, result.TotalAdded, result.TotalDeleted)
	return err
}

// readFileContent reads a file's content from an archive reader.
func readFileContent(reader archive.Reader, path string) ([]byte, error) {
	rc, err := reader.Extract(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}

// isBinary checks if content appears to be binary.
func isBinary(content []byte) bool {
	// Check first 8KB for null bytes
	checkLen := min(len(content), 8192)
	return bytes.IndexByte(content[:checkLen], 0) >= 0
}

// splitLines splits content into lines without a trailing empty element for
// a final newline.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
}

// generateUnifiedDiff generates a single-hunk unified diff covering the span
// between the common prefix and the common suffix of the two files.
func generateUnifiedDiff(path string, oldContent, newContent []byte) (string, int, int) {
	const context = 3

	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	commonPrefix := 0
	maxCommon := min(len(oldLines), len(newLines))
	for commonPrefix < maxCommon && oldLines[commonPrefix] == newLines[commonPrefix] {
		commonPrefix++
	}

	commonSuffix := 0
	for commonSuffix < maxCommon-commonPrefix &&
		oldLines[len(oldLines)-1-commonSuffix] == newLines[len(newLines)-1-commonSuffix] {
		commonSuffix++
	}

	oldCount := len(oldLines) - commonPrefix - commonSuffix
	newCount := len(newLines) - commonPrefix - commonSuffix
	if oldCount == 0 && newCount == 0 {
		// Only the trailing newline differs.
		return "", 0, 0
	}

	hunkStart := max(commonPrefix-context, 0)
	afterStart := commonPrefix + oldCount
	afterCount := min(context, len(oldLines)-afterStart)

	var hunk strings.Builder
	for _, l := range oldLines[hunkStart:commonPrefix] {
		hunk.WriteString(" " + l + "\n")
	}
	for _, l := range oldLines[commonPrefix:afterStart] {
		hunk.WriteString("-" + l + "\n")
	}
	for _, l := range newLines[commonPrefix : commonPrefix+newCount] {
		hunk.WriteString("+" + l + "\n")
	}
	for _, l := range oldLines[afterStart : afterStart+afterCount] {
		hunk.WriteString(" " + l + "\n")
	}

	before := commonPrefix - hunkStart

	var buf strings.Builder
	fmt.Fprintf(&buf, "--- a/%s\n", path)
	fmt.Fprintf(&buf, "+++ b/%s\n", path)
	fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n",
		hunkStart+1, before+oldCount+afterCount,
		hunkStart+1, before+newCount+afterCount)
	buf.WriteString(hunk.String())

	return buf.String(), newCount, oldCount
}

// generateAddedDiff generates a diff for a newly added file.
func generateAddedDiff(path string, content []byte) string {
	lines := splitLines(content)

	var buf strings.Builder
	buf.WriteString("--- /dev/null\n")
	fmt.Fprintf(&buf, "+++ b/%s\n", path)
	fmt.Fprintf(&buf, "@@ -0,0 +1,%d @@\n", len(lines))

	for _, line := range lines {
		buf.WriteString("+" + line + "\n")
	}

	return buf.String()
}

// countLines counts the number of lines in content.
func countLines(content []byte) int {
	return len(splitLines(content))
}
