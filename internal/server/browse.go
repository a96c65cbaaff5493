package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/git-pkgs/repackage/internal/archive"
	"github.com/git-pkgs/repackage/internal/storage"
)

// BrowseListResponse contains the file listing for a directory in a crate.
type BrowseListResponse struct {
	Path  string           `json:"path"`
	Files []BrowseFileInfo `json:"files"`
}

// BrowseFileInfo contains metadata about a file in a crate.
type BrowseFileInfo struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	IsDir   bool   `json:"is_dir"`
	ModTime string `json:"mod_time,omitempty"`
}

// openPublished loads a published crate for browsing, with its base
// directory stripped. It writes the error response itself and returns nil
// on failure.
func (s *Server) openPublished(w http.ResponseWriter, r *http.Request) archive.Reader {
	name, version, ok := crateParams(w, r)
	if !ok {
		return nil
	}
	baseDir := name + "-" + version
	filename := baseDir + ".crate"

	rc, err := s.storage.Open(r.Context(), storage.ArtifactPath(storage.Ecosystem, name, version, filename))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "crate not found", http.StatusNotFound)
			return nil
		}
		s.logger.Error("failed to read crate from storage", "error", err)
		http.Error(w, "failed to read crate", http.StatusInternalServerError)
		return nil
	}
	defer func() { _ = rc.Close() }()

	ar, err := archive.OpenWithPrefix(filename, rc, baseDir)
	if err != nil {
		s.logger.Error("failed to open crate", "error", err, "filename", filename)
		http.Error(w, "failed to open crate", http.StatusInternalServerError)
		return nil
	}
	return ar
}

// handleBrowseList returns the files in a directory of a published crate.
// GET /crates/{name}/{version}/files?path=/some/dir
func (s *Server) handleBrowseList(w http.ResponseWriter, r *http.Request) {
	dirPath := r.URL.Query().Get("path")

	ar := s.openPublished(w, r)
	if ar == nil {
		return
	}
	defer func() { _ = ar.Close() }()

	files, err := ar.ListDir(dirPath)
	if err != nil {
		s.logger.Error("failed to list directory", "error", err, "path", dirPath)
		http.Error(w, "failed to list directory", http.StatusInternalServerError)
		return
	}

	response := BrowseListResponse{
		Path:  dirPath,
		Files: make([]BrowseFileInfo, len(files)),
	}

	for i, f := range files {
		info := BrowseFileInfo{
			Path:  f.Path,
			Name:  f.Name,
			Size:  f.Size,
			IsDir: f.IsDir,
		}
		if !f.ModTime.IsZero() {
			info.ModTime = f.ModTime.Format("2006-01-02 15:04:05")
		}
		response.Files[i] = info
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// handleBrowseFile returns the contents of one file in a published crate.
// GET /crates/{name}/{version}/files/{filepath...}
func (s *Server) handleBrowseFile(w http.ResponseWriter, r *http.Request) {
	filePath := chi.URLParam(r, "*")
	if filePath == "" {
		http.Error(w, "file path required", http.StatusBadRequest)
		return
	}

	ar := s.openPublished(w, r)
	if ar == nil {
		return
	}
	defer func() { _ = ar.Close() }()

	fileReader, err := ar.Extract(filePath)
	if err != nil {
		if errors.Is(err, archive.ErrFileNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to extract file", "error", err, "path", filePath)
		http.Error(w, "failed to extract file", http.StatusInternalServerError)
		return
	}
	defer func() { _ = fileReader.Close() }()

	w.Header().Set("Content-Type", detectContentType(filePath))

	_, filename := path.Split(filePath)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))

	_, _ = io.Copy(w, fileReader)
}

// detectContentType returns an appropriate content type based on file extension.
func detectContentType(filename string) string {
	ext := strings.ToLower(path.Ext(filename))

	switch ext {
	case ".txt", ".md", ".markdown", ".lock":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".yaml", ".yml":
		return "text/yaml; charset=utf-8"
	case ".toml", ".orig":
		return "text/toml; charset=utf-8"
	case ".rs":
		return "text/x-rust; charset=utf-8"
	case ".c", ".h":
		return "text/x-c; charset=utf-8"
	case ".sh":
		return "text/x-shellscript; charset=utf-8"
	case ".png":
		return "image/png"
	case ".svg":
		return "image/svg+xml"
	default:
		if isLikelyText(filename) {
			return "text/plain; charset=utf-8"
		}
		return "application/octet-stream"
	}
}

// isLikelyText checks if a filename suggests it's a text file.
func isLikelyText(filename string) bool {
	base := strings.ToLower(path.Base(filename))

	// Common text files without extensions
	textFiles := []string{
		"readme", "license", "license-mit", "license-apache",
		"copying", "authors", "changelog", ".gitignore", ".cargo_vcs_info",
	}

	for _, tf := range textFiles {
		if base == tf || strings.HasPrefix(base, tf+".") {
			return true
		}
	}

	return false
}
