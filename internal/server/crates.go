package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/git-pkgs/repackage/internal/crate"
	"github.com/git-pkgs/repackage/internal/metrics"
	"github.com/git-pkgs/repackage/internal/repackage"
	"github.com/git-pkgs/repackage/internal/storage"
)

// handleRepackage repackages the .crate in the request body.
// POST /crates/{filename}?name=<new>[&old=<hint>][&publish=true]
//
// The output is buffered in full before anything is written, so a crate that
// fails halfway never produces a partial 200 response.
func (s *Server) handleRepackage(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	q := r.URL.Query()
	newName := q.Get("name")
	oldName := q.Get("old")
	publish := q.Get("publish") == "true"

	if publish && s.storage == nil {
		http.Error(w, "publishing requires storage to be configured", http.StatusBadRequest)
		return
	}
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	logger := s.logger.With("request_id", GetRequestID(r.Context()), "filename", filename)

	start := time.Now()
	var (
		buf    bytes.Buffer
		rename *crate.Rename
		res    *repackage.Result
		err    error
	)
	if filename == "" || !utf8.ValidString(filename) {
		err = fmt.Errorf("%w: %q", repackage.ErrInvalidInputPath, filename)
	} else {
		rename, err = crate.NewRename(filename, oldName, newName)
	}
	if err == nil {
		res, err = repackage.Transcode(&buf, r.Body, rename, repackage.WithLogger(logger))
	}
	metrics.RecordRun(repackage.Kind(err), time.Since(start))

	if err != nil {
		status := statusFor(err)
		logger.Warn("repackaging failed", "error", err, "kind", repackage.Kind(err), "status", status)
		http.Error(w, err.Error(), status)
		return
	}

	if publish {
		a, err := storage.Publish(r.Context(), s.storage, res.NewName, res.Version, rename.NewFilename, bytes.NewReader(buf.Bytes()), false)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, storage.ErrAlreadyPublished) {
				status = http.StatusConflict
			}
			logger.Error("publishing failed", "error", err)
			http.Error(w, err.Error(), status)
			return
		}
		logger.Info("published crate",
			"path", a.Path,
			"purl", a.PURL,
			"sha256", a.SHA256,
			"size", a.Size)
		w.Header().Set("X-Package-URL", a.PURL)
		w.Header().Set("X-Checksum-Sha256", a.SHA256)
	}

	logger.Info("repackaged crate",
		"from", res.OldName,
		"to", res.NewName,
		"version", res.Version,
		"rewrites", res.Rewrites)

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rename.NewFilename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Rewritten-References", strconv.Itoa(res.Rewrites))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// statusFor maps a repackaging error to an HTTP status. Crates that are well
// formed but cannot be renamed get 422; every other failure is blamed on the
// request.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch repackage.Kind(err) {
	case "missing_manifest", "workspace_not_supported":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// handleDownload serves a published crate.
// GET /crates/{name}/{version}/download
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name, version, ok := crateParams(w, r)
	if !ok {
		return
	}
	filename := name + "-" + version + ".crate"

	start := time.Now()
	rc, err := s.storage.Open(r.Context(), storage.ArtifactPath(storage.Ecosystem, name, version, filename))
	metrics.RecordStorageOperation("read", time.Since(start))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "crate not found", http.StatusNotFound)
			return
		}
		metrics.RecordStorageError("read")
		s.logger.Error("failed to read crate from storage", "error", err)
		http.Error(w, "failed to read crate", http.StatusInternalServerError)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = io.Copy(w, rc)
}

// crateParams returns the name and version route parameters, writing a 400
// response if either could escape the crate's storage prefix.
func crateParams(w http.ResponseWriter, r *http.Request) (name, version string, ok bool) {
	name = chi.URLParam(r, "name")
	version = chi.URLParam(r, "version")
	if crate.ValidateName(name) != nil || version == "" || version == ".." || version == "." || strings.ContainsAny(version, `/\`) {
		http.Error(w, "invalid crate name or version", http.StatusBadRequest)
		return "", "", false
	}
	return name, version, true
}
