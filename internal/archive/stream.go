package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/klauspost/compress/gzip"
)

// Entry is one member of an archive being walked.
type Entry struct {
	// Header is the entry's own copy and may be modified before the entry is
	// appended to a Writer.
	Header *tar.Header

	// Path is the entry name as stored in the archive.
	Path string

	// Body streams the entry content. It is only valid until the callback
	// passed to Walk returns.
	Body io.Reader
}

// Walk decompresses a .crate stream and calls fn for every entry in archive
// order. The first error returned by fn stops the walk and is returned
// unchanged.
func Walk(r io.Reader, fn func(*Entry) error) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("walk entry from archive: %w", err)
		}

		if err := fn(&Entry{Header: hdr, Path: hdr.Name, Body: tr}); err != nil {
			return err
		}
	}
}

// Writer appends entries to a gzip-compressed tar stream.
type Writer struct {
	gz *gzip.Writer
	tw *tar.Writer
}

// NewWriter returns a Writer compressing at the best compression level.
func NewWriter(w io.Writer) (*Writer, error) {
	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip stream: %w", err)
	}
	return &Writer{gz: gz, tw: tar.NewWriter(gz)}, nil
}

// Append writes hdr under name followed by body. hdr.Size must already match
// the number of bytes body yields; the header checksum is computed on write.
func (w *Writer) Append(hdr *tar.Header, name string, body io.Reader) error {
	h := *hdr
	h.Name = name
	if len(h.PAXRecords) > 0 {
		// Long names read from a PAX header come back as a "path" record,
		// which would otherwise shadow the new name.
		h.PAXRecords = maps.Clone(h.PAXRecords)
		delete(h.PAXRecords, "path")
		delete(h.PAXRecords, "size")
	}

	if err := w.tw.WriteHeader(&h); err != nil {
		if h.Format == tar.FormatUnknown {
			return fmt.Errorf("write header for %s: %w", name, err)
		}
		// The format the reader detected may not be able to hold the new
		// name; let the writer choose one that can.
		h.Format = tar.FormatUnknown
		if err := w.tw.WriteHeader(&h); err != nil {
			return fmt.Errorf("write header for %s: %w", name, err)
		}
	}

	n, err := io.Copy(w.tw, body)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if h.Typeflag == tar.TypeReg && n != h.Size {
		return fmt.Errorf("write %s: header declares %d bytes but body had %d", name, h.Size, n)
	}
	return nil
}

// Close flushes the tar trailer and the gzip stream. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	return errors.Join(w.tw.Close(), w.gz.Close())
}
