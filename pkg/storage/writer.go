package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned when writing to a closed Writer
var ErrClosed = errors.New("storage: writer is closed")

type appendFile interface {
	io.Writer
	Sync() error
	Truncate(size int64) error
	Close() error
}

// Writer appends CSV rows to a file. Rows are buffered until Flush, which
// appends them in one write and syncs. A failed flush truncates the file back
// to its last committed size so no partial row is left behind.
type Writer struct {
	path      string
	columns   []string
	file      appendFile
	buf       bytes.Buffer
	enc       *csv.Writer
	committed int64
	pending   int
	written   int
	closed    bool
	mu        sync.Mutex
}

// Open opens path for appending, creating it and its directory if needed. The
// header row is written only when the file is new or empty.
func Open(path string, columns []string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat output file: %w", err)
	}

	w := &Writer{
		path:      path,
		columns:   append([]string(nil), columns...),
		file:      file,
		committed: info.Size(),
	}
	w.enc = csv.NewWriter(&w.buf)

	if info.Size() == 0 {
		if err := w.enc.Write(w.columns); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to encode header: %w", err)
		}
		if err := w.flushLocked(); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	return w, nil
}

// Path returns the output file path
func (w *Writer) Path() string {
	return w.path
}

// WriteRow buffers one row. The row must have one value per column.
func (w *Writer) WriteRow(row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if len(row) != len(w.columns) {
		return fmt.Errorf("row has %d fields, expected %d", len(row), len(w.columns))
	}
	if err := w.enc.Write(row); err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	w.pending++
	return nil
}

// Flush appends all buffered rows and syncs the file
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	w.enc.Flush()
	if err := w.enc.Error(); err != nil {
		w.discardLocked()
		return fmt.Errorf("failed to encode rows: %w", err)
	}
	if w.buf.Len() == 0 {
		return nil
	}

	data := w.buf.Bytes()
	n, err := w.file.Write(data)
	if err == nil && n < len(data) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(data))
	}
	if err == nil {
		err = w.file.Sync()
	}
	if err != nil {
		if terr := w.file.Truncate(w.committed); terr != nil {
			err = errors.Join(err, fmt.Errorf("failed to roll back partial write: %w", terr))
		}
		w.discardLocked()
		return fmt.Errorf("failed to append rows to %s: %w", w.path, err)
	}

	w.committed += int64(n)
	w.written += w.pending
	w.pending = 0
	w.buf.Reset()
	return nil
}

// Discard drops rows buffered since the last Flush
func (w *Writer) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.discardLocked()
}

func (w *Writer) discardLocked() {
	w.buf.Reset()
	w.enc = csv.NewWriter(&w.buf)
	w.pending = 0
}

// RowsWritten returns the number of data rows committed by this Writer
func (w *Writer) RowsWritten() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close flushes pending rows and closes the file. It is safe to call more
// than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.flushLocked()
	if err := w.file.Close(); err != nil {
		return errors.Join(flushErr, fmt.Errorf("failed to close output file: %w", err))
	}
	return flushErr
}
