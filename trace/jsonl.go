package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
)

// JSONLWriter writes Step records as JSON Lines (one JSON object per line).
// It is safe for concurrent use by multiple goroutines.
type JSONLWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	buf    *bufio.Writer
	closer io.Closer // set only when we own the underlying writer
	closed bool
}

// ErrWriterClosed is returned when WriteStep is called after Close.
var ErrWriterClosed = errors.New("jsonl trace writer is closed")

func newJSONLWriter(w io.Writer, size int, closer io.Closer) *JSONLWriter {
	buf := bufio.NewWriterSize(w, size)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	return &JSONLWriter{
		enc:    enc,
		buf:    buf,
		closer: closer,
	}
}

// NewJSONLWriter creates a JSONLWriter on w. Close only flushes; w is not
// closed.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return newJSONLWriter(w, 64*1024, nil)
}

// NewJSONLWriterFile creates (or truncates) path and returns a JSONLWriter
// that owns the file. Passing "-" writes to stdout instead.
func NewJSONLWriterFile(path string) (*JSONLWriter, error) {
	if path == "-" {
		return newJSONLWriter(os.Stdout, 4*1024, nil), nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return newJSONLWriter(f, 64*1024, f), nil
}

// WriteStep encodes a single Step followed by a newline.
func (w *JSONLWriter) WriteStep(step *Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	return w.enc.Encode(step)
}

// Flush forces buffered data to the underlying writer.
func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	return w.buf.Flush()
}

// Close flushes buffered data and closes the file if the writer owns it.
// Calling Close more than once is a no-op.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := w.buf.Flush()
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
	}

	return err
}
