// Package logbuf buffers log output while the terminal belongs to the
// TUI, for replay once it exits.
package logbuf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Writer is an io.Writer that accumulates everything written to it.
// Safe for concurrent use; zerolog writes from multiple goroutines.
type Writer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// Len returns the number of buffered bytes.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Len()
}

// Flush replays the buffered lines into dst and resets the buffer.
// Lines are forwarded one at a time so dst can be a formatting writer
// like zerolog's ConsoleWriter, which expects one event per Write.
func (w *Writer) Flush(dst io.Writer) error {
	w.mu.Lock()
	data := w.buf.Bytes()
	w.buf = bytes.Buffer{}
	w.mu.Unlock()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if _, err := dst.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("flush buffered logs: %w", err)
		}
	}
	return scanner.Err()
}
