// Package wire implements the Content-Length framed JSON message stream used
// on every markview process boundary: surface transports and remote engines
// both speak it.
//
// Each message is a JSON body preceded by an RFC-822 style header block:
//
//	Content-Length: <n>\r\n
//	\r\n
//	<n bytes of JSON>
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// readBufferSize is the buffered reader size for inbound streams.
const readBufferSize = 64 * 1024

// Reader reads framed JSON messages from a stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a frame reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, readBufferSize)}
}

// ReadFrame reads one framed message body.
func (r *Reader) ReadFrame() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				length, err := strconv.Atoi(strings.TrimSpace(parts[1]))
				if err == nil {
					contentLength = length
				}
			}
		}
		// Other headers are ignored.
	}

	if contentLength <= 0 {
		return nil, ErrMissingLength
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, fmt.Errorf("wire: read body: %w", err)
	}
	return body, nil
}

// Decode reads one frame and unmarshals it into v.
func (r *Reader) Decode(v any) error {
	body, err := r.ReadFrame()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("wire: unmarshal frame: %w", err)
	}
	return nil
}

// Writer writes framed JSON messages to a stream.
// Safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a frame writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame marshals v and writes it as one framed message.
func (w *Writer) WriteFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: marshal frame: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := io.WriteString(w.w, header); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("wire: write body: %w", err)
	}
	return nil
}
