package stream

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// Boundary separates the parts of the multiplexed stream.
const Boundary = "frame"

// MediaType is the Content-Type of the whole stream response.
const MediaType = "multipart/x-mixed-replace; boundary=" + Boundary

// Part is one boundary-delimited chunk of the stream: one encoded frame.
type Part struct {
	Seq         uint64
	ContentType string
	Body        []byte
}

// PartWriter frames parts as
//
//	--frame\r\nContent-Type: image/jpeg\r\n\r\n<body>\r\n
//
// The stream has no closing boundary; it ends when the connection does.
type PartWriter struct {
	w   io.Writer
	buf bytes.Buffer
}

// NewPartWriter wraps w. When w is an http.Flusher every part is flushed.
func NewPartWriter(w io.Writer) *PartWriter {
	return &PartWriter{w: w}
}

// WritePart writes p with a single Write call and flushes it.
func (pw *PartWriter) WritePart(p Part) error {
	pw.buf.Reset()
	fmt.Fprintf(&pw.buf, "--%s\r\nContent-Type: %s\r\n\r\n", Boundary, p.ContentType)
	pw.buf.Write(p.Body)
	pw.buf.WriteString("\r\n")

	if _, err := pw.w.Write(pw.buf.Bytes()); err != nil {
		return err
	}
	if flusher, ok := pw.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
