package stream

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartWriter_Format(t *testing.T) {
	var buf bytes.Buffer
	w := NewPartWriter(&buf)

	require.NoError(t, w.WritePart(Part{ContentType: JPEGContentType, Body: []byte("AAA")}))
	require.NoError(t, w.WritePart(Part{ContentType: JPEGContentType, Body: []byte("BB")}))

	want := "--frame\r\nContent-Type: image/jpeg\r\n\r\nAAA\r\n" +
		"--frame\r\nContent-Type: image/jpeg\r\n\r\nBB\r\n"
	assert.Equal(t, want, buf.String())
}

func TestPartWriter_FlushesHTTPResponses(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewPartWriter(rec)

	require.NoError(t, w.WritePart(Part{ContentType: JPEGContentType, Body: []byte{1}}))
	assert.True(t, rec.Flushed)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestPartWriter_PropagatesWriteErrors(t *testing.T) {
	w := NewPartWriter(failingWriter{})
	assert.Error(t, w.WritePart(Part{Body: []byte{1}}))
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", MediaType)
}
