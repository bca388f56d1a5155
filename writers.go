package antigravity

import (
	"bytes"
	"net/http"

	"github.com/zalbiraw/antigravity/internal/metrics"
	"github.com/zalbiraw/antigravity/internal/transform"
)

// responseBuffer captures a complete upstream response so it can be rewritten.
type responseBuffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: make(http.Header)}
}

func (b *responseBuffer) Header() http.Header {
	return b.header
}

func (b *responseBuffer) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	b.WriteHeader(http.StatusOK)
	return b.body.Write(p)
}

// Flush is a no-op; the body is only used once the upstream handler returns.
func (b *responseBuffer) Flush() {}

func (b *responseBuffer) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *responseBuffer) ok() bool {
	code := b.statusCode()
	return code >= 200 && code < 300
}

// writeTo sends the captured response unchanged.
func (b *responseBuffer) writeTo(rw http.ResponseWriter) {
	copyHeader(rw.Header(), b.header)
	rw.WriteHeader(b.statusCode())
	_, _ = rw.Write(b.body.Bytes())
}

// writeJSON sends body with the captured status and headers. Length and encoding
// headers describe the upstream body and are dropped.
func (b *responseBuffer) writeJSON(rw http.ResponseWriter, body []byte) {
	copyHeader(rw.Header(), b.header)
	rw.Header().Del("Content-Length")
	rw.Header().Del("Content-Encoding")
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(b.statusCode())
	_, _ = rw.Write(body)
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append([]string(nil), vv...)
	}
}

// streamWriter rewrites a server-sent event stream line by line as it is written.
// Each complete line goes through transform.TransformStreamLine and is flushed to the
// client right away. A trailing partial line is held until more data arrives or
// finish is called. Error responses are forwarded without changes.
type streamWriter struct {
	rw      http.ResponseWriter
	metrics *metrics.Metrics

	status      int
	passthrough bool
	pending     []byte
}

func newStreamWriter(rw http.ResponseWriter, m *metrics.Metrics) *streamWriter {
	return &streamWriter{rw: rw, metrics: m}
}

func (w *streamWriter) Header() http.Header {
	return w.rw.Header()
}

func (w *streamWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	if code < 200 || code >= 300 {
		w.passthrough = true
	} else {
		w.rw.Header().Del("Content-Length")
	}
	w.rw.WriteHeader(code)
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	if w.passthrough {
		return w.rw.Write(p)
	}

	w.pending = append(w.pending, p...)
	wrote := false
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		if err := w.writeLine(w.pending[:i], true); err != nil {
			return 0, err
		}
		w.pending = w.pending[i+1:]
		wrote = true
	}
	if len(w.pending) == 0 {
		w.pending = nil
	}
	if wrote {
		w.Flush()
	}
	return len(p), nil
}

func (w *streamWriter) writeLine(line []byte, newline bool) error {
	cr := bytes.HasSuffix(line, []byte("\r"))
	if cr {
		line = line[:len(line)-1]
	}

	out := transform.TransformStreamLine(string(line))
	if cr {
		out += "\r"
	}
	if newline {
		out += "\n"
	}
	if _, err := w.rw.Write([]byte(out)); err != nil {
		return err
	}
	w.metrics.StreamLine()
	return nil
}

// Flush sends buffered data to the client.
func (w *streamWriter) Flush() {
	_ = http.NewResponseController(w.rw).Flush()
}

// finish writes a trailing line that was not terminated by a newline.
func (w *streamWriter) finish() error {
	if w.passthrough || len(w.pending) == 0 {
		return nil
	}
	line := w.pending
	w.pending = nil
	if err := w.writeLine(line, false); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func (w *streamWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
