package antigravity

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/zalbiraw/antigravity/internal/config"
)

// backendCall is one request seen by fakeBackend.
type backendCall struct {
	method string
	path   string
	query  string
	header http.Header
	body   []byte
}

// fakeBackend stands in for the reverse proxy to the internal backend. It records
// every request and replies with a canned response, written in chunks.
type fakeBackend struct {
	mu    sync.Mutex
	calls []backendCall

	status int
	header map[string]string
	chunks []string
}

func (b *fakeBackend) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)

	b.mu.Lock()
	b.calls = append(b.calls, backendCall{
		method: req.Method,
		path:   req.URL.Path,
		query:  req.URL.RawQuery,
		header: req.Header.Clone(),
		body:   body,
	})
	b.mu.Unlock()

	for k, v := range b.header {
		rw.Header().Set(k, v)
	}
	if b.status != 0 {
		rw.WriteHeader(b.status)
	}
	for _, chunk := range b.chunks {
		_, _ = rw.Write([]byte(chunk))
	}
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *fakeBackend) lastCall(t *testing.T) backendCall {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.calls, "backend was not called")
	return b.calls[len(b.calls)-1]
}

func newTestConfig() *config.Config {
	cfg := config.New()
	cfg.ProjectID = "test-project"
	cfg.SessionID = "-42"
	cfg.AccessToken = "test-token"
	return cfg
}

func fixedRequestID() string { return "agent-fixed" }

func newTestProxy(t *testing.T, next http.Handler, cfg *config.Config, opts ...Option) http.Handler {
	t.Helper()
	opts = append([]Option{WithIDGenerator(fixedRequestID)}, opts...)
	handler, err := New(t.Context(), next, cfg, "antigravity-test", opts...)
	require.NoError(t, err)
	return handler
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("token endpoint unavailable")
}
