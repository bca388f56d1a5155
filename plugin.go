// Package antigravity is an HTTP middleware that exposes the public Gemini API on top of
// the internal Antigravity generation backend.
//
// The middleware intercepts Gemini generateContent, streamGenerateContent and
// models.list calls, translates them to the backend's v1internal format, signs them
// and hands them to the next handler (normally a reverse proxy to the backend). The
// backend's responses are translated back before they reach the client. Every other
// request is passed to the next handler unchanged.
package antigravity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zalbiraw/antigravity/internal/auth"
	"github.com/zalbiraw/antigravity/internal/config"
	"github.com/zalbiraw/antigravity/internal/logger"
	"github.com/zalbiraw/antigravity/internal/metrics"
	"github.com/zalbiraw/antigravity/internal/requestid"
	"github.com/zalbiraw/antigravity/internal/transform"
	"github.com/zalbiraw/antigravity/pkg/types"
)

// Backend paths.
const (
	generatePath    = "/v1internal:generateContent"
	streamPath      = "/v1internal:streamGenerateContent"
	fetchModelsPath = "/v1internal:fetchAvailableModels"
	openAIModels    = "/v1/models"

	methodGenerate = "generateContent"
	methodStream   = "streamGenerateContent"
)

// Proxy represents the main plugin instance that handles request proxying.
type Proxy struct {
	next          http.Handler
	name          string
	transformer   *transform.Transformer
	authenticator *auth.Authenticator
	metrics       *metrics.Metrics
	log           *zap.Logger
	now           func() time.Time
}

// Option customizes a Proxy.
type Option func(*proxyOptions)

type proxyOptions struct {
	source        *config.Source
	authenticator *auth.Authenticator
	metrics       *metrics.Metrics
	log           *zap.Logger
	newID         transform.IDGenerator
	now           func() time.Time
}

// WithSource serves generation defaults from a live configuration source instead of
// the static configuration passed to New.
func WithSource(s *config.Source) Option {
	return func(o *proxyOptions) { o.source = s }
}

// WithAuthenticator replaces the authenticator built from the configuration.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(o *proxyOptions) { o.authenticator = a }
}

// WithMetrics records traffic on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *proxyOptions) { o.metrics = m }
}

// WithLogger replaces the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *proxyOptions) { o.log = l }
}

// WithIDGenerator replaces the request id generator.
func WithIDGenerator(g transform.IDGenerator) Option {
	return func(o *proxyOptions) { o.newID = g }
}

// WithClock replaces the clock used for model creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *proxyOptions) { o.now = now }
}

// New creates a new Proxy plugin instance.
// It validates the configuration and initializes all necessary components.
func New(ctx context.Context, next http.Handler, cfg *config.Config, name string, opts ...Option) (http.Handler, error) {
	o := proxyOptions{
		newID: requestid.New,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.WithContext(ctx)
	}
	log := o.log.With(zap.String("plugin", name))

	log.Info("Initializing antigravity proxy plugin")

	if err := cfg.Validate(); err != nil {
		log.Error("Configuration validation failed", zap.Error(err))
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if o.source == nil {
		o.source = config.NewSource(cfg)
	}
	if o.authenticator == nil {
		o.authenticator = auth.New(cfg)
	}

	log.Info("Plugin initialization completed successfully",
		zap.String("project", cfg.ProjectID),
		zap.Bool("signing", cfg.AccessToken != ""),
	)
	return &Proxy{
		next:          next,
		name:          name,
		transformer:   transform.New(o.source, o.newID),
		authenticator: o.authenticator,
		metrics:       o.metrics,
		log:           log,
		now:           o.now,
	}, nil
}

// ServeHTTP implements the http.Handler interface and processes incoming requests.
func (p *Proxy) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		if model, method, ok := parseGeneratePath(req.URL.Path); ok {
			switch method {
			case methodGenerate:
				p.handleGenerate(rw, req, model)
				return
			case methodStream:
				p.handleStream(rw, req, model)
				return
			}
		}
	case http.MethodGet:
		if req.URL.Path == openAIModels {
			p.handleModels(rw, req, metrics.EndpointOpenAI)
			return
		}
		if strings.HasSuffix(req.URL.Path, "/models") {
			p.handleModels(rw, req, metrics.EndpointModels)
			return
		}
	}

	p.requestLogger(req).Debug("Request filtered out", zap.String("method", req.Method), zap.String("path", req.URL.Path))
	p.next.ServeHTTP(rw, req)
}

// requestLogger returns the plugin logger tagged with the trace id carried by req.
func (p *Proxy) requestLogger(req *http.Request) *zap.Logger {
	if traceID := logger.GetTraceID(req.Context()); traceID != "" {
		return p.log.With(zap.String("trace_id", traceID))
	}
	return p.log
}

// parseGeneratePath splits ".../models/{model}:{method}" into model and method.
func parseGeneratePath(path string) (model, method string, ok bool) {
	i := strings.LastIndex(path, "/models/")
	if i < 0 {
		return "", "", false
	}
	rest := path[i+len("/models/"):]
	j := strings.LastIndex(rest, ":")
	if j <= 0 || j == len(rest)-1 {
		return "", "", false
	}
	return rest[:j], rest[j+1:], true
}

func (p *Proxy) handleGenerate(rw http.ResponseWriter, req *http.Request, model string) {
	start := time.Now()
	log := p.requestLogger(req).With(zap.String("model", model), zap.String("endpoint", metrics.EndpointGenerate))

	out, err := p.translate(req, log, model, generatePath, "")
	if err != nil {
		p.fail(rw, log, err)
		p.metrics.ObserveRequest(metrics.EndpointGenerate, statusOf(err), time.Since(start))
		return
	}

	buf := newResponseBuffer()
	p.next.ServeHTTP(buf, out)

	status := buf.statusCode()
	defer func() { p.metrics.ObserveRequest(metrics.EndpointGenerate, status, time.Since(start)) }()

	if !buf.ok() {
		log.Warn("Backend returned an error", zap.Int("status", status))
		buf.writeTo(rw)
		return
	}

	body, err := transform.ExtractResponseBody(buf.body.Bytes())
	if err != nil {
		log.Warn("Backend response is not JSON, forwarding unchanged", zap.Error(err))
		buf.writeTo(rw)
		return
	}

	buf.writeJSON(rw, body)
	log.Debug("Request completed", zap.Duration("elapsed", time.Since(start)))
}

func (p *Proxy) handleStream(rw http.ResponseWriter, req *http.Request, model string) {
	start := time.Now()
	log := p.requestLogger(req).With(zap.String("model", model), zap.String("endpoint", metrics.EndpointStream))

	out, err := p.translate(req, log, model, streamPath, "alt=sse")
	if err != nil {
		p.fail(rw, log, err)
		p.metrics.ObserveRequest(metrics.EndpointStream, statusOf(err), time.Since(start))
		return
	}

	sw := newStreamWriter(rw, p.metrics)
	p.next.ServeHTTP(sw, out)
	if err := sw.finish(); err != nil {
		log.Warn("Failed to write final stream line", zap.Error(err))
	}

	if sw.passthrough {
		log.Warn("Backend returned an error", zap.Int("status", sw.statusCode()))
	}
	p.metrics.ObserveRequest(metrics.EndpointStream, sw.statusCode(), time.Since(start))
	log.Debug("Stream completed", zap.Duration("elapsed", time.Since(start)))
}

type fetchModelsRequest struct {
	Project string `json:"project"`
}

func (p *Proxy) handleModels(rw http.ResponseWriter, req *http.Request, endpoint string) {
	start := time.Now()
	log := p.requestLogger(req).With(zap.String("endpoint", endpoint))

	body, err := json.Marshal(fetchModelsRequest{Project: p.authenticator.Token().ProjectID})
	if err != nil {
		p.fail(rw, log, internalError(fmt.Errorf("failed to marshal models request: %w", err)))
		return
	}

	out := p.outbound(req, fetchModelsPath, "", body)
	if err := p.authenticator.SignRequest(out); err != nil {
		p.fail(rw, log, internalError(err))
		p.metrics.ObserveRequest(endpoint, http.StatusInternalServerError, time.Since(start))
		return
	}

	buf := newResponseBuffer()
	p.next.ServeHTTP(buf, out)

	status := buf.statusCode()
	defer func() { p.metrics.ObserveRequest(endpoint, status, time.Since(start)) }()

	if !buf.ok() {
		log.Warn("Backend returned an error", zap.Int("status", status))
		buf.writeTo(rw)
		return
	}

	var reg types.ModelRegistry
	if err := json.Unmarshal(buf.body.Bytes(), &reg); err != nil {
		log.Warn("Backend model registry is not a JSON object, forwarding unchanged", zap.Error(err))
		buf.writeTo(rw)
		return
	}

	var result any
	if endpoint == metrics.EndpointOpenAI {
		result = transform.BuildOpenAIModelList(reg, p.now().Unix())
	} else {
		result = transform.BuildModelCatalog(reg)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		status = http.StatusInternalServerError
		p.fail(rw, log, internalError(fmt.Errorf("failed to marshal model list: %w", err)))
		return
	}
	buf.writeJSON(rw, encoded)
	log.Debug("Model list served", zap.Int("models", len(reg.IDs())))
}

// translate reads the public request from req and returns the signed backend request.
func (p *Proxy) translate(req *http.Request, log *zap.Logger, model, path, query string) (*http.Request, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, badRequest(fmt.Errorf("failed to read request body: %w", err))
	}
	if closeErr := req.Body.Close(); closeErr != nil {
		return nil, badRequest(fmt.Errorf("failed to close request body: %w", closeErr))
	}

	var public types.GenerateContentRequest
	if err := json.Unmarshal(body, &public); err != nil {
		return nil, badRequest(fmt.Errorf("failed to parse request: %w", err))
	}

	internal := p.transformer.TranslateRequest(model, public, p.authenticator.Token())
	internalBody, err := json.Marshal(internal)
	if err != nil {
		return nil, internalError(fmt.Errorf("failed to marshal backend request: %w", err))
	}
	log.Debug("Request translated",
		zap.String("request_id", internal.RequestID),
		zap.Int("size", len(internalBody)),
	)

	out := p.outbound(req, path, query, internalBody)
	if err := p.authenticator.SignRequest(out); err != nil {
		return nil, internalError(err)
	}
	return out, nil
}

// outbound builds the backend request from the client request.
func (p *Proxy) outbound(req *http.Request, path, query string, body []byte) *http.Request {
	out := req.Clone(req.Context())
	out.Method = http.MethodPost
	out.URL.Path = path
	out.URL.RawPath = ""
	out.URL.RawQuery = query
	out.RequestURI = ""
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	// Public API credentials are not meant for the backend, and the response has to
	// be readable here.
	out.Header.Del("X-Goog-Api-Key")
	out.Header.Del("Authorization")
	out.Header.Del("Accept-Encoding")
	out.Header.Del("Content-Length")
	out.Header.Set("Content-Type", "application/json")
	return out
}

// CreateConfig creates the default plugin configuration.
// This function is required by Traefik's plugin system.
func CreateConfig() *config.Config {
	return config.New()
}
