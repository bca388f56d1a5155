// Package transform converts between the public Gemini API format and the format of the
// internal generation backend.
//
// Requests go one way: TranslateRequest wraps a public request into the backend
// envelope and fills in configured defaults. Responses go the other way: ExtractResponse
// and TransformStreamLine unwrap backend bodies and remove fields the public API does
// not define. Every function here is pure apart from the request id lookup, and safe to
// call concurrently.
package transform

import (
	"github.com/zalbiraw/antigravity/internal/auth"
	"github.com/zalbiraw/antigravity/internal/config"
	"github.com/zalbiraw/antigravity/pkg/types"
)

const defaultRole = "user"

// ConfigProvider supplies the defaults applied to requests. It is consulted on every
// translation, so implementations may change their answers over time.
type ConfigProvider interface {
	GenerationDefaults() config.Defaults
	DefaultInstruction() string
}

// IDGenerator returns a new unique request id. It must be safe for concurrent use.
type IDGenerator func() string

// Transformer handles the conversion of public requests into backend requests.
type Transformer struct {
	config ConfigProvider
	newID  IDGenerator
}

// New creates a new transformer with the given configuration and id source.
func New(cfg ConfigProvider, newID IDGenerator) *Transformer {
	return &Transformer{
		config: cfg,
		newID:  newID,
	}
}

// TranslateRequest converts a public generateContent request to the backend format.
//
// The model name is passed through unchanged. Sampling parameters missing from the
// request are taken from the configuration, the system instruction is normalized to a
// role plus parts, safetySettings are dropped and every other member of the request is
// forwarded verbatim. The id generator is called exactly once.
func (t *Transformer) TranslateRequest(model string, req types.GenerateContentRequest, token auth.Token) types.InternalRequest {
	contents := req.Contents
	if len(contents) == 0 {
		contents = []byte("[]")
	}

	return types.InternalRequest{
		Project:   token.ProjectID,
		RequestID: t.newID(),
		Request: types.InternalInnerRequest{
			Contents:          contents,
			SystemInstruction: normalizeSystemInstruction(req.SystemInstruction, t.config.DefaultInstruction()),
			GenerationConfig:  mergeGenerationConfig(req.GenerationConfig, t.config.GenerationDefaults()),
			SessionID:         token.SessionID,
			Extra:             req.Extra.Clone(),
		},
		Model:     model,
		UserAgent: types.UserAgent,
	}
}

// mergeGenerationConfig resolves each sampling field on its own: the request value if
// set, else the configured default. candidateCount falls back to 1. Unrecognized
// members of the request config are kept and win over the resolved fields when
// serialized.
func mergeGenerationConfig(in *types.GenerationConfig, d config.Defaults) types.GenerationConfig {
	if in == nil {
		in = &types.GenerationConfig{}
	}

	return types.GenerationConfig{
		TopP:            valueOr(in.TopP, d.TopP),
		TopK:            valueOr(in.TopK, d.TopK),
		Temperature:     valueOr(in.Temperature, d.Temperature),
		MaxOutputTokens: valueOr(in.MaxOutputTokens, d.MaxTokens),
		CandidateCount:  valueOr(in.CandidateCount, 1),
		Extra:           in.Extra.Clone(),
	}
}

// normalizeSystemInstruction always yields {role, parts}. The role defaults to "user";
// parts default to a single part holding the configured instruction text, which may
// be empty.
func normalizeSystemInstruction(in *types.SystemInstruction, defaultText string) types.SystemInstruction {
	role := defaultRole
	if in != nil && in.Role != nil {
		role = *in.Role
	}

	var parts []types.Part
	if in != nil && in.Parts != nil {
		parts = make([]types.Part, len(in.Parts))
		copy(parts, in.Parts)
	} else {
		parts = []types.Part{types.TextPart(defaultText)}
	}

	return types.SystemInstruction{
		Role:  &role,
		Parts: parts,
	}
}

func valueOr[T any](v *T, fallback T) *T {
	if v != nil {
		x := *v
		return &x
	}
	return &fallback
}
