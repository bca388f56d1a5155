// Package types defines the wire structures exchanged with public Gemini API clients and
// with the internal generation backend.
//
// Every object type keeps the members it does not model in an Extensions bag and writes
// them back when serialized. Members whose JSON type does not match the typed field
// (for example "topP": null) are kept in the bag as well, so a decode/encode round trip
// never changes the meaning of a document.
package types

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// UserAgent identifies this adapter to the internal backend.
const UserAgent = "antigravity"

// GenerateContentRequest is a public generateContent / streamGenerateContent request body.
type GenerateContentRequest struct {
	// Contents is the conversation so far. It is opaque to the adapter and forwarded verbatim.
	Contents json.RawMessage

	// GenerationConfig holds the sampling parameters. Nil when absent or not an object.
	GenerationConfig *GenerationConfig

	// SystemInstruction is the caller supplied instruction. Nil when absent or not an object.
	SystemInstruction *SystemInstruction

	// SafetySettings is read but never forwarded: the internal backend has no equivalent.
	SafetySettings json.RawMessage

	// Extra holds every other top-level member.
	Extra Extensions
}

// UnmarshalJSON decodes a request body, which must be a JSON object.
func (r *GenerateContentRequest) UnmarshalJSON(data []byte) error {
	*r = GenerateContentRequest{}
	var err error
	ok := eachMember(data, func(key string, value gjson.Result) {
		if err != nil {
			return
		}
		switch key {
		case "contents":
			r.Contents = raw(value)
		case "generationConfig":
			if value.IsObject() {
				r.GenerationConfig = &GenerationConfig{}
				err = json.Unmarshal([]byte(value.Raw), r.GenerationConfig)
			}
		case "systemInstruction":
			if value.IsObject() {
				r.SystemInstruction = &SystemInstruction{}
				err = json.Unmarshal([]byte(value.Raw), r.SystemInstruction)
			}
		case "safetySettings":
			r.SafetySettings = raw(value)
		default:
			r.Extra.Set(key, raw(value))
		}
	})
	if !ok {
		return fmt.Errorf("%w: generate content request", ErrNotObject)
	}
	return err
}

// GenerationConfig holds the sampling parameters of a request.
type GenerationConfig struct {
	// TopP is the nucleus sampling threshold.
	TopP *float64

	// TopK limits sampling to the K most likely tokens.
	TopK *int

	// Temperature controls randomness.
	Temperature *float64

	// MaxOutputTokens caps the length of each candidate.
	MaxOutputTokens *int

	// CandidateCount is the number of alternatives to generate.
	CandidateCount *int

	// Extra holds the remaining members, such as stopSequences or thinkingConfig.
	Extra Extensions
}

// UnmarshalJSON decodes a generationConfig object.
func (g *GenerationConfig) UnmarshalJSON(data []byte) error {
	*g = GenerationConfig{}
	ok := eachMember(data, func(key string, value gjson.Result) {
		switch key {
		case "topP":
			if f, ok := asFloat(value); ok {
				g.TopP = &f
				return
			}
		case "topK":
			if n, ok := asInt(value); ok {
				g.TopK = &n
				return
			}
		case "temperature":
			if f, ok := asFloat(value); ok {
				g.Temperature = &f
				return
			}
		case "maxOutputTokens":
			if n, ok := asInt(value); ok {
				g.MaxOutputTokens = &n
				return
			}
		case "candidateCount":
			if n, ok := asInt(value); ok {
				g.CandidateCount = &n
				return
			}
		}
		g.Extra.Set(key, raw(value))
	})
	if !ok {
		return fmt.Errorf("%w: generationConfig", ErrNotObject)
	}
	return nil
}

// MarshalJSON writes the set fields followed by the extension members.
func (g GenerationConfig) MarshalJSON() ([]byte, error) {
	var members []member
	if g.TopP != nil {
		members = append(members, member{"topP", *g.TopP})
	}
	if g.TopK != nil {
		members = append(members, member{"topK", *g.TopK})
	}
	if g.Temperature != nil {
		members = append(members, member{"temperature", *g.Temperature})
	}
	if g.CandidateCount != nil {
		members = append(members, member{"candidateCount", *g.CandidateCount})
	}
	if g.MaxOutputTokens != nil {
		members = append(members, member{"maxOutputTokens", *g.MaxOutputTokens})
	}
	return marshalObject(members, g.Extra)
}

// SystemInstruction is a role plus a list of parts.
type SystemInstruction struct {
	// Role is the author role, normally "user". Nil when absent or empty.
	Role *string

	// Parts are the instruction parts. Nil when absent or not an array.
	Parts []Part

	// Extra holds the remaining members.
	Extra Extensions
}

// UnmarshalJSON decodes a systemInstruction object.
func (s *SystemInstruction) UnmarshalJSON(data []byte) error {
	*s = SystemInstruction{}
	var err error
	ok := eachMember(data, func(key string, value gjson.Result) {
		switch key {
		case "role":
			if role, ok := asString(value); ok && role != "" {
				s.Role = &role
				return
			}
		case "parts":
			if value.IsArray() {
				s.Parts, err = decodeParts(value)
				return
			}
		}
		s.Extra.Set(key, raw(value))
	})
	if !ok {
		return fmt.Errorf("%w: systemInstruction", ErrNotObject)
	}
	return err
}

// MarshalJSON writes role and parts followed by the extension members.
func (s SystemInstruction) MarshalJSON() ([]byte, error) {
	var members []member
	if s.Role != nil {
		members = append(members, member{"role", *s.Role})
	}
	if s.Parts != nil {
		members = append(members, member{"parts", s.Parts})
	}
	return marshalObject(members, s.Extra)
}

// InternalRequest is the envelope the internal backend expects for generation calls.
type InternalRequest struct {
	// Project is the backend project the call is billed to.
	Project string `json:"project,omitempty"`

	// RequestID uniquely identifies this call.
	RequestID string `json:"requestId"`

	// Request is the translated generation request.
	Request InternalInnerRequest `json:"request"`

	// Model is the model id, passed through unchanged.
	Model string `json:"model"`

	// UserAgent is always UserAgent.
	UserAgent string `json:"userAgent"`
}

// InternalInnerRequest is the generation request nested in an InternalRequest.
type InternalInnerRequest struct {
	Contents          json.RawMessage
	SystemInstruction SystemInstruction
	GenerationConfig  GenerationConfig
	SessionID         string

	// Extra carries the public request members that have no dedicated field.
	Extra Extensions
}

// MarshalJSON writes the typed members followed by the passthrough members.
func (r InternalInnerRequest) MarshalJSON() ([]byte, error) {
	contents := r.Contents
	if len(contents) == 0 {
		contents = json.RawMessage("[]")
	}
	members := []member{
		{"contents", contents},
		{"systemInstruction", r.SystemInstruction},
		{"generationConfig", r.GenerationConfig},
	}
	if r.SessionID != "" {
		members = append(members, member{"sessionId", r.SessionID})
	}
	return marshalObject(members, r.Extra)
}
