package types

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Part is one piece of content, usually a text fragment.
type Part struct {
	// Text is the text of the part. Nil when absent or not a string.
	Text *string

	// ThoughtSignature is an internal-only annotation the backend attaches to
	// reasoning parts. It must not reach public clients.
	ThoughtSignature json.RawMessage

	// Extra holds the remaining members, such as thought, inlineData or functionCall.
	Extra Extensions

	raw json.RawMessage
}

// TextPart returns a part carrying only text.
func TextPart(text string) Part {
	return Part{Text: &text}
}

// IsObject reports whether the part was decoded from a JSON object.
func (p Part) IsObject() bool {
	return p.raw == nil
}

// UnmarshalJSON decodes a part. Values that are not objects are kept verbatim.
func (p *Part) UnmarshalJSON(data []byte) error {
	*p = Part{}
	if !eachMember(data, func(key string, value gjson.Result) {
		switch key {
		case "text":
			if text, ok := asString(value); ok {
				p.Text = &text
				return
			}
		case "thoughtSignature":
			p.ThoughtSignature = raw(value)
			return
		}
		p.Extra.Set(key, raw(value))
	}) {
		p.raw = notObject(data)
	}
	return nil
}

// MarshalJSON writes the part back in its public shape.
func (p Part) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return p.raw, nil
	}
	var members []member
	if p.Text != nil {
		members = append(members, member{"text", *p.Text})
	}
	if len(p.ThoughtSignature) > 0 {
		members = append(members, member{"thoughtSignature", p.ThoughtSignature})
	}
	return marshalObject(members, p.Extra)
}

func decodeParts(value gjson.Result) ([]Part, error) {
	items := value.Array()
	parts := make([]Part, len(items))
	for i, item := range items {
		if err := json.Unmarshal([]byte(item.Raw), &parts[i]); err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
	}
	return parts, nil
}

// Content is the generated content of a candidate.
type Content struct {
	// Parts are the content parts. Nil when absent or not an array; in the latter case
	// the original value stays in Extra.
	Parts []Part

	// Extra holds the remaining members, such as role.
	Extra Extensions

	raw json.RawMessage
}

// IsObject reports whether the content was decoded from a JSON object.
func (c Content) IsObject() bool {
	return c.raw == nil
}

// UnmarshalJSON decodes a content object. Values that are not objects are kept verbatim.
func (c *Content) UnmarshalJSON(data []byte) error {
	*c = Content{}
	var err error
	if !eachMember(data, func(key string, value gjson.Result) {
		if key == "parts" && value.IsArray() {
			c.Parts, err = decodeParts(value)
			return
		}
		c.Extra.Set(key, raw(value))
	}) {
		c.raw = notObject(data)
	}
	return err
}

// MarshalJSON writes the content back.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	var members []member
	if c.Parts != nil {
		members = append(members, member{"parts", c.Parts})
	}
	return marshalObject(members, c.Extra)
}

// Candidate is one generated alternative.
type Candidate struct {
	// Index is the ordinal of the candidate. Nil when absent or not an integer; a value
	// of another type stays in Extra.
	Index *int

	// Content is the generated content. Nil when absent or not an object.
	Content *Content

	// Extra holds the remaining members, such as finishReason or safetyRatings.
	Extra Extensions

	raw json.RawMessage
}

// IsObject reports whether the candidate was decoded from a JSON object.
func (c Candidate) IsObject() bool {
	return c.raw == nil
}

// UnmarshalJSON decodes a candidate. Values that are not objects are kept verbatim.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	*c = Candidate{}
	var err error
	if !eachMember(data, func(key string, value gjson.Result) {
		switch key {
		case "index":
			if n, ok := asInt(value); ok {
				c.Index = &n
				return
			}
		case "content":
			if value.IsObject() {
				c.Content = &Content{}
				err = json.Unmarshal([]byte(value.Raw), c.Content)
				return
			}
		}
		c.Extra.Set(key, raw(value))
	}) {
		c.raw = notObject(data)
	}
	return err
}

// MarshalJSON writes the candidate back.
func (c Candidate) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	var members []member
	if c.Content != nil {
		members = append(members, member{"content", *c.Content})
	}
	if c.Index != nil {
		members = append(members, member{"index", *c.Index})
	}
	return marshalObject(members, c.Extra)
}

// Response is a public generateContent response, or one streamed chunk of it.
type Response struct {
	// Candidates are the generated alternatives. Nil when absent or not an array.
	Candidates []Candidate

	// Extra holds the remaining members, such as usageMetadata, modelVersion or error.
	Extra Extensions

	raw json.RawMessage
}

// IsObject reports whether the response was decoded from a JSON object.
func (r Response) IsObject() bool {
	return r.raw == nil
}

// UnmarshalJSON decodes a response. Values that are not objects are kept verbatim.
func (r *Response) UnmarshalJSON(data []byte) error {
	*r = Response{}
	var err error
	if !eachMember(data, func(key string, value gjson.Result) {
		if key == "candidates" && value.IsArray() {
			items := value.Array()
			r.Candidates = make([]Candidate, len(items))
			for i, item := range items {
				if err == nil {
					if uerr := json.Unmarshal([]byte(item.Raw), &r.Candidates[i]); uerr != nil {
						err = fmt.Errorf("candidate %d: %w", i, uerr)
					}
				}
			}
			return
		}
		r.Extra.Set(key, raw(value))
	}) {
		r.raw = notObject(data)
	}
	return err
}

// MarshalJSON writes the response back.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	var members []member
	if r.Candidates != nil {
		members = append(members, member{"candidates", r.Candidates})
	}
	return marshalObject(members, r.Extra)
}

// Envelope is a backend response body resolved into its payload. The backend sends
// some bodies as {"response": {...}} and others as the bare payload; Wrapped records
// which form arrived. Members next to "response" in a wrapped body are not part of the
// public payload and are discarded.
type Envelope struct {
	Wrapped bool
	Payload Response
}

// UnmarshalJSON resolves data into an envelope. A top-level "response" member selects
// the wrapped form; anything else is the payload itself.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	*e = Envelope{}
	var inner gjson.Result
	eachMember(data, func(key string, value gjson.Result) {
		if key == "response" {
			inner = value
		}
	})
	if inner.Exists() {
		e.Wrapped = true
		return json.Unmarshal([]byte(inner.Raw), &e.Payload)
	}
	return json.Unmarshal(data, &e.Payload)
}

// ParseEnvelope decodes a backend response body.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse response envelope: %w", err)
	}
	return env, nil
}
