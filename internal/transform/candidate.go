package transform

import "github.com/zalbiraw/antigravity/pkg/types"

const thoughtSignatureKey = "thoughtSignature"

// SanitizeCandidate returns the public form of a backend candidate.
//
// The result always carries an integer index: the candidate's own when it has one,
// position otherwise. Every object part under content.parts loses its thoughtSignature;
// everything else is copied as is. Values that are not objects are returned
// unchanged. Applying SanitizeCandidate to its own output changes nothing.
func SanitizeCandidate(c types.Candidate, position int) types.Candidate {
	if !c.IsObject() {
		return c
	}

	out := c
	out.Extra = c.Extra.Clone()

	if out.Index == nil {
		index := position
		out.Index = &index
		// A non-integer index was decoded into Extra and would win over the typed one.
		out.Extra.Delete("index")
	}

	if c.Content != nil && c.Content.IsObject() && c.Content.Parts != nil {
		content := *c.Content
		content.Parts = make([]types.Part, len(c.Content.Parts))
		for i, part := range c.Content.Parts {
			content.Parts[i] = stripThoughtSignature(part)
		}
		out.Content = &content
	}

	return out
}

func stripThoughtSignature(p types.Part) types.Part {
	p.ThoughtSignature = nil
	if _, ok := p.Extra.Get(thoughtSignatureKey); ok {
		p.Extra = p.Extra.Clone()
		p.Extra.Delete(thoughtSignatureKey)
	}
	return p
}
