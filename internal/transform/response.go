package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zalbiraw/antigravity/pkg/types"
)

// DataPrefix starts every server-sent event line that carries a JSON document.
const DataPrefix = "data: "

// ExtractResponse returns the public response held by a backend envelope. Payloads
// without a candidates array are returned unchanged. Otherwise each candidate is
// sanitized with its position in the original array.
func ExtractResponse(env types.Envelope) types.Response {
	payload := env.Payload
	if payload.Candidates == nil {
		return payload
	}

	out := payload
	out.Candidates = make([]types.Candidate, len(payload.Candidates))
	for i, c := range payload.Candidates {
		out.Candidates[i] = SanitizeCandidate(c, i)
	}
	return out
}

// ExtractResponseBody is ExtractResponse over a raw backend body.
func ExtractResponseBody(body []byte) ([]byte, error) {
	env, err := types.ParseEnvelope(body)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(ExtractResponse(env))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return out, nil
}

// streamPayload is the result of parsing the JSON carried by one data line.
// ok is false when the text was not valid JSON.
type streamPayload struct {
	envelope types.Envelope
	ok       bool
}

func parseStreamPayload(data string) streamPayload {
	env, err := types.ParseEnvelope([]byte(data))
	if err != nil {
		return streamPayload{}
	}
	return streamPayload{envelope: env, ok: true}
}

// TransformStreamLine converts one line of a backend event stream to its public form.
//
// Lines that do not start with "data: " are returned unchanged, and so are data lines
// whose payload is not valid JSON (such as "data: [DONE]"). Other data lines are
// unwrapped and sanitized like ExtractResponse and re-encoded. No state is kept between
// calls.
func TransformStreamLine(line string) string {
	data, found := strings.CutPrefix(line, DataPrefix)
	if !found {
		return line
	}

	payload := parseStreamPayload(data)
	if !payload.ok {
		return line
	}

	out, err := json.Marshal(ExtractResponse(payload.envelope))
	if err != nil {
		return line
	}
	return DataPrefix + string(out)
}
