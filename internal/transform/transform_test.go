package transform

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalbiraw/antigravity/internal/auth"
	"github.com/zalbiraw/antigravity/internal/config"
	"github.com/zalbiraw/antigravity/pkg/types"
)

var testToken = auth.Token{ProjectID: "test-project", SessionID: "-1234"}

func fixedID() string { return "agent-test" }

func decodeRequest(t *testing.T, body string) types.GenerateContentRequest {
	t.Helper()
	var req types.GenerateContentRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func translate(t *testing.T, cfg ConfigProvider, body string) (types.InternalRequest, string) {
	t.Helper()
	result := New(cfg, fixedID).TranslateRequest("gemini-2.5-pro", decodeRequest(t, body), testToken)
	out, err := json.Marshal(result)
	require.NoError(t, err)
	return result, string(out)
}

func TestNew(t *testing.T) {
	cfg := config.New()
	transformer := New(cfg, fixedID)

	require.NotNil(t, transformer)
	assert.Same(t, cfg, transformer.config)
}

func TestTranslateRequest_EmptyRequest(t *testing.T) {
	_, out := translate(t, config.New(), `{}`)

	assert.JSONEq(t, `{
		"project": "test-project",
		"requestId": "agent-test",
		"request": {
			"contents": [],
			"systemInstruction": {"role": "user", "parts": [{"text": ""}]},
			"generationConfig": {
				"topP": 0.85,
				"topK": 50,
				"temperature": 1,
				"maxOutputTokens": 8096,
				"candidateCount": 1
			},
			"sessionId": "-1234"
		},
		"model": "gemini-2.5-pro",
		"userAgent": "antigravity"
	}`, out)
}

func TestTranslateRequest_EmptyGenerationConfigUsesDefaults(t *testing.T) {
	cfg := config.New()
	cfg.Defaults = config.Defaults{TopP: 0.5, TopK: 7, Temperature: 0.3, MaxTokens: 321}

	result, _ := translate(t, cfg, `{"generationConfig": {}}`)
	gc := result.Request.GenerationConfig

	require.NotNil(t, gc.TopP)
	require.NotNil(t, gc.TopK)
	require.NotNil(t, gc.Temperature)
	require.NotNil(t, gc.MaxOutputTokens)
	require.NotNil(t, gc.CandidateCount)
	assert.Equal(t, 0.5, *gc.TopP)
	assert.Equal(t, 7, *gc.TopK)
	assert.Equal(t, 0.3, *gc.Temperature)
	assert.Equal(t, 321, *gc.MaxOutputTokens)
	assert.Equal(t, 1, *gc.CandidateCount)
}

func TestTranslateRequest_PartialGenerationConfig(t *testing.T) {
	cfg := config.New()

	result, _ := translate(t, cfg, `{"generationConfig": {"temperature": 0.2}}`)
	gc := result.Request.GenerationConfig

	assert.Equal(t, 0.2, *gc.Temperature)
	assert.Equal(t, cfg.Defaults.TopP, *gc.TopP)
	assert.Equal(t, cfg.Defaults.TopK, *gc.TopK)
	assert.Equal(t, cfg.Defaults.MaxTokens, *gc.MaxOutputTokens)
	assert.Equal(t, 1, *gc.CandidateCount)
}

func TestTranslateRequest_RequestOverridesEveryDefault(t *testing.T) {
	result, _ := translate(t, config.New(), `{"generationConfig": {
		"topP": 0.1, "topK": 3, "temperature": 0, "maxOutputTokens": 64, "candidateCount": 2
	}}`)
	gc := result.Request.GenerationConfig

	assert.Equal(t, 0.1, *gc.TopP)
	assert.Equal(t, 3, *gc.TopK)
	assert.Equal(t, 0.0, *gc.Temperature, "an explicit zero must not fall back to the default")
	assert.Equal(t, 64, *gc.MaxOutputTokens)
	assert.Equal(t, 2, *gc.CandidateCount)
}

func TestTranslateRequest_GenerationConfigExtraFields(t *testing.T) {
	_, out := translate(t, config.New(), `{"generationConfig": {
		"stopSequences": ["END"],
		"thinkingConfig": {"includeThoughts": true},
		"topP": null
	}}`)

	var got struct {
		Request struct {
			GenerationConfig map[string]any `json:"generationConfig"`
		} `json:"request"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	gc := got.Request.GenerationConfig

	assert.Equal(t, []any{"END"}, gc["stopSequences"])
	assert.Equal(t, map[string]any{"includeThoughts": true}, gc["thinkingConfig"])
	// Members the request carries verbatim win over resolved values.
	assert.Contains(t, gc, "topP")
	assert.Nil(t, gc["topP"])
	assert.Equal(t, float64(50), gc["topK"])
}

func TestTranslateRequest_SystemInstruction(t *testing.T) {
	tests := []struct {
		name        string
		defaultText string
		body        string
		expected    string
	}{
		{
			name:     "absent without default",
			body:     `{}`,
			expected: `{"role": "user", "parts": [{"text": ""}]}`,
		},
		{
			name:        "absent with default",
			defaultText: "Be brief.",
			body:        `{}`,
			expected:    `{"role": "user", "parts": [{"text": "Be brief."}]}`,
		},
		{
			name:        "supplied role and parts",
			defaultText: "Be brief.",
			body:        `{"systemInstruction": {"role": "system", "parts": [{"text": "Speak French."}, {"text": "Be polite."}]}}`,
			expected:    `{"role": "system", "parts": [{"text": "Speak French."}, {"text": "Be polite."}]}`,
		},
		{
			name:     "supplied parts only",
			body:     `{"systemInstruction": {"parts": [{"text": "Speak French."}]}}`,
			expected: `{"role": "user", "parts": [{"text": "Speak French."}]}`,
		},
		{
			name:        "supplied role only",
			defaultText: "Be brief.",
			body:        `{"systemInstruction": {"role": "model"}}`,
			expected:    `{"role": "model", "parts": [{"text": "Be brief."}]}`,
		},
		{
			name:     "supplied empty parts",
			body:     `{"systemInstruction": {"parts": []}}`,
			expected: `{"role": "user", "parts": []}`,
		},
		{
			name:        "not an object",
			defaultText: "Be brief.",
			body:        `{"systemInstruction": "ignored"}`,
			expected:    `{"role": "user", "parts": [{"text": "Be brief."}]}`,
		},
		{
			name:     "unknown members are dropped",
			body:     `{"systemInstruction": {"parts": [{"text": "x"}], "cache": true}}`,
			expected: `{"role": "user", "parts": [{"text": "x"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			cfg.SystemInstruction = tt.defaultText

			result, _ := translate(t, cfg, tt.body)
			out, err := json.Marshal(result.Request.SystemInstruction)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(out))
		})
	}
}

func TestTranslateRequest_DropsSafetySettingsAndKeepsRest(t *testing.T) {
	_, out := translate(t, config.New(), `{
		"contents": [{"role": "user", "parts": [{"text": "Hello"}]}],
		"safetySettings": [{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"}],
		"tools": [{"functionDeclarations": [{"name": "lookup"}]}],
		"toolConfig": {"functionCallingConfig": {"mode": "AUTO"}},
		"cachedContent": "cachedContents/abc"
	}`)

	var got struct {
		Request map[string]json.RawMessage `json:"request"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	inner := got.Request

	assert.NotContains(t, inner, "safetySettings")
	assert.JSONEq(t, `[{"role": "user", "parts": [{"text": "Hello"}]}]`, string(inner["contents"]))
	assert.JSONEq(t, `[{"functionDeclarations": [{"name": "lookup"}]}]`, string(inner["tools"]))
	assert.JSONEq(t, `{"functionCallingConfig": {"mode": "AUTO"}}`, string(inner["toolConfig"]))
	assert.JSONEq(t, `"cachedContents/abc"`, string(inner["cachedContent"]))
}

func TestTranslateRequest_ContentsPassedThroughVerbatim(t *testing.T) {
	contents := `[{"role":"user","parts":[{"text":"Hi","thoughtSignature":"keep-me"}]},{"role":"model","parts":[{"functionCall":{"name":"f","args":{}}}]}]`

	result, _ := translate(t, config.New(), `{"contents": `+contents+`}`)

	assert.JSONEq(t, contents, string(result.Request.Contents))
}

func TestTranslateRequest_ModelAndUserAgent(t *testing.T) {
	req := decodeRequest(t, `{}`)
	result := New(config.New(), fixedID).TranslateRequest("models/custom:variant", req, testToken)

	assert.Equal(t, "models/custom:variant", result.Model)
	assert.Equal(t, "antigravity", result.UserAgent)
	assert.Equal(t, "test-project", result.Project)
	assert.Equal(t, "-1234", result.Request.SessionID)
}

func TestTranslateRequest_MissingTokenFieldsAreOmitted(t *testing.T) {
	req := decodeRequest(t, `{}`)
	result := New(config.New(), fixedID).TranslateRequest("m", req, auth.Token{})

	out, err := json.Marshal(result)
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &got))
	assert.NotContains(t, got, "project")

	var inner map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got["request"], &inner))
	assert.NotContains(t, inner, "sessionId")
}

func TestTranslateRequest_CallsIDGeneratorOnce(t *testing.T) {
	var calls atomic.Int32
	transformer := New(config.New(), func() string {
		n := calls.Add(1)
		return fmt.Sprintf("agent-%d", n)
	})

	result := transformer.TranslateRequest("m", decodeRequest(t, `{}`), testToken)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "agent-1", result.RequestID)
}

func TestTranslateRequest_ReadsConfigOnEveryCall(t *testing.T) {
	first := config.New()
	first.SystemInstruction = "first"
	source := config.NewSource(first)
	transformer := New(source, fixedID)
	req := decodeRequest(t, `{}`)

	before := transformer.TranslateRequest("m", req, testToken)

	second := config.New()
	second.SystemInstruction = "second"
	second.Defaults.Temperature = 0.5
	source.Store(second)

	after := transformer.TranslateRequest("m", req, testToken)

	assert.Equal(t, "first", *before.Request.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "second", *after.Request.SystemInstruction.Parts[0].Text)
	assert.Equal(t, 1.0, *before.Request.GenerationConfig.Temperature)
	assert.Equal(t, 0.5, *after.Request.GenerationConfig.Temperature)
}

func TestTranslateRequest_DoesNotAliasInput(t *testing.T) {
	req := decodeRequest(t, `{"generationConfig": {"stopSequences": ["a"]}, "tools": []}`)
	result := New(config.New(), fixedID).TranslateRequest("m", req, testToken)

	result.Request.Extra.Delete("tools")
	result.Request.GenerationConfig.Extra.Delete("stopSequences")

	_, ok := req.Extra.Get("tools")
	assert.True(t, ok)
	_, ok = req.GenerationConfig.Extra.Get("stopSequences")
	assert.True(t, ok)
}

func TestTranslateRequest_Concurrent(t *testing.T) {
	var counter atomic.Int64
	transformer := New(config.New(), func() string {
		return fmt.Sprintf("agent-%d", counter.Add(1))
	})
	req := decodeRequest(t, `{"generationConfig": {"temperature": 0.4}}`)

	const n = 64
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := transformer.TranslateRequest("m", req, testToken)
			ids[i] = result.RequestID
			assert.Equal(t, 0.4, *result.Request.GenerationConfig.Temperature)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
}
