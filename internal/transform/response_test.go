package transform

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalbiraw/antigravity/pkg/types"
)

func TestExtractResponseBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "wrapped",
			body:     `{"response":{"candidates":[{"content":{"parts":[{"text":"hi","thoughtSignature":"s"}]}}],"usageMetadata":{"totalTokenCount":3}},"traceId":"t-1"}`,
			expected: `{"candidates":[{"index":0,"content":{"parts":[{"text":"hi"}]}}],"usageMetadata":{"totalTokenCount":3}}`,
		},
		{
			name:     "unwrapped",
			body:     `{"candidates":[{"content":{"parts":[{"text":"hi"}]}}],"modelVersion":"gemini-2.5-pro"}`,
			expected: `{"candidates":[{"index":0,"content":{"parts":[{"text":"hi"}]}}],"modelVersion":"gemini-2.5-pro"}`,
		},
		{
			name:     "positional index follows original array",
			body:     `{"candidates":[{"index":5},{"finishReason":"STOP"},null]}`,
			expected: `{"candidates":[{"index":5},{"index":1,"finishReason":"STOP"},null]}`,
		},
		{
			name:     "duplicate candidates take the last array",
			body:     `{"candidates":5,"candidates":[{"content":{"parts":[{"text":"a","thoughtSignature":"s"}]}}]}`,
			expected: `{"candidates":[{"index":0,"content":{"parts":[{"text":"a"}]}}]}`,
		},
		{
			name:     "duplicate index takes the last value",
			body:     `{"candidates":[{"index":"x","index":4},{"index":9,"index":null}]}`,
			expected: `{"candidates":[{"index":4},{"index":1}]}`,
		},
		{
			name:     "large own index is kept",
			body:     `{"candidates":[{"index":3000000000}]}`,
			expected: `{"candidates":[{"index":3000000000}]}`,
		},
		{
			name:     "without candidates",
			body:     `{"usageMetadata":{"promptTokenCount":1,"totalTokenCount":3},"modelVersion":"x"}`,
			expected: `{"usageMetadata":{"promptTokenCount":1,"totalTokenCount":3},"modelVersion":"x"}`,
		},
		{
			name:     "wrapped without candidates",
			body:     `{"response":{"promptFeedback":{"blockReason":"SAFETY"}}}`,
			expected: `{"promptFeedback":{"blockReason":"SAFETY"}}`,
		},
		{
			name:     "candidates not an array",
			body:     `{"candidates":{"0":{"thoughtSignature":"s"}}}`,
			expected: `{"candidates":{"0":{"thoughtSignature":"s"}}}`,
		},
		{
			name:     "empty candidates",
			body:     `{"candidates":[]}`,
			expected: `{"candidates":[]}`,
		},
		{
			name:     "wrapped null",
			body:     `{"response":null}`,
			expected: `null`,
		},
		{
			name:     "error payload",
			body:     `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`,
			expected: `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ExtractResponseBody([]byte(tt.body))
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(out))
		})
	}
}

func TestExtractResponseBody_InvalidJSON(t *testing.T) {
	_, err := ExtractResponseBody([]byte(`{"response":`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response envelope")
}

func TestExtractResponse_WithoutCandidatesReturnsPayload(t *testing.T) {
	env, err := types.ParseEnvelope([]byte(`{"usageMetadata":{"totalTokenCount":3}}`))
	require.NoError(t, err)

	result := ExtractResponse(env)

	assert.False(t, env.Wrapped)
	assert.Nil(t, result.Candidates)
	assert.Equal(t, env.Payload.Extra.Keys(), result.Extra.Keys())
}

func TestTransformStreamLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{name: "empty line", line: "", expected: ""},
		{name: "comment", line: ": keepalive", expected: ": keepalive"},
		{name: "event field", line: "event: message", expected: "event: message"},
		{name: "data without space", line: `data:{"candidates":[]}`, expected: `data:{"candidates":[]}`},
		{name: "invalid json", line: "data: {not json", expected: "data: {not json"},
		{name: "done marker", line: "data: [DONE]", expected: "data: [DONE]"},
		{name: "empty data", line: "data: ", expected: "data: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TransformStreamLine(tt.line))
		})
	}
}

func TestTransformStreamLine_Data(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{
			name:     "wrapped chunk",
			line:     `data: {"response":{"candidates":[{"content":{"parts":[{"text":"hi","thoughtSignature":"s"}]}}]}}`,
			expected: `{"candidates":[{"content":{"parts":[{"text":"hi"}]},"index":0}]}`,
		},
		{
			name:     "bare chunk",
			line:     `data: {"candidates":[{"index":1,"content":{"parts":[{"text":"yo"}]}}],"usageMetadata":{"candidatesTokenCount":1}}`,
			expected: `{"candidates":[{"index":1,"content":{"parts":[{"text":"yo"}]}}],"usageMetadata":{"candidatesTokenCount":1}}`,
		},
		{
			name:     "chunk without candidates",
			line:     `data: {"response":{"usageMetadata":{"totalTokenCount":9}}}`,
			expected: `{"usageMetadata":{"totalTokenCount":9}}`,
		},
		{
			name:     "duplicate index in chunk",
			line:     `data: {"candidates":[{"index":"x","index":0,"content":{"parts":[{"text":"a"}]}}]}`,
			expected: `{"candidates":[{"index":0,"content":{"parts":[{"text":"a"}]}}]}`,
		},
		{
			name:     "scalar payload",
			line:     `data: 42`,
			expected: `42`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TransformStreamLine(tt.line)

			data, found := strings.CutPrefix(result, DataPrefix)
			require.True(t, found, "result must keep the data prefix: %q", result)
			assert.JSONEq(t, tt.expected, data)
		})
	}
}

func TestTransformStreamLine_Concurrent(t *testing.T) {
	line := `data: {"response":{"candidates":[{"content":{"parts":[{"text":"hi","thoughtSignature":"s"}]}}]}}`
	expected := TransformStreamLine(line)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, expected, TransformStreamLine(line))
		}()
	}
	wg.Wait()
}
