package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnswerBareString(t *testing.T) {
	answer, err := DecodeAnswer([]byte(`"Neural networks are covered in video two."`))
	require.NoError(t, err)
	assert.Equal(t, "Neural networks are covered in video two.", answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Empty(t, answer.Context)
}

func TestDecodeAnswerObjectFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"response field", `{"response":"from response"}`, "from response"},
		{"answer field", `{"answer":"from answer"}`, "from answer"},
		{"response wins over answer", `{"response":"r","answer":"a"}`, "r"},
		{"fallback dumps payload", `{"unexpected":1}`, `{"unexpected":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, err := DecodeAnswer([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, answer.Text)
		})
	}
}

func TestDecodeAnswerNormalizesSources(t *testing.T) {
	body := `{
		"response": "ok",
		"sources": [
			{"id": "v1", "title": "T"},
			{"video_id": "v2", "video_title": "Full", "timestamp": "12:30", "relevance": "High"},
			{}
		]
	}`
	answer, err := DecodeAnswer([]byte(body))
	require.NoError(t, err)
	require.Len(t, answer.Sources, 3)

	assert.Equal(t, Source{VideoID: "v1", VideoTitle: "T", Relevance: "Relevant"}, answer.Sources[0])
	assert.Equal(t, Source{VideoID: "v2", VideoTitle: "Full", Timestamp: "12:30", Relevance: "High"}, answer.Sources[1])
	assert.Equal(t, Source{VideoTitle: "Video", Relevance: "Relevant"}, answer.Sources[2])
}

func TestDecodeAnswerContextSingleOrList(t *testing.T) {
	answer, err := DecodeAnswer([]byte(`{"response":"ok","context":"one snippet"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"one snippet"}, answer.Context)

	answer, err = DecodeAnswer([]byte(`{"response":"ok","context":["a","b"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, answer.Context)

	answer, err = DecodeAnswer([]byte(`{"response":"ok"}`))
	require.NoError(t, err)
	assert.Nil(t, answer.Context)
}

func TestDecodeAnswerRejectsNonJSON(t *testing.T) {
	_, err := DecodeAnswer([]byte("<html>gateway timeout</html>"))
	assert.Error(t, err)

	_, err = DecodeAnswer([]byte("   "))
	assert.Error(t, err)
}
