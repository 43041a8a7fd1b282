package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwgp-assistant-backend/internal/types"
)

func TestAnswerContract(t *testing.T) {
	t.Parallel()

	req, err := Answer.Decode([]byte(`{"question":"What is 2+2?"}`))
	require.NoError(t, err)
	assert.Equal(t, "What is 2+2?", req.Question)
	assert.Nil(t, req.Media)

	req, err = Answer.Decode([]byte(`{"question":"","media":{"dataUri":"data:image/png;base64,AAAA","type":"image"}}`))
	require.NoError(t, err)
	require.NotNil(t, req.Media)
	assert.Equal(t, types.MediaImage, req.Media.Type)

	// The empty-question-without-media rule is semantic and lives in the adapter.
	_, err = Answer.Decode([]byte(`{"question":""}`))
	require.NoError(t, err)
}

func TestAnswerContractRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"malformed":       `{"question":`,
		"missing":         `{}`,
		"wrong type":      `{"question":42}`,
		"bad media kind":  `{"question":"q","media":{"dataUri":"data:image/png;base64,AAAA","type":"audio"}}`,
		"bad data uri":    `{"question":"q","media":{"dataUri":"https://example.com/cat.png","type":"image"}}`,
		"unknown field":   `{"question":"q","extra":true}`,
		"missing dataUri": `{"question":"q","media":{"type":"image"}}`,
	}
	for name, body := range cases {
		_, err := Answer.Decode([]byte(body))
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestEditImageContract(t *testing.T) {
	t.Parallel()

	_, err := EditImage.Decode([]byte(`{"photoDataUri":"data:image/jpeg;base64,AAAA","prompt":"make it blue"}`))
	require.NoError(t, err)

	_, err = EditImage.Decode([]byte(`{"photoDataUri":"data:image/jpeg;base64,AAAA","prompt":""}`))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = EditImage.Decode([]byte(`{"photoDataUri":"data:video/mp4;base64,AAAA","prompt":"x"}`))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTextContracts(t *testing.T) {
	t.Parallel()

	_, err := Speech.Decode([]byte(`{"text":""}`))
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Video.Decode([]byte(`{"prompt":""}`))
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Search.Decode([]byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalid)

	v, err := VoiceTurn.Decode([]byte(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Text)
}
