package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()

	assert.Equal(t, "Sorry, I couldn't come up with a response. Please try again.", s.Answer.Fallback)
	assert.Equal(t, "getNewsTool", s.Briefing.Tool.Name)
	assert.Equal(t, "Your Daily Briefing", s.Briefing.Title)
	assert.Contains(t, s.Briefing.System, "# Your Daily Briefing")
	assert.Equal(t, "Sorry, I encountered an error. Please try again.", s.Voice.ErrorReply)
}

func TestLoadOverridesSomeKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("answer:\n  fallback: \"nope\"\n"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nope", s.Answer.Fallback)
	assert.Equal(t, Default().Briefing, s.Briefing)
}

func TestLoadRejectsBlankedFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  fallback: \"\"\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}
