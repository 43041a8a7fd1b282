package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwgp-assistant-backend/internal/datauri"
)

func TestReadDataURIUsesExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cat.png")
	require.NoError(t, os.WriteFile(path, []byte("not really a png"), 0o644))

	uri, err := readDataURI(path)
	require.NoError(t, err)
	assert.Equal(t, datauri.Encode("image/png", []byte("not really a png")), uri)
}

func TestReadDataURISniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n0000"), 0o644))

	uri, err := readDataURI(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"), uri)

	empty := filepath.Join(dir, "empty.jpg")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = readDataURI(empty)
	assert.Error(t, err)
}

func TestPrintJSONMode(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", true, "")
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	require.NoError(t, printMarkdown(cmd, map[string]string{"answer": "# hi"}, "# hi"))
	assert.JSONEq(t, `{"answer":"# hi"}`, buf.String())
}
