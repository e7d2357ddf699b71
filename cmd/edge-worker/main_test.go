package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunConfigTest(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yaml")
	require.NoError(t, os.WriteFile(valid, []byte(`origins:
  allow: ["https://affine.pro"]
routes:
  - host: worker.affine.pro
    prefix: /api/
    app: affine
`), 0o644))

	var out bytes.Buffer
	assert.Equal(t, 0, runConfigTest(&out, valid, "https://worker.affine.pro/api/worker/link-preview"))
	assert.Contains(t, out.String(), "configuration test is successful")
	assert.Contains(t, out.String(), "App: affine")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("server:\n  listen: nope\n"), 0o644))

	out.Reset()
	assert.Equal(t, 1, runConfigTest(&out, invalid, ""))
	assert.Contains(t, out.String(), "invalid.yaml line 2: server.listen")

	assert.Equal(t, 1, runConfigTest(&out, filepath.Join(dir, "missing.yaml"), ""))
}
