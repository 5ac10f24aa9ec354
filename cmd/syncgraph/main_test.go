package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := run(t, "classify", "main/BUILD.bazel", "MODULE.bazel", "tools/defs.bzl", "main/app.cc")
	require.NoError(t, err)

	assert.Equal(t, ""+
		"build          main/BUILD.bazel\n"+
		"workspace_root MODULE.bazel\n"+
		"dependency     tools/defs.bzl\n"+
		"source         main/app.cc\n", out)
}

func TestClassifyRequiresPath(t *testing.T) {
	_, err := run(t, "classify")
	assert.Error(t, err)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SYNCGRAPH_STORE_BACKEND", "tape")

	_, err := run(t, "graph")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}

func TestGraphCommandOnEmptyStore(t *testing.T) {
	color.NoColor = true
	ws := t.TempDir()
	t.Chdir(ws)

	out, err := run(t, "graph", "--workspace", ws, "--verbosity", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Target Graph")

	_, err = os.Stat(filepath.Join(ws, ".syncgraph"))
	assert.NoError(t, err, "the store directory is created on open")
}
