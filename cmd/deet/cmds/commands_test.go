package cmds

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-deet/deet/pkg/config"
)

func TestSplitArgs(t *testing.T) {
	root := New()
	require.NoError(t, root.ParseFlags([]string{"--wd", "/tmp", "--tty", "/dev/pts/9", "./prog", "--", "-x", "y"}))
	targets, args := splitArgs(root, root.Flags().Args())
	assert.Equal(t, []string{"./prog"}, targets)
	assert.Equal(t, []string{"-x", "y"}, args)
	assert.Equal(t, "/tmp", workingDir)
	assert.Equal(t, "/dev/pts/9", tty)

	root = New()
	require.NoError(t, root.ParseFlags([]string{"./prog", "a"}))
	targets, args = splitArgs(root, root.Flags().Args())
	assert.Equal(t, []string{"./prog", "a"}, targets)
	assert.Empty(t, args)
}

func TestTargetRequired(t *testing.T) {
	root := New()
	root.SetOut(ioutil.Discard)
	root.SetErr(ioutil.Discard)
	root.SetArgs([]string{})
	assert.EqualError(t, root.Execute(), "you must provide a path to a binary")

	root = New()
	root.SetOut(ioutil.Discard)
	root.SetErr(ioutil.Discard)
	root.SetArgs([]string{"a", "b", "--", "c"})
	assert.EqualError(t, root.Execute(), "only one target can be debugged")
}

func TestExecuteMissingTarget(t *testing.T) {
	assert.Equal(t, 1, execute([]string{filepath.Join(t.TempDir(), "nosuchprogram")}, &config.Config{}))
}

func TestExecuteWithoutDebugInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script")
	require.NoError(t, ioutil.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755))
	assert.Equal(t, 1, execute([]string{path}, &config.Config{}))
}
