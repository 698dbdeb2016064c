package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runConfigCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "xdg"))

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"config"}, args...))

	err := cmd.Execute()
	return buf.String(), err
}

func TestConfigCmd_PathPrintsXDGLocation(t *testing.T) {
	out, err := runConfigCmd(t, "path")
	require.NoError(t, err)
	assert.Contains(t, out, "dictv/config.yaml")
}

func TestConfigCmd_InitCreatesFile(t *testing.T) {
	out, err := runConfigCmd(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
}

func TestConfigCmd_InitTwiceWithoutForceWarns(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "xdg"))

	first := NewRootCmd()
	buf1 := new(bytes.Buffer)
	first.SetOut(buf1)
	first.SetErr(buf1)
	first.SetArgs([]string{"config", "init"})
	require.NoError(t, first.Execute())

	second := NewRootCmd()
	buf2 := new(bytes.Buffer)
	second.SetOut(buf2)
	second.SetErr(buf2)
	second.SetArgs([]string{"config", "init"})
	require.NoError(t, second.Execute())

	assert.Contains(t, buf2.String(), "already exists")
}

func TestConfigCmd_ShowDefaults(t *testing.T) {
	out, err := runConfigCmd(t, "show", "--source", "defaults")
	require.NoError(t, err)
	assert.Contains(t, out, "default_mode")
	assert.Contains(t, out, "fuzzy")
}

func TestConfigCmd_ShowJSON(t *testing.T) {
	out, err := runConfigCmd(t, "show", "--source", "defaults", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"default_mode"`)
}

func TestConfigCmd_ShowRejectsUnknownSource(t *testing.T) {
	_, err := runConfigCmd(t, "show", "--source", "bogus")
	assert.Error(t, err)
}

func TestConfigCmd_BackupWithNoConfigIsNoop(t *testing.T) {
	out, err := runConfigCmd(t, "backup")
	require.NoError(t, err)
	assert.Contains(t, out, "no user configuration")
}
