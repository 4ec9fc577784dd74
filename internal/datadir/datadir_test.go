package datadir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_EnvVarWins(t *testing.T) {
	envDir := filepath.Join(t.TempDir(), "env-dir")
	t.Setenv(EnvVar, envDir)

	got, err := Resolve("/should/be/ignored")
	require.NoError(t, err)
	assert.Equal(t, envDir, got)

	info, err := os.Stat(envDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestResolve_ConfigValueFallback(t *testing.T) {
	cfgDir := filepath.Join(t.TempDir(), "cfg-dir")
	t.Setenv(EnvVar, "")

	got, err := Resolve(cfgDir)
	require.NoError(t, err)
	assert.Equal(t, cfgDir, got)
}

func TestNew_DefaultHome(t *testing.T) {
	t.Setenv(EnvVar, "")

	d, err := New("")
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, DefaultDirName), d.Root())
}

func TestLayout(t *testing.T) {
	root := t.TempDir()
	t.Setenv(EnvVar, root)

	d, err := New("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "data", DatabaseFile), d.DatabasePath())
	assert.Equal(t, filepath.Join(root, "config", ConfigFile), d.ConfigPath())
	assert.Equal(t, filepath.Join(root, "ssh", "host_key"), d.SSHFilePath("host_key"))

	require.NoError(t, d.EnsureDirs())
	for _, dir := range []string{d.ConfigDir(), d.SSHDir(), d.DatabaseDir(), d.TemplateDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestLoadEnv_FirstFileWins(t *testing.T) {
	root := t.TempDir()
	extra := t.TempDir()
	t.Setenv(EnvFileEnvVar, "")
	t.Setenv("TWEETSAVER_TEST_A", "")
	os.Unsetenv("TWEETSAVER_TEST_A")
	t.Setenv("TWEETSAVER_TEST_B", "")
	os.Unsetenv("TWEETSAVER_TEST_B")

	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("TWEETSAVER_TEST_A=root\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(extra, ".env"), []byte("TWEETSAVER_TEST_A=extra\nTWEETSAVER_TEST_B=\"quoted\"\n"), 0600))

	require.NoError(t, LoadEnv(root, extra))
	assert.Equal(t, "root", os.Getenv("TWEETSAVER_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("TWEETSAVER_TEST_B"))
}

func TestLoadEnv_ExistingEnvNotOverridden(t *testing.T) {
	root := t.TempDir()
	t.Setenv(EnvFileEnvVar, "")
	t.Setenv("TWEETSAVER_TEST_C", "from-env")

	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("TWEETSAVER_TEST_C=from-file\n"), 0600))

	require.NoError(t, LoadEnv(root))
	assert.Equal(t, "from-env", os.Getenv("TWEETSAVER_TEST_C"))
}

func TestFindEnvFiles_Override(t *testing.T) {
	file := filepath.Join(t.TempDir(), "custom.env")
	require.NoError(t, os.WriteFile(file, []byte("X=1\n"), 0600))
	t.Setenv(EnvFileEnvVar, file)

	assert.Equal(t, []string{file}, FindEnvFiles(t.TempDir()))
}

func TestLoadEnv_NoFiles(t *testing.T) {
	t.Setenv(EnvFileEnvVar, "")
	assert.NoError(t, LoadEnv(t.TempDir()))
}
