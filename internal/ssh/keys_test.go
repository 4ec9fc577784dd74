package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"

	"tweetsaver/internal/tui"
)

func newKey(t *testing.T, comment string) (string, string) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := gossh.NewPublicKey(pub)
	require.NoError(t, err)
	line := strings.TrimSpace(string(gossh.MarshalAuthorizedKey(sshPub))) + " " + comment
	return line, gossh.FingerprintSHA256(sshPub)
}

func TestAuthorizedKeysLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssh", "authorized_keys")

	created, err := InitKeys(path)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = InitKeys(path)
	require.NoError(t, err)
	assert.False(t, created)

	lineA, fpA := newKey(t, "alice@laptop")
	lineB, fpB := newKey(t, "bob@desk")

	got, err := AddAuthorizedKey(path, lineA)
	require.NoError(t, err)
	assert.Equal(t, fpA, got)
	_, err = AddAuthorizedKey(path, "  "+lineB+"\n")
	require.NoError(t, err)

	entries, err := ListAuthorizedKeys(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice@laptop", entries[0].Comment)
	assert.Equal(t, fpB, entries[1].Fingerprint)

	keys, err := LoadAuthorizedKeys(path)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, RemoveAuthorizedKey(path, fpA))
	entries, err = ListAuthorizedKeys(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fpB, entries[0].Fingerprint)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# tweetsaver authorized SSH keys\n"))

	err = RemoveAuthorizedKey(path, fpA)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestAddAuthorizedKeyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authorized_keys")
	_, err := AddAuthorizedKey(path, "ssh-ed25519 not-a-key")
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestListSkipsInvalidLines(t *testing.T) {
	line, fp := newKey(t, "ok")
	path := filepath.Join(t.TempDir(), "authorized_keys")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n\ngarbage line\n"+line+"\n"), 0600))

	entries, err := ListAuthorizedKeys(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fp, entries[0].Fingerprint)
}

func TestDefaultPathsFollowDataDir(t *testing.T) {
	dir := t.TempDir()
	old := DataDirConfig
	DataDirConfig = dir
	t.Cleanup(func() { DataDirConfig = old })

	host, err := DefaultHostKeyPath()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(host, dir))
	assert.Equal(t, hostKeyFile, filepath.Base(host))

	keys, err := DefaultAuthorizedKeysPath()
	require.NoError(t, err)
	assert.Equal(t, authorizedKeysFile, filepath.Base(keys))
}

func TestNewServerRequiresFactory(t *testing.T) {
	_, err := NewServer(SSHConfig{})
	assert.Error(t, err)
}

func TestNewServer(t *testing.T) {
	dir := t.TempDir()
	srv, err := NewServer(SSHConfig{
		ListenAddr:         "127.0.0.1:0",
		HostKeyPath:        filepath.Join(dir, "ssh_host_key"),
		AuthorizedKeysPath: filepath.Join(dir, "missing"),
		NewController: func(context.Context, string) (tui.Controller, error) {
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", srv.Addr)
}
