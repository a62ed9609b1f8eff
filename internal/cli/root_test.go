package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/karmabot/internal/backup"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"pack", "unpack", "keygen", "sweep", "digest"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestPackUnpackCommands(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "karma.db")
	enc := filepath.Join(dir, "karma.db.enc")
	out := filepath.Join(dir, "restored.db")
	require.NoError(t, os.WriteFile(src, []byte("database bytes"), 0o600))

	_, err := execute(t, "pack", "--key", "secret", src, enc)
	require.NoError(t, err)

	blob, err := os.ReadFile(enc)
	require.NoError(t, err)
	plain, err := backup.Unpack(blob, "secret")
	require.NoError(t, err)
	assert.Equal(t, "database bytes", string(plain))

	_, err = execute(t, "unpack", "-k", "secret", enc, out)
	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "database bytes", string(got))

	_, err = execute(t, "unpack", "-k", "wrong", enc, out)
	assert.ErrorIs(t, err, backup.ErrInvalidBackup)
}

func TestPack_RequiresKey(t *testing.T) {
	t.Setenv("BACKUP_KEY", "")
	dir := t.TempDir()
	_, err := execute(t, "pack", filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	assert.ErrorIs(t, err, errNoKey)
}

func TestPack_KeyFromEnvironment(t *testing.T) {
	t.Setenv("BACKUP_KEY", "from-env")
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	_, err := execute(t, "pack", src, filepath.Join(dir, "b"))
	require.NoError(t, err)
	require.NoError(t, backup.UnpackFile(filepath.Join(dir, "b"), filepath.Join(dir, "c"), "from-env"))
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, "keygen")
	require.NoError(t, err)
	// 32 байта в base64 без паддинга
	assert.Len(t, strings.TrimSpace(out), 43)

	_, err = execute(t, "keygen", "--bytes", "8")
	assert.Error(t, err)
}
