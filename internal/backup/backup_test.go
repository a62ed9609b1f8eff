package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/karmabot/internal/db/sqlite"
)

func TestPackUnpack(t *testing.T) {
	data := bytes.Repeat([]byte("karma "), 1000)

	blob, err := Pack(data, "secret")
	require.NoError(t, err)
	assert.Equal(t, magic, string(blob[:4]))
	assert.Less(t, len(blob), len(data))

	got, err := Unpack(blob, "secret")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPack_FreshSaltEveryTime(t *testing.T) {
	a, err := Pack([]byte("same"), "secret")
	require.NoError(t, err)
	b, err := Pack([]byte("same"), "secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestUnpack_Rejects(t *testing.T) {
	blob, err := Pack([]byte("payload"), "secret")
	require.NoError(t, err)

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0xff
	// Заголовок защищён associated data
	badSalt := append([]byte(nil), blob...)
	badSalt[5] ^= 0xff

	tests := map[string]struct {
		blob []byte
		pass string
	}{
		"wrong passphrase": {blob, "other"},
		"tampered body":    {tampered, "secret"},
		"tampered header":  {badSalt, "secret"},
		"truncated":        {blob[:10], "secret"},
		"not a backup":     {[]byte("SQLite format 3\x00 and some more bytes to pass length checks......."), "secret"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unpack(tt.blob, tt.pass)
			assert.ErrorIs(t, err, ErrInvalidBackup)
		})
	}
}

func TestPack_EmptyPassphrase(t *testing.T) {
	_, err := Pack([]byte("x"), "")
	assert.Error(t, err)
}

type memoryRemote struct {
	data []byte
	err  error
}

func (m *memoryRemote) Upload(_ context.Context, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memoryRemote) Download(context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, ErrNoRemoteCopy
	}
	return m.data, nil
}

func seedDB(t *testing.T, path string) {
	t.Helper()
	db, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO karma (user_id, points, created_at, updated_at) VALUES ('U1', 7, 0, 0)")
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func karmaOf(t *testing.T, path, userID string) int {
	t.Helper()
	db, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var points int
	require.NoError(t, db.QueryRow("SELECT points FROM karma WHERE user_id = ?", userID).Scan(&points))
	return points
}

func TestService_RunAndRestore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "karma.db")
	backupPath := filepath.Join(dir, "karma.db.enc")
	seedDB(t, dbPath)

	db, err := sqlite.Open(context.Background(), dbPath)
	require.NoError(t, err)
	remote := &memoryRemote{}
	require.NoError(t, NewService(db, "secret", backupPath, remote).Run(context.Background()))
	require.NoError(t, db.Close())

	local, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, local, remote.data)

	// Существующая база не перезаписывается
	restored, err := Restore(context.Background(), dbPath, backupPath, "secret", remote)
	require.NoError(t, err)
	assert.False(t, restored)

	fresh := filepath.Join(dir, "restored.db")
	restored, err = Restore(context.Background(), fresh, backupPath, "secret", nil)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, 7, karmaOf(t, fresh, "U1"))

	// Локальной копии нет — берём удалённую
	fromRemote := filepath.Join(dir, "remote.db")
	restored, err = Restore(context.Background(), fromRemote, filepath.Join(dir, "missing.enc"), "secret", remote)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, 7, karmaOf(t, fromRemote, "U1"))
}

func TestRestore_NothingToRestore(t *testing.T) {
	dir := t.TempDir()
	restored, err := Restore(context.Background(), filepath.Join(dir, "karma.db"),
		filepath.Join(dir, "karma.db.enc"), "secret", &memoryRemote{})
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestService_RunUploadFailure(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "karma.db")
	seedDB(t, dbPath)
	db, err := sqlite.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	remote := &memoryRemote{err: errors.New("access denied")}
	err = NewService(db, "secret", filepath.Join(dir, "karma.db.enc"), remote).Run(context.Background())
	assert.Error(t, err)
	// Локальная копия всё равно записана
	assert.FileExists(t, filepath.Join(dir, "karma.db.enc"))
}

func TestPackFileUnpackFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	enc := filepath.Join(dir, "plain.enc")
	out := filepath.Join(dir, "plain.out")
	require.NoError(t, PackFile(src, enc, "secret"))
	require.NoError(t, UnpackFile(enc, out, "secret"))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	assert.ErrorIs(t, UnpackFile(enc, out, "wrong"), ErrInvalidBackup)
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Remote(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	remote := NewS3RemoteWithClient(client, "backups", "karma.db.enc")
	ctx := context.Background()

	_, err := remote.Download(ctx)
	assert.ErrorIs(t, err, ErrNoRemoteCopy)

	require.NoError(t, remote.Upload(ctx, []byte("blob")))
	assert.Equal(t, []byte("blob"), client.objects["backups/karma.db.enc"])

	got, err := remote.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got)
}
