package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	testingpkg "github.com/aristath/cointax/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ObjectStore
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Upload(ctx context.Context, key string, body io.Reader) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) List(ctx context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var objects []Object
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, Object{Key: key, Size: int64(len(data))})
		}
	}
	return objects, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func newBackupService(t *testing.T, store ObjectStore, retention int) *BackupService {
	databases := map[string]Snapshotter{
		"ledger":   testingpkg.NewTestDB(t, "ledger"),
		"accounts": testingpkg.NewTestDB(t, "accounts"),
		"cache":    testingpkg.NewTestDB(t, "cache"),
	}
	return NewBackupService(databases, store, "cointax/", retention, t.TempDir(), zerolog.Nop())
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = content
	}
	return files
}

func TestCreateAndUpload(t *testing.T) {
	store := newMemStore()
	service := newBackupService(t, store, 5)
	service.now = func() time.Time { return time.Date(2024, 6, 30, 3, 30, 0, 0, time.UTC) }

	key, err := service.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cointax/cointax-backup-2024-06-30-033000.tar.gz", key)

	files := readArchive(t, store.objects[key])
	require.Contains(t, files, metadataFile)
	for _, name := range []string{"accounts.db", "cache.db", "ledger.db"} {
		assert.Contains(t, files, name)
	}

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &metadata))
	require.Len(t, metadata.Databases, 3)
	assert.Equal(t, "accounts", metadata.Databases[0].Name)
	for _, db := range metadata.Databases {
		content := files[db.Filename]
		assert.Equal(t, int64(len(content)), db.SizeBytes)
		assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(content)), db.Checksum)
	}
}

func TestCreateAndUpload_Rotates(t *testing.T) {
	store := newMemStore()
	for _, stamp := range []string{"2024-06-27-033000", "2024-06-28-033000", "2024-06-29-033000"} {
		store.objects["cointax/cointax-backup-"+stamp+".tar.gz"] = []byte("old")
	}
	store.objects["cointax/notes.txt"] = []byte("ignored")

	service := newBackupService(t, store, 2)
	service.now = func() time.Time { return time.Date(2024, 6, 30, 3, 30, 0, 0, time.UTC) }

	_, err := service.CreateAndUpload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"cointax/cointax-backup-2024-06-29-033000.tar.gz",
		"cointax/cointax-backup-2024-06-30-033000.tar.gz",
		"cointax/notes.txt",
	}, store.keys())
}

func TestCreateAndUpload_UploadFailure(t *testing.T) {
	store := newMemStore()
	store.uploadErr = errors.New("access denied")
	service := newBackupService(t, store, 2)

	_, err := service.CreateAndUpload(context.Background())
	assert.EqualError(t, err, "access denied")
	assert.Empty(t, store.keys())
}

type failingSnapshotter struct{}

func (failingSnapshotter) SnapshotTo(ctx context.Context, destPath string) error {
	return errors.New("database is locked")
}

func TestCreateAndUpload_SnapshotFailure(t *testing.T) {
	store := newMemStore()
	service := NewBackupService(map[string]Snapshotter{"ledger": failingSnapshotter{}}, store, "", 2, t.TempDir(), zerolog.Nop())

	_, err := service.CreateAndUpload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to backup ledger")
	assert.Empty(t, store.keys())
}

func TestListBackups(t *testing.T) {
	store := newMemStore()
	store.objects["cointax-backup-2024-01-01-000000.tar.gz"] = []byte("a")
	store.objects["cointax-backup-2024-03-01-000000.tar.gz"] = []byte("bb")
	store.objects["cointax-backup-garbage.tar.gz"] = []byte("c")

	service := NewBackupService(nil, store, "", 2, t.TempDir(), zerolog.Nop())
	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)

	require.Len(t, backups, 2)
	assert.Equal(t, "cointax-backup-2024-03-01-000000.tar.gz", backups[0].Key)
	assert.Equal(t, int64(2), backups[0].SizeBytes)
	assert.True(t, testingpkg.Date(2024, 1, 1).Equal(backups[1].Timestamp))
}
