package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_RoundTrip(t *testing.T) {
	base := t.TempDir()
	s := NewLocalFileStorage(base, zap.NewNop())
	ctx := context.Background()

	key := "generations/FACTURE/2025/FAC-2025-00001.pdf"
	require.NoError(t, s.Save(ctx, key, []byte("%PDF-1.7")))

	content, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), content)

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	size, err := s.Size(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	_, err = os.Stat(filepath.Join(base, "generations", "FACTURE", "2025", "FAC-2025-00001.pdf"))
	assert.NoError(t, err)

	// overwrite
	require.NoError(t, s.Save(ctx, key, []byte("v2")))
	content, err = s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), content)

	require.NoError(t, s.Delete(ctx, key))
	exists, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalFileStorage_Missing(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	_, err := s.Read(ctx, "templates/missing.docx")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Size(ctx, "templates/missing.docx")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := s.Exists(ctx, "templates/missing.docx")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalFileStorage_DirectoryIsNotAnObject(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "templates/a.txt", []byte("a")))

	exists, err := s.Exists(ctx, "templates")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalFileStorage_RejectsEscapingKeys(t *testing.T) {
	base := t.TempDir()
	s := NewLocalFileStorage(filepath.Join(base, "store"), zap.NewNop())
	ctx := context.Background()

	keys := []string{
		"",
		"../outside.txt",
		"templates/../../outside.txt",
		"/etc/passwd",
		"templates/./a.txt",
		"templates//a.txt",
		`templates\a.txt`,
	}
	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			assert.ErrorIs(t, s.Save(ctx, key, []byte("x")), ErrInvalidKey)
			_, err := s.Read(ctx, key)
			assert.ErrorIs(t, err, ErrInvalidKey)
			assert.ErrorIs(t, s.Delete(ctx, key), ErrInvalidKey)
		})
	}

	_, err := os.Stat(filepath.Join(base, "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{BaseDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalFileStorage{}, s)

	_, err = New(ctx, Config{Backend: "ftp"}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(ctx, Config{Backend: BackendMinio}, zap.NewNop())
	assert.Error(t, err, "bucket is required")
}
