package storage

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFileStorageRoundTrip тестирует сохранение и чтение артефакта
func TestFileStorageRoundTrip(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	payload := []byte("png bytes")
	require.NoError(t, fs.Save("A1B2C3D4E5.png", bytes.NewReader(payload)))
	assert.True(t, fs.Exists("A1B2C3D4E5.png"))

	reader, err := fs.Get("A1B2C3D4E5.png")
	require.NoError(t, err)
	defer reader.Close()

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

// TestFileStorageDelete тестирует удаление артефакта
func TestFileStorageDelete(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	require.NoError(t, fs.Save("barcodes/X.png", bytes.NewReader([]byte("x"))))
	require.NoError(t, fs.Delete("barcodes/X.png"))
	assert.False(t, fs.Exists("barcodes/X.png"))
}

// TestFileStorageMissing тестирует доступ к несуществующему файлу
func TestFileStorageMissing(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	assert.False(t, fs.Exists("missing.png"))

	_, err := fs.Get("missing.png")
	assert.Error(t, err)
}
