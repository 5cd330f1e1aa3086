package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00")
	webpHeader = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
)

func TestReadImage_Types(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ext  string
	}{
		{"png", pngHeader, ".png"},
		{"jpeg", jpegHeader, ".jpg"},
		{"gif", gifHeader, ".gif"},
		{"webp", webpHeader, ".webp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ReadImage(bytes.NewReader(tt.data), 1024)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, img.Ext)
			assert.Equal(t, tt.data, img.Data)
		})
	}
}

func TestReadImage_Rejects(t *testing.T) {
	_, err := ReadImage(bytes.NewReader(nil), 1024)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ReadImage(strings.NewReader("<html><body>hi</body></html>"), 1024)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ReadImage(strings.NewReader("%PDF-1.7"), 1024)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	big := append(append([]byte{}, pngHeader...), make([]byte, 100)...)
	_, err = ReadImage(bytes.NewReader(big), 64)
	assert.ErrorIs(t, err, ErrTooLarge)

	exact := append(append([]byte{}, pngHeader...), make([]byte, 64-len(pngHeader))...)
	_, err = ReadImage(bytes.NewReader(exact), 64)
	assert.NoError(t, err)
}

func TestLocalImageStore_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalImageStore(filepath.Join(dir, "uploads"), "/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Save(ctx, Image{Data: pngHeader, Ext: ".png"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	path := filepath.Join(store.Dir(), strings.TrimPrefix(url, "/uploads/"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	other, err := store.Save(ctx, Image{Data: pngHeader, Ext: ".png"})
	require.NoError(t, err)
	assert.NotEqual(t, url, other)

	require.NoError(t, store.Delete(ctx, url))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.NoError(t, store.Delete(ctx, url), "deleting twice is fine")
	assert.NoError(t, store.Delete(ctx, "https://cdn.example.com/x.png"))
	assert.NoError(t, store.Delete(ctx, "/uploads/../secrets"))
}
