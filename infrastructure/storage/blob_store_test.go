package storage

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// smallest valid PNG header
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func TestDiskBlobStore_Put_Detects_Extension(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	store, err := NewDiskBlobStore(slog.Default(), root, "http://localhost:8080/files/")
	req.NoError(err)

	// Given a PNG uploaded under a misleading name
	url, err := store.Put(context.Background(), "holiday.txt", bytes.NewReader(pngHeader))
	req.NoError(err)

	// Then the stored name follows the content
	req.True(strings.HasPrefix(url, "http://localhost:8080/files/"))
	req.True(strings.HasSuffix(url, ".png"))

	stored, err := os.ReadFile(filepath.Join(root, filepath.Base(url)))
	req.NoError(err)
	req.Equal(pngHeader, stored)
}

func TestDiskBlobStore_Put_Large_Content(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	store, err := NewDiskBlobStore(slog.Default(), root, "http://files")
	req.NoError(err)

	content := bytes.Repeat([]byte("route beta "), 2000)
	url, err := store.Put(context.Background(), "beta.txt", bytes.NewReader(content))
	req.NoError(err)
	req.True(strings.HasSuffix(url, ".txt"))

	stored, err := os.ReadFile(filepath.Join(root, filepath.Base(url)))
	req.NoError(err)
	req.Equal(content, stored)
}

func TestDiskBlobStore_Put_Canceled(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	store, err := NewDiskBlobStore(slog.Default(), root, "http://files")
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// more than the sniffed head, so the rest is read through the context
	_, err = store.Put(ctx, "big.bin", bytes.NewReader(make([]byte, 2*sniffLen)))
	req.ErrorIs(err, context.Canceled)

	entries, err := os.ReadDir(root)
	req.NoError(err)
	req.Empty(entries)
}
