package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen is how many leading bytes are used to detect the content type.
const sniffLen = 3072

// DiskBlobStore keeps uploaded files in a directory served as static content.
// Stored names are random, only the extension is derived from the content.
type DiskBlobStore struct {
	log     *slog.Logger
	root    string
	baseURL string
}

func NewDiskBlobStore(log *slog.Logger, root, baseURL string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob directory: %w", err)
	}
	return &DiskBlobStore{log: log, root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put stores content and returns the public URL of the file.
func (d *DiskBlobStore) Put(ctx context.Context, filename string, content io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	ext := mtype.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(filename))
	}
	name := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(d.root, name))
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), contextReader{ctx: ctx, r: content}))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}

	d.log.Debug("Blob stored", "name", name, "original", filename, "mime", mtype.String(), "size", written)
	return d.baseURL + "/" + name, nil
}

// contextReader stops a copy once the request is gone.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
