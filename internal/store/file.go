package store

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"gwgp-assistant-backend/internal/datauri"
)

var extByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"audio/wav":  ".wav",
	"video/mp4":  ".mp4",
}

// FileStore writes generated media to disk.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Write stores data at name (relative to the store's directory) by
// writing a temp file and renaming it into place.
func (f *FileStore) Write(name string, data []byte) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.dir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// WriteDataURI decodes uri and writes its payload. A name without an
// extension gets one from the MIME type.
func (f *FileStore) WriteDataURI(name, uri string) (string, error) {
	u, err := datauri.Parse(uri)
	if err != nil {
		return "", err
	}
	if len(u.Data) == 0 {
		return "", fmt.Errorf("empty %s payload", u.MIMEType)
	}
	if filepath.Ext(name) == "" {
		name += extension(u.MIMEType)
	}
	return f.Write(name, u.Data)
}

func extension(mimeType string) string {
	if ext, ok := extByMIME[mimeType]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
