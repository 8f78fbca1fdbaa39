// Package filex reads local files for the CLI: the session database location
// and images picked for gallery uploads.
package filex

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// LocalFile is a file read from disk together with its detected content type.
type LocalFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadLocalFile loads path and guesses its content type, first from the
// extension and then by sniffing the data.
func ReadLocalFile(path string) (*LocalFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return &LocalFile{Name: name, ContentType: ContentType(name, data), Data: data}, nil
}

// ContentType returns the media type for a file name, falling back to
// content sniffing. Parameters such as charset are dropped.
func ContentType(name string, data []byte) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
