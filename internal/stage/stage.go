// Package stage stores the raw bytes of uploaded documents in the object
// area that the hosted search service indexes.
package stage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

var ErrObjectExists = errors.New("object already exists in stage")

type ObjectStore interface {
	// Ensure creates the object area if it does not exist yet.
	Ensure(ctx context.Context) error
	// Put writes data under name and returns the stored object path.
	Put(ctx context.Context, data []byte, name string, overwrite, compress bool) (string, error)
	Delete(ctx context.Context, objectPath string) error
}

// ObjectPath joins prefix and the base of name. Compressed objects get a .gz suffix.
func ObjectPath(prefix, name string, compress bool) string {
	base := baseName(name)
	if compress && !strings.HasSuffix(base, ".gz") {
		base += ".gz"
	}
	if prefix == "" {
		return base
	}
	return path.Join(strings.Trim(prefix, "/"), base)
}

// UniqueName prefixes the base of name with a random id, giving every upload
// its own object.
func UniqueName(name string) string {
	return uuid.NewString() + "_" + baseName(name)
}

func baseName(name string) string {
	base := path.Base(path.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if base == "/" || base == "." {
		return "unnamed"
	}
	return base
}

// Encode returns the bytes to store and their content type.
func Encode(data []byte, compress bool) ([]byte, string, error) {
	if !compress {
		return data, mimetype.Detect(data).String(), nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, "", fmt.Errorf("gzip payload failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("gzip payload failed: %w", err)
	}
	return buf.Bytes(), "application/gzip", nil
}
