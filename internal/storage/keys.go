package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix is the namespace every generated document key lives under.
const KeyPrefix = "documents"

// KeyGenerator produces collision-resistant storage keys.
// Keys must never be derived from client-supplied text.
type KeyGenerator interface {
	NewKey(mimeType string) string
}

// KeyGeneratorFunc adapts a plain function to KeyGenerator.
type KeyGeneratorFunc func(mimeType string) string

// NewKey calls f.
func (f KeyGeneratorFunc) NewKey(mimeType string) string { return f(mimeType) }

// TimeRandomKeys generates documents/doc_<unix-nano>-<uuid><ext>.
// The timestamp keeps keys roughly ordered; the random UUID removes the need for any
// shared counter between concurrent uploads.
type TimeRandomKeys struct {
	Now func() time.Time
}

// NewKey implements KeyGenerator.
func (g TimeRandomKeys) NewKey(mimeType string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	name := fmt.Sprintf("doc_%d-%s%s", now().UnixNano(), uuid.NewString(), ExtensionFor(mimeType))
	return path.Join(KeyPrefix, name)
}

var extensions = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
}

// ExtensionFor maps a declared MIME type to a file extension. Unknown types get ".bin".
func ExtensionFor(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if ext, ok := extensions[mt]; ok {
		return ext
	}
	return ".bin"
}
