// Package objects maps raw storage entries to the records the browser
// displays, synthesizing missing file metadata on first sight.
package objects

import (
	"strings"
	"time"

	"github.com/damacus/iron-drawer/internal/keys"
	"github.com/damacus/iron-drawer/internal/objectstore"
)

// Record is one file or folder as shown in the browser.
type Record struct {
	// ID is the persisted metadata id. Folders have none.
	ID           string
	Name         string
	Location     string
	Extension    string
	Size         int64
	LastModified time.Time
	UploadDate   time.Time
	VersionID    string
	ETag         string
	Owner        string
	IsFolder     bool
	// Raw is the entry the record was built from; mutations use Raw.Key.
	Raw objectstore.Entry
}

// Key rebuilds the storage key from the location and name.
func (r Record) Key() string {
	return keys.ToKey(r.Location, r.Name, r.IsFolder)
}

// StorageKey is the key mutations address: Raw.Key when known.
func (r Record) StorageKey() string {
	if r.Raw.Key != "" {
		return r.Raw.Key
	}
	return r.Key()
}

// Extension returns the lower-cased text after the last dot of name, or ""
// when there is no dot.
func Extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
