package snapshot

import (
	"errors"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
)

// FormatVersion is the manifest layout written by this package.
const FormatVersion = 1

// Blob names below a snapshot name.
const (
	LogBlob      = "log"
	ManifestBlob = "manifest.json"
)

// ErrUnsupportedVersion is returned for manifests newer than FormatVersion.
var ErrUnsupportedVersion = errors.New("snapshot: unsupported manifest version")

// Manifest describes one snapshot.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	Table         string    `json:"table"`
	CreatedAt     time.Time `json:"created_at"`
	Compression   string    `json:"compression"`
	LogSize       int64     `json:"log_size"`
	Entries       []Entry   `json:"entries"`
}

// Entry is one table key. Fields holds the metadata record in its field
// form and is nil for keys that only carry a set.
type Entry struct {
	Key     string            `json:"key"`
	Fields  map[string]string `json:"fields,omitempty"`
	Members []string          `json:"members,omitempty"`
}

// BlobName joins a snapshot name and one of its blobs.
func BlobName(snapshot, blob string) string {
	return snapshot + "/" + blob
}

// Encode writes m as indented JSON.
func (m *Manifest) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// DecodeManifest reads a manifest and checks its version.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("snapshot: decode manifest: %w", err)
	}
	if m.FormatVersion < 1 || m.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.FormatVersion)
	}
	if _, err := ParseCompression(m.Compression); err != nil {
		return nil, err
	}
	return &m, nil
}
