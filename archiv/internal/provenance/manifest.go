package provenance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/parse"
)

// ManifestEntry records one retrieval of one document.
type ManifestEntry struct {
	Path               string       `json:"path"` // relative to the session dir, slash-separated
	URL                string       `json:"url"`
	Title              string       `json:"title"`
	Category           string       `json:"category,omitempty"`
	DocumentType       doctype.Type `json:"document_type"`
	TopAssociation     string       `json:"top_association,omitempty"`
	SHA1               string       `json:"sha1"`
	ContentType        string       `json:"content_type,omitempty"`
	ContentDisposition string       `json:"content_disposition,omitempty"`
	ContentLength      int64        `json:"content_length"`
	ETag               string       `json:"etag,omitempty"`
	LastModified       string       `json:"last_modified,omitempty"`
	RetrievedAt        string       `json:"retrieved_at"` // RFC 3339 UTC
}

// UnmarshalJSON also accepts the older "agenda_item" key for the TOP.
func (e *ManifestEntry) UnmarshalJSON(data []byte) error {
	type plain ManifestEntry
	var aux struct {
		plain
		AgendaItem string `json:"agenda_item"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = ManifestEntry(aux.plain)
	if e.TopAssociation == "" {
		e.TopAssociation = aux.AgendaItem
	}
	return nil
}

// SessionStatus is the processing state of a session directory.
type SessionStatus string

const (
	StatusComplete SessionStatus = "complete"
	StatusPartial  SessionStatus = "partial"
)

// SessionInfo is the session header of a manifest.
type SessionInfo struct {
	parse.SessionReference
	Status    SessionStatus `json:"status,omitempty"`
	RunID     string        `json:"run_id,omitempty"`
	UpdatedAt string        `json:"updated_at,omitempty"`
}

// Manifest is the append-only provenance log of a session directory.
type Manifest struct {
	Session SessionInfo     `json:"session"`
	Entries []ManifestEntry `json:"entries"`
}

// UnmarshalJSON also accepts the older "documents" key for the entries.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var aux struct {
		Session   SessionInfo     `json:"session"`
		Entries   []ManifestEntry `json:"entries"`
		Documents []ManifestEntry `json:"documents"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Session = aux.Session
	m.Entries = aux.Entries
	if m.Entries == nil {
		m.Entries = aux.Documents
	}
	return nil
}

type slot struct{ url, top string }

// Current returns the latest entry per (url, top_association) slot, in
// order of first appearance.
func (m *Manifest) Current() []ManifestEntry {
	latest := make(map[slot]int)
	var order []slot
	for i, e := range m.Entries {
		k := slot{e.URL, e.TopAssociation}
		if _, ok := latest[k]; !ok {
			order = append(order, k)
		}
		latest[k] = i
	}
	out := make([]ManifestEntry, 0, len(order))
	for _, k := range order {
		out = append(out, m.Entries[latest[k]])
	}
	return out
}

// CurrentFor returns the current entry of one slot.
func (m *Manifest) CurrentFor(url, top string) (ManifestEntry, bool) {
	for i := len(m.Entries) - 1; i >= 0; i-- {
		if e := m.Entries[i]; e.URL == url && e.TopAssociation == top {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// ByHash returns the most recent entry whose content has the given hash.
func (m *Manifest) ByHash(sum string) (ManifestEntry, bool) {
	for i := len(m.Entries) - 1; i >= 0; i-- {
		if m.Entries[i].SHA1 == sum {
			return m.Entries[i], true
		}
	}
	return ManifestEntry{}, false
}

// HasTop reports whether any current entry belongs to the given TOP.
func (m *Manifest) HasTop(top string) bool {
	for _, e := range m.Current() {
		if e.TopAssociation == top {
			return true
		}
	}
	return false
}

// LoadManifest reads dir/manifest.json. A missing file yields an empty
// manifest; a bare JSON array of entries is accepted as well.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("provenance: read manifest: %w", err)
	}
	m := &Manifest{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &m.Entries)
	} else {
		err = json.Unmarshal(trimmed, m)
	}
	if err != nil {
		return nil, fmt.Errorf("provenance: decode manifest %s: %w", dir, err)
	}
	return m, nil
}

// Save writes the manifest atomically to dir/manifest.json.
func (m *Manifest) Save(dir string) error {
	data, err := marshalIndent(m)
	if err != nil {
		return fmt.Errorf("provenance: encode manifest: %w", err)
	}
	return WriteRaw(filepath.Join(dir, ManifestFile), data)
}

// marshalIndent encodes v as indented JSON without HTML escaping.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
