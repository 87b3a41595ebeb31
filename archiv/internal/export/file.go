package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/provenance"
)

// Encode renders b as indented JSON without HTML escaping.
func Encode(b *Batch) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return nil, fmt.Errorf("export: encode batch: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes b to path atomically.
func WriteFile(path string, b *Batch) error {
	data, err := Encode(b)
	if err != nil {
		return err
	}
	if err := provenance.WriteRaw(path, data); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a batch written by WriteFile.
func ReadFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("export: decode %s: %w", path, err)
	}
	return &b, nil
}

// ImportStats counts what Import wrote.
type ImportStats struct {
	Sessions    int `json:"sessions"`
	AgendaItems int `json:"agenda_items"`
	Documents   int `json:"documents"`
}

// Import loads b into idx, which is expected to be empty. Sessions and
// agenda titles are reconstructed from the records.
func Import(ctx context.Context, idx *index.Index, b *Batch) (*ImportStats, error) {
	stats := &ImportStats{}
	sessions := make(map[string]bool)
	tops := make(map[[2]string]bool)
	for _, r := range b.Documents {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !sessions[r.SessionID] {
			err := idx.UpsertSession(ctx, index.Session{
				ID: r.SessionID, Date: r.Date, Committee: r.Committee, MeetingName: r.MeetingName,
			})
			if err != nil {
				return stats, err
			}
			sessions[r.SessionID] = true
			stats.Sessions++
		}
		key := [2]string{r.SessionID, r.TopNumber}
		if r.TopNumber != "" && r.TopTitle != "" && !tops[key] {
			err := idx.InsertAgendaItem(ctx, index.AgendaItem{
				SessionID: r.SessionID, TopNumber: r.TopNumber, Title: r.TopTitle, DocumentsPresent: true,
			})
			if err != nil {
				return stats, err
			}
			tops[key] = true
			stats.AgendaItems++
		}

		d := index.Document{
			SessionID:        r.SessionID,
			TopNumber:        r.TopNumber,
			Title:            r.Title,
			Category:         r.Category,
			DocumentType:     r.DocumentType,
			URL:              r.URL,
			LocalPath:        r.LocalPath,
			SHA1:             r.SHA1,
			RetrievedAt:      r.RetrievedAt,
			ContentType:      r.ContentType,
			ContentLength:    r.ContentLength,
			ExtractionStatus: string(r.ExtractionStatus),
			ParsingQuality:   string(r.ParsingQuality),
		}
		if r.StructuredFields != nil {
			raw, err := json.Marshal(r.StructuredFields)
			if err != nil {
				return stats, fmt.Errorf("export: encode fields: %w", err)
			}
			d.StructuredFields = raw
		}
		if err := idx.InsertDocument(ctx, d); err != nil {
			return stats, err
		}
		stats.Documents++
	}
	return stats, nil
}
