package archiv

import (
	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/export"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
)

// Aliases for callers outside the archiv tree.
type (
	DocumentType  = doctype.Type
	ExportFilter  = export.Filter
	Batch         = export.Batch
	Record        = export.Record
	ImportStats   = export.ImportStats
	BuildStats    = index.BuildStats
	Session       = index.Session
	SessionFilter = index.SessionFilter
	Document      = index.Document
)

// EncodeBatch renders a batch as written by ExportFile.
func EncodeBatch(b *Batch) ([]byte, error) { return export.Encode(b) }
