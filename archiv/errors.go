// CLAUDE:SUMMARY Error taxonomy of the archive: run-level sentinels plus aliases of the component errors.
package archiv

import (
	"errors"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/export"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/parse"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/transport"
)

// ErrNoProgress is returned by Acquire when no overview page could be fetched.
var ErrNoProgress = errors.New("archiv: no overview page could be fetched")

// ErrInvalidRange is returned for a year or month outside the calendar.
var ErrInvalidRange = errors.New("archiv: invalid year or month")

// ErrStructuralMismatch is returned when no parser strategy matches a page.
var ErrStructuralMismatch = parse.ErrStructuralMismatch

// ErrInvalidFilter is returned for an export filter that fails validation.
var ErrInvalidFilter = export.ErrInvalidFilter

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = index.ErrNotFound

// ErrMigrationConflict matches every MigrationConflictError.
var ErrMigrationConflict = index.ErrMigrationConflict

type (
	// TransientError is a network failure, 5xx or 429.
	TransientError = transport.TransientError
	// PermanentError is a 4xx other than 429, or an escalated transient failure.
	PermanentError = transport.PermanentError
	// MigrationConflictError reports unexpected data found by a migration step.
	MigrationConflictError = index.MigrationConflictError
)
