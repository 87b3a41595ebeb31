// CLAUDE:SUMMARY Provenance Writer: deterministic raw-root layout, append-only manifests, agenda summaries, atomic writes and legacy layout migration.
// CLAUDE:EXPORTS Writer, Source, SyncResult, FailedDocument, ManifestEntry, Manifest, AgendaSummaryEntry, Revalidate, Slug, ShortTitle, DetectExtension, WriteRaw, MigrateLegacyLayout, ResolveLocalPath
// Package provenance stores every fetched artifact under a deterministic
// directory layout and records where each byte came from.
//
//	<root>/<year>/<month>/<year>-<month>_overview.html
//	<root>/<year>/<month>/<date>_<committee>_<id>/
//	    session_detail.html
//	    manifest.json
//	    agenda_summary.json
//	    session-documents/
//	    agenda/<top>_<short-title>/
package provenance

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/parse"
)

const (
	ManifestFile      = "manifest.json"
	AgendaSummaryFile = "agenda_summary.json"
	DetailFile        = "session_detail.html"
	SessionDocsDir    = "session-documents"
	AgendaDir         = "agenda"

	maxShortTitle = 60
)

var reporterTail = regexp.MustCompile(`(?i)[\s,;\-–]*\bBerichterstatter(?:in)?\b.*$`)

// Slug keeps Unicode letters and digits and replaces every other run of
// characters with a single dash.
func Slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(sb.String(), "-")
}

// ShortTitle slugs title without its reporter phrase, capped at 60 runes
// and cut back to a dash boundary.
func ShortTitle(title string) string {
	return capSlug(Slug(reporterTail.ReplaceAllString(title, "")), maxShortTitle)
}

func capSlug(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)[:max]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, '-'); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, "-")
}

// OverviewPath returns the storage path of a monthly overview page.
func OverviewPath(root string, year, month int) string {
	y, m := fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month)
	return filepath.Join(root, y, m, y+"-"+m+"_overview.html")
}

// SessionDirName is <date>_<committee-slug>_<session-id>. Every component
// is slugged, so portal values never add path segments.
func SessionDirName(s parse.SessionReference) string {
	name := Slug(s.Date) + "_" + capSlug(Slug(s.Committee), maxShortTitle)
	if id := Slug(s.ID); id != "" {
		name += "_" + id
	}
	return name
}

// SessionDir returns the directory of a session under root.
func SessionDir(root string, s parse.SessionReference) string {
	return filepath.Join(root, Slug(s.Year()), Slug(s.Month()), SessionDirName(s))
}

// AgendaDirName is agenda/<top-slug>_<short-title>, relative to the session dir.
func AgendaDirName(item parse.AgendaItem) string {
	name := Slug(item.Number)
	if short := ShortTitle(item.Title); short != "" {
		name += "_" + short
	}
	return filepath.ToSlash(filepath.Join(AgendaDir, name))
}
