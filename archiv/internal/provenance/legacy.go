package provenance

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/hazyhaar/ratsarchiv/safeio"
)

var (
	yearDirRe       = regexp.MustCompile(`^\d{4}$`)
	legacySessionRe = regexp.MustCompile(`^\d{4}-(\d{2})-\d{2}[-_].+$`)
	legacyOverview  = regexp.MustCompile(`^\d{4}-(\d{2})_overview\.html$`)
)

// MigrationReport lists what MigrateLegacyLayout did.
type MigrationReport struct {
	Moved     []string // new paths, relative to root
	Conflicts []string // legacy paths left in place because the target exists
}

// MigrateLegacyLayout moves <year>/<session-dir> and <year>/<year>-<month>_overview.html
// into <year>/<month>/. Running it again is a no-op.
func MigrateLegacyLayout(root string) (*MigrationReport, error) {
	rep := &MigrationReport{}
	years, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return rep, nil
	}
	if err != nil {
		return nil, fmt.Errorf("provenance: read root: %w", err)
	}
	for _, y := range years {
		if !y.IsDir() || !yearDirRe.MatchString(y.Name()) {
			continue
		}
		yearDir := filepath.Join(root, y.Name())
		entries, err := os.ReadDir(yearDir)
		if err != nil {
			return rep, fmt.Errorf("provenance: read %s: %w", yearDir, err)
		}
		for _, e := range entries {
			var m []string
			if e.IsDir() {
				m = legacySessionRe.FindStringSubmatch(e.Name())
			} else {
				m = legacyOverview.FindStringSubmatch(e.Name())
			}
			if m == nil {
				continue
			}
			src := filepath.Join(yearDir, e.Name())
			dst := filepath.Join(yearDir, m[1], e.Name())
			rel, _ := filepath.Rel(root, dst)
			if exists(dst) {
				rep.Conflicts = append(rep.Conflicts, filepath.ToSlash(filepath.Join(y.Name(), e.Name())))
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return rep, fmt.Errorf("provenance: mkdir: %w", err)
			}
			if err := os.Rename(src, dst); err != nil {
				return rep, fmt.Errorf("provenance: move %s: %w", src, err)
			}
			rep.Moved = append(rep.Moved, filepath.ToSlash(rel))
		}
	}
	return rep, nil
}

// UpgradeLegacySessionPath maps <year>/<session-dir> to <year>/<month>/<session-dir>.
// Other paths are returned unchanged.
func UpgradeLegacySessionPath(p string) string {
	base := filepath.Base(p)
	parent := filepath.Dir(p)
	if !yearDirRe.MatchString(filepath.Base(parent)) {
		return p
	}
	m := legacySessionRe.FindStringSubmatch(base)
	if m == nil {
		return p
	}
	return filepath.Join(parent, m[1], base)
}

// ResolveLocalPath locates the file of a manifest entry. sessionDir may
// still use the legacy layout; the upgraded location is tried as well.
func ResolveLocalPath(sessionDir, entryPath string) (string, bool) {
	if entryPath == "" {
		return "", false
	}
	if filepath.IsAbs(entryPath) {
		return entryPath, exists(entryPath)
	}
	first, err := safeio.SafePath(sessionDir, entryPath)
	if err != nil {
		return "", false
	}
	candidates := []string{first}
	if up := UpgradeLegacySessionPath(sessionDir); up != sessionDir {
		if p, err := safeio.SafePath(up, entryPath); err == nil {
			candidates = append(candidates, p)
		}
	}
	for _, c := range candidates {
		if exists(c) {
			return c, true
		}
	}
	return candidates[0], false
}
