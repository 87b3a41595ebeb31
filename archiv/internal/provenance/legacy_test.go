package provenance

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMigrateLegacyLayout(t *testing.T) {
	// WHAT: Year-level sessions and overviews move under their month; a second pass does nothing.
	// WHY: Archives created before the month level existed must stay indexable.
	root := t.TempDir()
	touch(t, filepath.Join(root, "2026", "2026-03_overview.html"), "<html/>")
	touch(t, filepath.Join(root, "2026", "2026-03-10_Rat_7001", ManifestFile), "[]")
	touch(t, filepath.Join(root, "2026", "04", "2026-04-01_Rat_7002", ManifestFile), "[]")
	touch(t, filepath.Join(root, "2026", "notes.txt"), "keep")

	rep, err := MigrateLegacyLayout(root)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(rep.Moved) != 2 {
		t.Fatalf("moved = %v", rep.Moved)
	}
	for _, p := range []string{
		"2026/03/2026-03_overview.html",
		"2026/03/2026-03-10_Rat_7001/manifest.json",
		"2026/04/2026-04-01_Rat_7002/manifest.json",
		"2026/notes.txt",
	} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err != nil {
			t.Errorf("%s: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "2026", "2026-03-10_Rat_7001")); !os.IsNotExist(err) {
		t.Error("legacy session dir still present")
	}

	rep, err = MigrateLegacyLayout(root)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if len(rep.Moved) != 0 || len(rep.Conflicts) != 0 {
		t.Errorf("second pass = %+v", rep)
	}
}

func TestMigrateLegacyLayout_Conflict(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "2026", "2026-03-10_Rat_7001", ManifestFile), "old")
	touch(t, filepath.Join(root, "2026", "03", "2026-03-10_Rat_7001", ManifestFile), "new")

	rep, err := MigrateLegacyLayout(root)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(rep.Conflicts) != 1 || len(rep.Moved) != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestResolveLocalPath(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "2026", "03", "2026-03-10_Rat_7001", "agenda", "a.pdf"), "x")

	legacyDir := filepath.Join(root, "2026", "2026-03-10_Rat_7001")
	got, ok := ResolveLocalPath(legacyDir, "agenda/a.pdf")
	want := filepath.Join(root, "2026", "03", "2026-03-10_Rat_7001", "agenda", "a.pdf")
	if !ok || got != want {
		t.Errorf("ResolveLocalPath = %q %v, want %q", got, ok, want)
	}
	if _, ok := ResolveLocalPath(legacyDir, "agenda/missing.pdf"); ok {
		t.Error("missing file resolved")
	}
	if got, ok := ResolveLocalPath(legacyDir, "../../03/2026-03-10_Rat_7001/agenda/a.pdf"); ok || got != "" {
		t.Errorf("escaping entry path resolved to %q", got)
	}
	if got := UpgradeLegacySessionPath(filepath.Join("raw", "2026", "03", "x")); got != filepath.Join("raw", "2026", "03", "x") {
		t.Errorf("non-legacy path changed: %q", got)
	}
}
