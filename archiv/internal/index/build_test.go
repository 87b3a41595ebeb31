package index

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/content"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/parse"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/provenance"
	"github.com/hazyhaar/ratsarchiv/dbopen"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New(context.Background(), dbopen.OpenMemory(t))
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	return ix
}

func strPtr(s string) *string { return &s }

// writeSession lays out one session directory the way the provenance
// writer does and returns its path.
func writeSession(t *testing.T, root string, info provenance.SessionInfo, entries []provenance.ManifestEntry,
	summary []provenance.AgendaSummaryEntry, files map[string]string) string {
	t.Helper()
	dir := provenance.SessionDir(root, info.SessionReference)
	for rel, body := range files {
		if err := provenance.WriteRaw(filepath.Join(dir, filepath.FromSlash(rel)), []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := provenance.WriteRaw(filepath.Join(dir, provenance.DetailFile), []byte("<html></html>")); err != nil {
		t.Fatal(err)
	}
	m := &provenance.Manifest{Session: info, Entries: entries}
	if err := m.Save(dir); err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(summary)
	if err := os.WriteFile(filepath.Join(dir, provenance.AgendaSummaryFile), data, 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

var (
	ratSession = parse.SessionReference{
		ID: "6773", Committee: "Rat der Stadt", MeetingName: "Sitzung des Rates",
		Date: "2025-10-04", StartTime: "19:00", Location: "Rathaus Oldendorf",
		DetailURL: "https://ratsinfo.example.org/si0057.asp?__ksinr=6773",
	}
	finanzSession = parse.SessionReference{
		ID: "6790", Committee: "Ausschuss für Finanzen", Date: "2025-10-12",
		DetailURL: "https://ratsinfo.example.org/si0057.asp?__ksinr=6790",
	}
)

const haushaltText = "Beschlussvorschlag: Der Rat beschließt den Haushalt.\nBegründung: Gesetz."

// writeFixtureTree writes two sessions: four current documents, one of them
// without a stored file.
func writeFixtureTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeSession(t, root,
		provenance.SessionInfo{SessionReference: ratSession, Status: provenance.StatusComplete},
		[]provenance.ManifestEntry{
			{Path: "session-documents/bekanntmachung.txt", URL: "https://ratsinfo.example.org/getfile.asp?id=100",
				Title: "Bekanntmachung", Category: "BM", DocumentType: doctype.Bekanntmachung,
				SHA1: "aaa", ContentType: "text/plain", RetrievedAt: "2025-10-05T08:00:00Z"},
			{Path: "agenda/oe-1_haushalt-2025/vorlage-haushalt.txt", URL: "https://ratsinfo.example.org/getfile.asp?id=200",
				Title: "Vorlage Haushalt", Category: "VO", TopAssociation: "Ö 1",
				SHA1: "old", ContentType: "text/plain", RetrievedAt: "2025-10-01T08:00:00Z"},
			{Path: "agenda/oe-1_haushalt-2025/vorlage-haushalt.txt", URL: "https://ratsinfo.example.org/getfile.asp?id=200",
				Title: "Vorlage Haushalt", Category: "VO", TopAssociation: "Ö 1",
				SHA1: "bbb", ContentType: "text/plain", RetrievedAt: "2025-10-05T08:00:00Z"},
			{Path: "agenda/oe-2_mitteilungen/niederschrift.pdf", URL: "https://ratsinfo.example.org/getfile.asp?id=300",
				Title: "Niederschrift", Category: "PR", TopAssociation: "Ö 2",
				SHA1: "ccc", ContentType: "application/pdf", RetrievedAt: "2025-10-05T08:00:00Z"},
		},
		[]provenance.AgendaSummaryEntry{
			{Number: "Ö 1", Title: "Haushalt 2025", RawStatus: "beschlossen", Decision: strPtr("accepted"), DocumentsPresent: true},
			{Number: "Ö 2", Title: "Mitteilungen", RawStatus: "angenommen, abgelehnt", NeedsReview: true, DocumentsPresent: true},
		},
		map[string]string{
			"session-documents/bekanntmachung.txt":           "Einladung zur Sitzung des Rates",
			"agenda/oe-1_haushalt-2025/vorlage-haushalt.txt": haushaltText,
		})
	writeSession(t, root,
		provenance.SessionInfo{SessionReference: finanzSession, Status: provenance.StatusPartial},
		[]provenance.ManifestEntry{
			{Path: "agenda/oe-1_foerderrichtlinie/bv.txt", URL: "https://ratsinfo.example.org/getfile.asp?id=400",
				Title: "Beschlussvorlage Förderrichtlinie", Category: "BV", TopAssociation: "Ö 1",
				SHA1: "ddd", ContentType: "text/plain", RetrievedAt: "2025-10-13T08:00:00Z"},
		},
		[]provenance.AgendaSummaryEntry{
			{Number: "Ö 1", Title: "Förderrichtlinie", DocumentsPresent: true},
		},
		map[string]string{"agenda/oe-1_foerderrichtlinie/bv.txt": "Beschluss: einstimmig"})
	return root
}

func TestBuild_ProjectsSessionTree(t *testing.T) {
	// WHAT: Sessions, agenda items and current documents land in the index.
	ctx := context.Background()
	root := writeFixtureTree(t)
	ix := newTestIndex(t)

	stats, err := ix.Build(ctx, root, BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if stats.Sessions != 2 || stats.AgendaItems != 3 || stats.Documents != 4 {
		t.Fatalf("stats = %+v", stats)
	}

	docs, err := ix.Documents(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, d := range docs {
		titles = append(titles, d.Title)
	}
	want := []string{"Bekanntmachung", "Vorlage Haushalt", "Niederschrift", "Beschlussvorlage Förderrichtlinie"}
	if !reflect.DeepEqual(titles, want) {
		t.Fatalf("order = %v, want %v", titles, want)
	}

	ratDir := "2025/10/" + provenance.SessionDirName(ratSession)
	if docs[0].LocalPath != ratDir+"/session-documents/bekanntmachung.txt" {
		t.Errorf("local_path = %q", docs[0].LocalPath)
	}
	if docs[1].SHA1 != "bbb" || docs[1].DocumentType != doctype.Vorlage || docs[1].TopTitle != "Haushalt 2025" {
		t.Errorf("current entry = %+v", docs[1])
	}
	if docs[2].LocalPath != "" || docs[2].DocumentType != doctype.Protokoll {
		t.Errorf("missing file row = %+v", docs[2])
	}
	if docs[3].Committee != "Ausschuss für Finanzen" || docs[3].DocumentType != doctype.Beschlussvorlage {
		t.Errorf("second session row = %+v", docs[3])
	}

	s, err := ix.Session(ctx, "6773")
	if err != nil {
		t.Fatal(err)
	}
	if s.Year != 2025 || s.Month != 10 || s.StartTime != "19:00" || s.Path != ratDir || s.Status != "complete" {
		t.Errorf("session = %+v", s)
	}
	items, _ := ix.AgendaItems(ctx, "6773")
	if len(items) != 2 || items[1].Decision != nil || !items[1].NeedsReview {
		t.Errorf("agenda = %+v", items)
	}
}

func TestBuild_Queries(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)
	if _, err := ix.Build(ctx, writeFixtureTree(t), BuildOptions{}); err != nil {
		t.Fatal(err)
	}

	local, _ := ix.Documents(ctx, Filter{RequireLocalPath: true})
	if len(local) != 3 {
		t.Errorf("require local path: %d docs", len(local))
	}
	bv, _ := ix.Documents(ctx, Filter{DocumentTypes: []doctype.Type{doctype.Beschlussvorlage}})
	if len(bv) != 1 || bv[0].SessionID != "6790" {
		t.Errorf("type filter = %+v", bv)
	}
	ranged, _ := ix.Documents(ctx, Filter{DateFrom: "2025-10-05", DateTo: "2025-10-31"})
	if len(ranged) != 1 {
		t.Errorf("date filter: %d docs", len(ranged))
	}
	byCommittee, _ := ix.Sessions(ctx, SessionFilter{Committee: "Rat der Stadt"})
	if len(byCommittee) != 1 || byCommittee[0].ID != "6773" {
		t.Errorf("sessions by committee = %+v", byCommittee)
	}
	october, _ := ix.Sessions(ctx, SessionFilter{Year: 2025, Month: 10})
	if len(october) != 2 {
		t.Errorf("sessions in month: %d", len(october))
	}

	dist, err := ix.TypeDistribution(ctx)
	if err != nil {
		t.Fatal(err)
	}
	wantDist := map[doctype.Type]int{doctype.Bekanntmachung: 1, doctype.Vorlage: 1, doctype.Protokoll: 1, doctype.Beschlussvorlage: 1}
	if !reflect.DeepEqual(dist, wantDist) {
		t.Errorf("distribution = %v", dist)
	}

	st, err := ix.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Sessions: 2, PartialSessions: 1, AgendaItems: 3, NeedsReview: 1, Documents: 4, LocalFiles: 3,
		FirstDate: "2025-10-04", LastDate: "2025-10-12"}
	if *st != want {
		t.Errorf("stats = %+v, want %+v", *st, want)
	}

	if _, err := ix.Session(ctx, "9999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown session err = %v", err)
	}
}

func TestBuild_RebuildSameRows(t *testing.T) {
	// WHAT: Building twice from the same tree yields the same rows.
	// WHY: The index is a projection; surrogate IDs aside it must be stable.
	ctx := context.Background()
	root := writeFixtureTree(t)
	ix := newTestIndex(t)

	snapshot := func() []Document {
		if _, err := ix.Build(ctx, root, BuildOptions{}); err != nil {
			t.Fatal(err)
		}
		docs, err := ix.Documents(ctx, Filter{})
		if err != nil {
			t.Fatal(err)
		}
		for i := range docs {
			docs[i].ID = 0
		}
		return docs
	}
	first, second := snapshot(), snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("rebuild differs:\n%+v\n%+v", first, second)
	}
	if st, _ := ix.Stats(ctx); st.Documents != 4 || st.AgendaItems != 3 {
		t.Errorf("rows duplicated: %+v", st)
	}
}

func TestBuild_SkipExisting(t *testing.T) {
	ctx := context.Background()
	root := writeFixtureTree(t)
	ix := newTestIndex(t)
	if _, err := ix.Build(ctx, root, BuildOptions{}); err != nil {
		t.Fatal(err)
	}
	stats, err := ix.Build(ctx, root, BuildOptions{SkipExisting: true})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Sessions != 0 || stats.Skipped != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBuild_ExtractContent(t *testing.T) {
	// WHAT: With ExtractContent, fields and statuses are stored per document.
	ctx := context.Background()
	ix := newTestIndex(t)
	if _, err := ix.Build(ctx, writeFixtureTree(t), BuildOptions{ExtractContent: true}); err != nil {
		t.Fatal(err)
	}
	docs, _ := ix.Documents(ctx, Filter{SessionIDs: []string{"6773"}})
	if len(docs) != 3 {
		t.Fatalf("docs = %d", len(docs))
	}

	var fields content.StructuredFields
	if err := json.Unmarshal(docs[1].StructuredFields, &fields); err != nil {
		t.Fatalf("structured_fields %q: %v", docs[1].StructuredFields, err)
	}
	if fields.DecisionText != "Der Rat beschließt den Haushalt." || fields.Rationale != "Gesetz." {
		t.Errorf("fields = %+v", fields)
	}
	if docs[1].ExtractionStatus != string(content.StatusPartial) {
		t.Errorf("extraction_status = %q", docs[1].ExtractionStatus)
	}
	if docs[0].StructuredFields != nil {
		t.Errorf("non-prioritized type got fields %s", docs[0].StructuredFields)
	}
	if docs[2].ExtractionStatus != string(content.StatusMissingFile) {
		t.Errorf("missing file status = %q", docs[2].ExtractionStatus)
	}
}

func TestBuild_LegacyLayoutAndFormats(t *testing.T) {
	// WHAT: A year-level session dir with object-form artifacts is indexed.
	root := t.TempDir()
	dir := filepath.Join(root, "2025", "2025-06-05_Rat_123")
	files := map[string]string{
		provenance.ManifestFile: `{"session":{"id":"123","committee":"Rat","meeting_name":"Ratssitzung","date":"2025-06-05"},
"documents":[{"title":"Dokument","category":"PR","agenda_item":"Ö 1","url":"https://example.org/doc.pdf","path":"session-documents/doc.pdf","sha1":"abc123","retrieved_at":"2025-06-05T10:00:00Z","content_type":"application/pdf","content_length":1234}]}`,
		provenance.AgendaSummaryFile: `{"agenda_items":[{"number":"Ö 1","title":"Test TOP","status":"beschlossen","decision":"accepted","documents_present":true}]}`,
		"session-documents/doc.pdf":   "%PDF-1.4",
	}
	for rel, body := range files {
		if err := provenance.WriteRaw(filepath.Join(dir, filepath.FromSlash(rel)), []byte(body)); err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	ix := newTestIndex(t)
	if _, err := ix.Build(ctx, root, BuildOptions{}); err != nil {
		t.Fatal(err)
	}
	docs, _ := ix.Documents(ctx, Filter{})
	if len(docs) != 1 {
		t.Fatalf("docs = %d", len(docs))
	}
	d := docs[0]
	if d.DocumentType != doctype.Protokoll || d.TopNumber != "Ö 1" || d.TopTitle != "Test TOP" {
		t.Errorf("doc = %+v", d)
	}
	if d.LocalPath != "2025/2025-06-05_Rat_123/session-documents/doc.pdf" || d.RetrievedAt != "2025-06-05T10:00:00Z" {
		t.Errorf("provenance = %q %q", d.LocalPath, d.RetrievedAt)
	}
}

func TestInsertDocument_NormalizesType(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)
	if err := ix.UpsertSession(ctx, Session{ID: "1", Date: "2024-03-01", Committee: "Rat"}); err != nil {
		t.Fatal(err)
	}
	for _, d := range []Document{
		{SessionID: "1", Title: "Altwert", URL: "u1", DocumentType: "niederschrift"},
		{SessionID: "1", Title: "Beschlussvorlage 2024/7", URL: "u2"},
	} {
		if err := ix.InsertDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	dist, _ := ix.TypeDistribution(ctx)
	if dist[doctype.Protokoll] != 1 || dist[doctype.Beschlussvorlage] != 1 {
		t.Errorf("distribution = %v", dist)
	}
	s, _ := ix.Session(ctx, "1")
	if s.Year != 2024 || s.Month != 3 {
		t.Errorf("derived year/month = %d/%d", s.Year, s.Month)
	}

	if err := ix.InsertDocument(ctx, Document{SessionID: "missing", URL: "u3"}); err == nil {
		t.Error("document without session accepted")
	}
}
