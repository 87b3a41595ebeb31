package parse

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/doctype"
)

var (
	topRe      = regexp.MustCompile(`^(?i:TOP\s*)?(?:[ÖöNn]\.?\s*)?\d+[a-z]?(?:\.\d+)*\.?$`)
	reporterRe = regexp.MustCompile(`(?i)^(.*?)[\s,;\-–]*\bBerichterstatter(?:in)?\b\s*:?\s*(.*)$`)
)

type detailStrategy struct {
	name   string
	locate func(doc *html.Node) *html.Node
}

// detailStrategies locate the agenda table, in order.
var detailStrategies = []detailStrategy{
	{name: "table-id", locate: locateAgendaByID},
	{name: "caption", locate: locateAgendaByCaption},
	{name: "heuristic", locate: locateAgendaByShape},
}

var emptyAgendaMarkers = []string{"keine tagesordnung", "keine tagesordnungspunkte"}

// ParseDetail extracts session metadata, the agenda and all document links
// from a session detail page. Documents are attributed to agenda items only
// after the whole agenda table has been read.
func ParseDetail(raw []byte, pageURL string) (*SessionDetail, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("parse: detail %s: %w", pageURL, err)
	}
	meta := sessionMeta(doc, pageURL)

	for _, s := range detailStrategies {
		table := s.locate(doc)
		if table == nil {
			continue
		}
		rows := agendaRows(table)
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: detail %s: strategy %s matched but yielded no agenda rows",
				ErrStructuralMismatch, pageURL, s.name)
		}
		return assemble(doc, meta, s.name, rows, pageURL), nil
	}

	body := strings.ToLower(text(doc, nil))
	for _, m := range emptyAgendaMarkers {
		if strings.Contains(body, m) {
			return assemble(doc, meta, "empty", nil, pageURL), nil
		}
	}
	return nil, fmt.Errorf("%w: detail %s", ErrStructuralMismatch, pageURL)
}

type agendaRow struct {
	number   string
	title    string
	reporter string
	status   string
	docs     []*html.Node
}

func assemble(doc *html.Node, meta SessionReference, strategy string, rows []agendaRow, pageURL string) *SessionDetail {
	detail := &SessionDetail{Session: meta, Strategy: strategy}

	// Phase 1: agenda items without documents; remember which links belong to rows.
	owned := make(map[*html.Node]bool)
	for _, r := range rows {
		decision, conflict := InferDecision(r.status)
		detail.Agenda = append(detail.Agenda, AgendaItem{
			Number:      r.number,
			Title:       r.title,
			Reporter:    r.reporter,
			RawStatus:   r.status,
			Decision:    decision,
			NeedsReview: conflict,
		})
		for _, a := range r.docs {
			owned[a] = true
		}
	}

	// Phase 2: attribution.
	for i, r := range rows {
		seen := map[string]bool{}
		for _, a := range r.docs {
			ref := documentRef(a, pageURL, r.number)
			if seen[ref.URL] {
				continue
			}
			seen[ref.URL] = true
			detail.Agenda[i].Documents = append(detail.Agenda[i].Documents, ref)
		}
	}
	seen := map[string]bool{}
	for _, a := range anchors(doc) {
		if owned[a] || !isDocumentHref(attr(a, "href")) {
			continue
		}
		ref := documentRef(a, pageURL, "")
		if seen[ref.URL] {
			continue
		}
		seen[ref.URL] = true
		detail.SessionDocuments = append(detail.SessionDocuments, ref)
	}
	return detail
}

func locateAgendaByID(doc *html.Node) *html.Node {
	for _, t := range tables(doc) {
		if attrContains(t, "id", "tagesordnung") || attrContains(t, "class", "tagesordnung") ||
			attrContains(t, "id", "si0057_contenttable1") {
			return t
		}
	}
	return nil
}

func locateAgendaByCaption(doc *html.Node) *html.Node {
	for _, t := range tables(doc) {
		if attrContains(t, "summary", "tagesordnung") || strings.Contains(strings.ToLower(caption(t)), "tagesordnung") {
			return t
		}
	}
	return nil
}

func locateAgendaByShape(doc *html.Node) *html.Node {
	for _, t := range tables(doc) {
		for _, tr := range tableRows(t) {
			tds := dataCells(tr)
			if len(tds) >= 2 && topRe.MatchString(text(tds[0], nil)) {
				return t
			}
		}
	}
	return nil
}

func agendaRows(table *html.Node) []agendaRow {
	var out []agendaRow
	for _, tr := range tableRows(table) {
		tds := dataCells(tr)
		if len(tds) < 2 {
			continue
		}
		number := text(tds[0], nil)
		if !topRe.MatchString(number) {
			continue
		}

		var docs []*html.Node
		for _, a := range anchors(tr) {
			if isDocumentHref(attr(a, "href")) {
				docs = append(docs, a)
			}
		}
		isDoc := func(n *html.Node) bool {
			return isElem(n, atom.A) && isDocumentHref(attr(n, "href"))
		}
		isReporter := func(n *html.Node) bool {
			return n.Type == html.ElementNode && (classContains(n, "berichterst") || classContains(n, "reporter"))
		}

		titleCell := tds[1]
		title := text(titleCell, func(n *html.Node) bool { return isDoc(n) || isReporter(n) })
		reporter := ""
		if el := findFirst(titleCell, isReporter); el != nil {
			reporter = text(el, nil)
			if m := reporterRe.FindStringSubmatch(reporter); m != nil {
				reporter = strings.TrimSpace(m[2])
			}
		}
		if m := reporterRe.FindStringSubmatch(title); m != nil {
			title = strings.TrimSpace(m[1])
			if reporter == "" {
				reporter = strings.TrimSpace(m[2])
			}
		}

		status := ""
		for _, td := range tds[2:] {
			if classContains(td, "status") || classContains(td, "beschluss") {
				status = text(td, isDoc)
				break
			}
		}
		if status == "" && len(tds) > 2 && findFirst(tds[2], isDoc) == nil {
			status = text(tds[2], nil)
		}

		out = append(out, agendaRow{number: number, title: title, reporter: reporter, status: status, docs: docs})
	}
	return out
}

var documentExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true, ".odt": true, ".rtf": true, ".txt": true}

func isDocumentHref(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	if h == "" || strings.HasPrefix(h, "#") || strings.HasPrefix(h, "mailto:") || strings.HasPrefix(h, "javascript:") {
		return false
	}
	if strings.Contains(h, "getfile") || strings.Contains(h, "do0") {
		return true
	}
	p := h
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return documentExts[path.Ext(p)]
}

func documentRef(a *html.Node, pageURL, top string) DocumentReference {
	title := text(a, nil)
	if title == "" {
		title = collapse(attr(a, "title"))
	}
	ref := DocumentReference{
		Title:     title,
		Category:  documentCategory(a),
		URL:       absolute(pageURL, attr(a, "href")),
		TopNumber: top,
	}
	ref.Type = doctype.Classify(doctype.Hints{Title: ref.Title, Category: ref.Category, URL: ref.URL})
	return ref
}

// documentCategory reads the portal's category code from data-category or
// a "doctype-XX" class token.
func documentCategory(a *html.Node) string {
	if c := strings.TrimSpace(attr(a, "data-category")); c != "" {
		return strings.ToUpper(c)
	}
	for _, tok := range strings.Fields(attr(a, "class")) {
		lower := strings.ToLower(tok)
		for _, prefix := range []string{"doctype-", "smc-dotyp-"} {
			if strings.HasPrefix(lower, prefix) && len(tok) > len(prefix) {
				return strings.ToUpper(tok[len(prefix):])
			}
		}
	}
	return ""
}

// sessionMeta reads label/value rows ("Gremium", "Datum", ...) and the
// page heading.
func sessionMeta(doc *html.Node, pageURL string) SessionReference {
	ref := SessionReference{DetailURL: pageURL, ID: sessionIDFromURL(pageURL)}
	for _, t := range tables(doc) {
		for _, tr := range tableRows(t) {
			cs := cells(tr)
			if len(cs) < 2 {
				continue
			}
			label := strings.ToLower(strings.TrimSuffix(text(cs[0], nil), ":"))
			value := text(cs[1], nil)
			if value == "" {
				continue
			}
			switch label {
			case "gremium":
				ref.Committee = value
			case "sitzung", "bezeichnung", "name":
				ref.MeetingName = value
			case "datum":
				ref.Date = normalizeDate(value)
				if ref.StartTime == "" {
					ref.StartTime = normalizeTime(value)
				}
			case "zeit", "uhrzeit", "beginn":
				ref.StartTime = normalizeTime(value)
			case "raum", "ort", "sitzungsort":
				ref.Location = value
			}
		}
	}
	if ref.MeetingName == "" {
		h1 := findFirst(doc, func(n *html.Node) bool { return isElem(n, atom.H1) })
		ref.MeetingName = text(h1, nil)
	}
	return ref
}
