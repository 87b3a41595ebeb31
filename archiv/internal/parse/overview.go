package parse

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	dateRe = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	timeRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

// emptyMarkers indicate a legitimately empty calendar page.
var emptyMarkers = []string{"keine sitzungen", "keine einträge", "keine termine", "keine eintraege"}

type overviewStrategy struct {
	name   string
	locate func(doc *html.Node) *html.Node
	rows   func(table *html.Node, pageURL string) []SessionReference
}

// overviewStrategies are tried in order.
var overviewStrategies = []overviewStrategy{
	{name: "table-id", locate: locateOverviewByID, rows: positionalRows},
	{name: "caption", locate: locateOverviewByCaption, rows: classifiedRows},
	{name: "heuristic", locate: locateOverviewByShape, rows: classifiedRows},
}

// ParseOverview extracts session references from a monthly calendar page.
func ParseOverview(raw []byte, pageURL string) ([]SessionReference, error) {
	sessions, _, err := parseOverview(raw, pageURL)
	return sessions, err
}

// ParseOverviewStrategy is ParseOverview that also reports the strategy used.
func ParseOverviewStrategy(raw []byte, pageURL string) ([]SessionReference, string, error) {
	return parseOverview(raw, pageURL)
}

func parseOverview(raw []byte, pageURL string) ([]SessionReference, string, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse: overview %s: %w", pageURL, err)
	}
	for _, s := range overviewStrategies {
		table := s.locate(doc)
		if table == nil {
			continue
		}
		refs := dedupeSessions(s.rows(table, pageURL))
		if len(refs) == 0 {
			return nil, s.name, fmt.Errorf("%w: overview %s: strategy %s matched but yielded no sessions",
				ErrStructuralMismatch, pageURL, s.name)
		}
		return refs, s.name, nil
	}
	body := strings.ToLower(text(doc, nil))
	for _, m := range emptyMarkers {
		if strings.Contains(body, m) {
			return []SessionReference{}, "empty", nil
		}
	}
	return nil, "", fmt.Errorf("%w: overview %s", ErrStructuralMismatch, pageURL)
}

func isDetailHref(href string) bool {
	h := strings.ToLower(href)
	return strings.Contains(h, "si005") || strings.Contains(h, "ksinr=") ||
		strings.Contains(h, "silfdnr=") || strings.Contains(h, "__kvid=")
}

func detailLink(n *html.Node) *html.Node {
	return findFirst(n, func(c *html.Node) bool {
		return isElem(c, atom.A) && isDetailHref(attr(c, "href"))
	})
}

func hasDetailLink(table *html.Node) bool {
	for _, tr := range tableRows(table) {
		if detailLink(tr) != nil {
			return true
		}
	}
	return false
}

func locateOverviewByID(doc *html.Node) *html.Node {
	for _, t := range tables(doc) {
		if (attrContains(t, "id", "contenttable") || attrContains(t, "id", "si0040")) && hasDetailLink(t) {
			return t
		}
	}
	return nil
}

func locateOverviewByCaption(doc *html.Node) *html.Node {
	for _, t := range tables(doc) {
		c := strings.ToLower(caption(t))
		if c == "" {
			continue
		}
		if (strings.Contains(c, "sitzung") || strings.Contains(c, "termin") || strings.Contains(c, "kalender")) && hasDetailLink(t) {
			return t
		}
	}
	return nil
}

func locateOverviewByShape(doc *html.Node) *html.Node {
	for _, t := range tables(doc) {
		for _, tr := range tableRows(t) {
			if len(dataCells(tr)) >= 3 && detailLink(tr) != nil {
				return t
			}
		}
	}
	return nil
}

// positionalRows reads committee | meeting link | date | time | location.
func positionalRows(table *html.Node, pageURL string) []SessionReference {
	var out []SessionReference
	for _, tr := range tableRows(table) {
		tds := dataCells(tr)
		if len(tds) < 4 {
			continue
		}
		link := detailLink(tr)
		if link == nil {
			continue
		}
		date := normalizeDate(text(tds[2], nil))
		if date == "" {
			continue
		}
		ref := SessionReference{
			Committee:   text(tds[0], nil),
			MeetingName: text(link, nil),
			Date:        date,
			StartTime:   normalizeTime(text(tds[3], nil)),
			DetailURL:   absolute(pageURL, attr(link, "href")),
		}
		if len(tds) > 4 {
			ref.Location = text(tds[4], nil)
		}
		ref.ID = sessionIDFromURL(ref.DetailURL)
		out = append(out, ref)
	}
	return out
}

// classifiedRows locates each field by CSS class, falling back to patterns.
func classifiedRows(table *html.Node, pageURL string) []SessionReference {
	var out []SessionReference
	for _, tr := range tableRows(table) {
		link := detailLink(tr)
		if link == nil {
			continue
		}
		rowText := text(tr, nil)
		date := normalizeDate(textByClass(tr, "siday", "date", "datum"))
		if date == "" {
			date = normalizeDate(rowText)
		}
		if date == "" {
			continue
		}
		start := normalizeTime(textByClass(tr, "sitime", "time", "zeit"))
		if start == "" {
			start = normalizeTime(rowText)
		}

		meeting := text(link, nil)
		committee := textByClass(tr, "smc-el-h", "gremium", "committee")
		location := textByClass(tr, "silort", "siort", "location", "raum")

		if committee == "" || location == "" {
			// Plain cells: the first unclassified text cell is the committee,
			// the last one the location.
			var rest []string
			for _, td := range dataCells(tr) {
				t := text(td, nil)
				if t == "" || detailLink(td) != nil || dateRe.MatchString(t) || timeRe.MatchString(t) {
					continue
				}
				rest = append(rest, t)
			}
			if committee == "" && len(rest) > 0 {
				committee = rest[0]
			}
			if location == "" && len(rest) > 1 {
				location = rest[len(rest)-1]
			}
		}
		if committee == "" {
			committee = meeting
		}

		ref := SessionReference{
			Committee:   committee,
			MeetingName: meeting,
			Date:        date,
			StartTime:   start,
			Location:    location,
			DetailURL:   absolute(pageURL, attr(link, "href")),
		}
		ref.ID = sessionIDFromURL(ref.DetailURL)
		out = append(out, ref)
	}
	return out
}

func textByClass(n *html.Node, subs ...string) string {
	el := findFirst(n, func(c *html.Node) bool {
		if c.Type != html.ElementNode {
			return false
		}
		for _, s := range subs {
			if classContains(c, s) {
				return true
			}
		}
		return false
	})
	return text(el, nil)
}

func dedupeSessions(in []SessionReference) []SessionReference {
	seen := make(map[string]bool, len(in))
	out := make([]SessionReference, 0, len(in))
	for _, r := range in {
		key := r.DetailURL
		if r.ID != "" {
			key = r.ID
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// normalizeDate turns the first DD.MM.YYYY in s into YYYY-MM-DD.
func normalizeDate(s string) string {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[3] + "-" + pad2(m[2]) + "-" + pad2(m[1])
}

// normalizeTime turns the first H:MM in s into HH:MM.
func normalizeTime(s string) string {
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return pad2(m[1]) + ":" + m[2]
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
