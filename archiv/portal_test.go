package archiv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
)

const overviewOct2025 = `<html><body>
<table id="smc_page_si0040_contenttable1">
<tr><th>Gremium</th><th>Sitzung</th><th>Datum</th><th>Zeit</th><th>Ort</th></tr>
<tr><td>Ortsrat Oldendorf</td><td><a href="si0057.asp?__ksinr=6773">Sitzung Ortsrat Oldendorf</a></td><td>04.10.2025</td><td>19:00 Uhr</td><td>Rathaus Oldendorf</td></tr>
<tr><td>Ausschuss für Finanzen und Beteiligungen</td><td><a href="si0057.asp?__ksinr=6790">Sitzung Finanzen und Beteiligungen</a></td><td>12.10.2025</td><td>17:30 Uhr</td><td>Rathaus, Ratssaal</td></tr>
<tr><td>Stadtrat Melle</td><td><a href="si0057.asp?__ksinr=6801">Stadtrat Melle</a></td><td>23.10.2025</td><td>18:00 Uhr</td><td>Stadthalle Melle</td></tr>
</table>
</body></html>`

const detail6773 = `<html><body>
<h1>Sitzung Ortsrat Oldendorf</h1>
<div class="smc-documents">
<a href="getfile.asp?id=100&type=do" data-category="BM">Amtliche Bekanntmachung</a>
<a href="getfile.asp?id=101&type=do" data-category="PR">Protokoll öffentlich</a>
</div>
<table id="smc_page_si0057_contenttable1">
<tr><th>TOP</th><th>Betreff</th><th>Beschluss</th></tr>
<tr><td>Ö 1</td><td>Genehmigung des Protokolls vom 25.06.2025
  <a href="getfile.asp?id=200&type=do" data-category="VO">Vorlage Protokoll</a></td><td>beschlossen</td></tr>
<tr><td>Ö 2</td><td>Haushalt 2025
  <a href="getfile.asp?id=201&type=do">Entwurf</a> <a href="getfile.asp?id=202&type=do">Anlage</a></td><td>abgelehnt</td></tr>
<tr><td>Ö 3</td><td>Mitteilungen</td><td></td></tr>
</table>
</body></html>`

const detail6790Format = `<html><body>
<table id="smc_page_si0057_contenttable1">
<tr><th>TOP</th><th>Betreff</th><th>Beschluss</th></tr>
<tr><td>Ö 1</td><td>Haushaltssatzung 2026
  <a href="getfile.asp?id=300&type=do" data-category="BV">Beschlussvorlage Haushalt</a>%s</td><td>einstimmig beschlossen</td></tr>
</table>
</body></html>`

const detailBroken = `<html><body><div>Seite nicht gefunden</div></body></html>`

// portal is a fake council portal. Documents answer GET and HEAD with a
// stable ETag; missingDoc adds a reference to a document that 404s.
type portal struct {
	srv        *httptest.Server
	missingDoc bool
	failAll    bool

	mu      sync.Mutex
	docGETs int
	docHEAD int
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	p := &portal{}
	p.srv = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *portal) serve(w http.ResponseWriter, r *http.Request) {
	if p.failAll {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	switch r.URL.Path {
	case "/bi/si0040.asp":
		if q.Get("month") != "10" || q.Get("year") != "2025" {
			w.Write([]byte(`<html><body><p>Keine Sitzungen vorhanden.</p></body></html>`))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(overviewOct2025))
	case "/bi/si0057.asp":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch q.Get("__ksinr") {
		case "6773":
			w.Write([]byte(detail6773))
		case "6790":
			extra := ""
			if p.missingDoc {
				extra = ` <a href="getfile.asp?id=404&type=do">Anlage fehlt</a>`
			}
			fmt.Fprintf(w, detail6790Format, extra)
		case "6801":
			w.Write([]byte(detailBroken))
		default:
			http.NotFound(w, r)
		}
	case "/bi/getfile.asp":
		id := q.Get("id")
		if id == "404" {
			http.NotFound(w, r)
			return
		}
		body := []byte("%PDF-1.4 document " + id)
		p.mu.Lock()
		if r.Method == http.MethodHead {
			p.docHEAD++
		} else {
			p.docGETs++
		}
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("ETag", `"doc-`+id+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write(body)
	default:
		http.NotFound(w, r)
	}
}

func (p *portal) counts() (gets, heads int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.docGETs, p.docHEAD
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		BaseURL:           baseURL + "/bi/",
		RequestsPerSecond: 1000,
		Year:              2025,
		Months:            []int{10},
		RawRoot:           filepath.Join(dir, "raw"),
		IndexPath:         filepath.Join(dir, "index.db"),
		ExportPath:        filepath.Join(dir, "export.json"),
	}
}

func newTestService(t *testing.T, cfg *Config) *Service {
	t.Helper()
	svc, err := New(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}
