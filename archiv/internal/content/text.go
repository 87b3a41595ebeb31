package content

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/encoding/charmap"
)

var (
	blankRunRe   = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLinesRe = regexp.MustCompile(`\n(?:[ \t]*\n)+`)
)

// normalizeText unifies line endings, collapses horizontal whitespace and
// blank lines.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = blankRunRe.ReplaceAllString(s, " ")
	s = blankLinesRe.ReplaceAllString(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// decodeText reads UTF-8, falling back to ISO-8859-1.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(out)
}

var (
	htmlPolicy = sync.OnceValue(bluemonday.UGCPolicy)
	mdConv     = sync.OnceValue(func() *converter.Converter {
		return converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		)
	})
)

// htmlText sanitizes an HTML document and renders it as Markdown.
func htmlText(data []byte) (string, error) {
	clean := htmlPolicy().Sanitize(decodeText(data))
	md, err := mdConv().ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("content: html to markdown: %w", err)
	}
	return md, nil
}

// docxText reads the paragraphs of word/document.xml.
func docxText(data []byte) (string, error) {
	return zipXMLText(data, "word/document.xml", map[string]bool{"p": true})
}

// odtText reads the paragraphs and headings of content.xml.
func odtText(data []byte) (string, error) {
	return zipXMLText(data, "content.xml", map[string]bool{"p": true, "h": true})
}

func zipXMLText(data []byte, member string, paragraphs map[string]bool) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("content: open zip: %w", err)
	}
	var file *zip.File
	for _, f := range zr.File {
		if f.Name == member {
			file = f
			break
		}
	}
	if file == nil {
		return "", fmt.Errorf("content: %s not found in archive", member)
	}
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("content: open %s: %w", member, err)
	}
	defer rc.Close()
	return xmlParagraphs(rc, paragraphs)
}

// xmlParagraphs concatenates character data, one line per paragraph element.
// Tabs and explicit breaks inside a paragraph become whitespace.
func xmlParagraphs(r io.Reader, paragraphs map[string]bool) (string, error) {
	dec := xml.NewDecoder(r)
	var sb, para strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("content: decode xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case paragraphs[t.Name.Local]:
				depth++
				if depth == 1 {
					para.Reset()
				}
			case t.Name.Local == "tab" || t.Name.Local == "s":
				para.WriteByte(' ')
			case t.Name.Local == "br" || t.Name.Local == "line-break":
				para.WriteByte('\n')
			}
		case xml.CharData:
			if depth > 0 {
				para.Write(t)
			}
		case xml.EndElement:
			if paragraphs[t.Name.Local] && depth > 0 {
				depth--
				if depth == 0 {
					if line := strings.TrimSpace(para.String()); line != "" {
						sb.WriteString(line)
						sb.WriteByte('\n')
					}
				}
			}
		}
	}
	return sb.String(), nil
}
