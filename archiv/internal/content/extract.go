package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Extract reads data according to hint and applies the field rules of
// prioritized document types. It never returns an error and never panics.
func Extract(data []byte, hint Hint, opts Options) (res *Result) {
	opts.defaults()
	res = &Result{Quality: QualityOK, Format: FormatUnknown}
	defer func() {
		if r := recover(); r != nil {
			*res = *failed(res.Format, StatusError, fmt.Sprintf("panic: %v", r))
		}
	}()

	format := DetectFormat(data, hint.ContentType, hint.Filename)
	res.Format = format

	var (
		text  string
		pages []string
		err   error
	)
	switch format {
	case FormatPDF:
		pages, err = pdfPages(data)
	case FormatHTML:
		text, err = htmlText(data)
	case FormatDOCX:
		text, err = docxText(data)
	case FormatODT:
		text, err = odtText(data)
	case FormatText:
		text = decodeText(data)
	default:
		return failed(format, StatusUnsupported, "unsupported file type for text extraction")
	}
	if err != nil {
		return failed(format, StatusError, err.Error())
	}

	var pageStarts []int
	if format == FormatPDF {
		text, pageStarts = joinPages(pages)
		res.PageCount = len(pages)
		for i, p := range pages {
			if density(p) < opts.MinPageChars {
				res.Anchors = append(res.Anchors, Anchor{Page: i + 1, Offset: pageStarts[i], NeedsReview: true})
				res.Quality = QualityNeedsReview
			}
		}
	} else {
		text = normalizeText(text)
	}

	classify(res, text, format == FormatPDF)
	if res.CharCount == 0 {
		text = ""
	}

	fields, hits, strong, prioritized := applyRules(hint.DocumentType, text)
	switch {
	case !prioritized:
		res.ParserStatus = ParserUnsupportedType
		res.ParserQuality = LevelFailed
	case text == "":
		res.ParserStatus = ParserEmptyText
		res.ParserQuality = LevelFailed
	default:
		fields.Title = strings.TrimSpace(hint.Title)
		if fields.Title == "" {
			fields.Title = firstLine(text)
		}
		fields.Quality = res.Quality
		res.Fields = fields
		res.MatchedSections = fields.Matched()
		res.ParserStatus = ParserNoFields
		if len(hits) > 0 {
			res.ParserStatus = ParserOK
		}
		res.ParserQuality = parserQuality(strong, utf8.RuneCountInString(text))
		for _, h := range hits {
			res.Anchors = append(res.Anchors, Anchor{Page: pageOf(pageStarts, h.offset), Section: h.key, Offset: h.offset})
		}
	}

	res.Text = text
	if opts.MaxTextChars > 0 && utf8.RuneCountInString(text) > opts.MaxTextChars {
		res.Text = string([]rune(text)[:opts.MaxTextChars])
	}
	return res
}

// ExtractFile is Extract on a stored file; a missing file yields StatusMissingFile.
func ExtractFile(path string, hint Hint, opts Options) *Result {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r := failed(FormatUnknown, StatusMissingFile, "local file does not exist")
			r.Quality = QualityDegraded
			return r
		}
		return failed(FormatUnknown, StatusError, err.Error())
	}
	if hint.Filename == "" {
		hint.Filename = filepath.Base(path)
	}
	return Extract(data, hint, opts)
}

func failed(format Format, status Status, msg string) *Result {
	return &Result{
		Format:         format,
		Quality:        QualityDegraded,
		Status:         status,
		ParsingQuality: LevelFailed,
		ParserStatus:   ParserEmptyText,
		ParserQuality:  LevelFailed,
		Error:          msg,
	}
}

// classify sets the extraction status and parsing quality from text length.
func classify(res *Result, text string, isPDF bool) {
	n := utf8.RuneCountInString(collapseSpace(text))
	res.CharCount = n
	switch {
	case n == 0 && isPDF:
		res.Status, res.ParsingQuality, res.OCRNeeded = StatusOCRNeeded, LevelLow, true
		res.Quality = QualityNeedsReview
	case n == 0:
		res.Status, res.ParsingQuality = StatusEmptyText, LevelFailed
		res.Quality = QualityDegraded
	case n < 80:
		res.Status, res.ParsingQuality = StatusPartial, LevelLow
	case n < 500:
		res.Status, res.ParsingQuality = StatusOK, LevelMedium
	default:
		res.Status, res.ParsingQuality = StatusOK, LevelHigh
	}
}

// joinPages concatenates pages with a blank line and returns each page's
// byte offset.
func joinPages(pages []string) (string, []int) {
	var sb strings.Builder
	starts := make([]int, len(pages))
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		starts[i] = sb.Len()
		sb.WriteString(p)
	}
	return sb.String(), starts
}

func pageOf(starts []int, offset int) int {
	page := 0
	for i, s := range starts {
		if offset >= s {
			page = i + 1
		}
	}
	return page
}

// density counts non-space runes.
func density(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
