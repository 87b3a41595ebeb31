package content

import (
	"archive/zip"
	"bytes"
	"mime"
	"path/filepath"
	"strings"
)

// Format is a detected document format.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatHTML    Format = "html"
	FormatDOCX    Format = "docx"
	FormatODT     Format = "odt"
	FormatText    Format = "text"
	FormatUnknown Format = "unknown"
)

// DetectFormat checks magic bytes first, then the content type, then the
// filename extension.
func DetectFormat(data []byte, contentType, filename string) Format {
	if f := sniff(data); f != FormatUnknown {
		return f
	}
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch {
			case mt == "application/pdf":
				return FormatPDF
			case mt == "text/html" || mt == "application/xhtml+xml":
				return FormatHTML
			case strings.Contains(mt, "wordprocessingml"):
				return FormatDOCX
			case mt == "application/vnd.oasis.opendocument.text":
				return FormatODT
			case strings.HasPrefix(mt, "text/"):
				return FormatText
			}
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".html", ".htm":
		return FormatHTML
	case ".docx":
		return FormatDOCX
	case ".odt":
		return FormatODT
	case ".txt", ".md", ".csv", ".json", ".xml":
		return FormatText
	}
	return FormatUnknown
}

func sniff(data []byte) Format {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(head, []byte("%PDF-")) {
		return FormatPDF
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return sniffZip(data)
	}
	lower := bytes.ToLower(bytes.TrimSpace(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))))
	if bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html")) {
		return FormatHTML
	}
	return FormatUnknown
}

func sniffZip(data []byte) Format {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return FormatUnknown
	}
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			return FormatDOCX
		case "content.xml":
			return FormatODT
		}
	}
	return FormatUnknown
}
