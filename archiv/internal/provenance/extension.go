package provenance

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/transport"
)

var extByType = map[string]string{
	"application/pdf":          ".pdf",
	"application/msword":       ".doc",
	"application/rtf":          ".rtf",
	"text/rtf":                 ".rtf",
	"text/html":                ".html",
	"application/xhtml+xml":    ".html",
	"text/plain":               ".txt",
	"application/zip":          ".zip",
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/tiff":               ".tif",
	"application/vnd.ms-excel": ".xls",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.oasis.opendocument.text":                                 ".odt",
}

// scriptExts are server-side page extensions, never a document's own.
var scriptExts = map[string]bool{".asp": true, ".aspx": true, ".php": true, ".jsp": true, ".cgi": true}

// DetectExtension picks a file extension from the Content-Disposition
// filename (filename* preferred), then the content type, then the URL path.
// It falls back to ".bin".
func DetectExtension(meta transport.Metadata, locator string) string {
	if meta.ContentDisposition != "" {
		if _, params, err := mime.ParseMediaType(meta.ContentDisposition); err == nil {
			if ext := cleanExt(path.Ext(params["filename"])); ext != "" {
				return ext
			}
		}
	}
	if meta.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(meta.ContentType); err == nil {
			if ext, ok := extByType[strings.ToLower(mt)]; ok {
				return ext
			}
		}
	}
	if u, err := url.Parse(locator); err == nil {
		if ext := cleanExt(path.Ext(u.Path)); ext != "" && !scriptExts[ext] {
			return ext
		}
	}
	return ".bin"
}

func cleanExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
