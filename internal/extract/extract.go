// Package extract turns fetched documents into plain text for pattern
// matching. The document kind is chosen from the declared content type, then
// from the URL extension, then by sniffing the first bytes.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
)

// ErrUnsupported marks content with no text extraction path, such as images
// and legacy binary Office formats.
var ErrUnsupported = errors.New("unsupported content type")

// Kind is a document family with its own extraction routine.
type Kind string

const (
	KindHTML Kind = "html"
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindXLSX Kind = "xlsx"
	KindPPTX Kind = "pptx"
	KindText Kind = "text"
	KindNone Kind = "unsupported"
)

var mimeKinds = map[string]Kind{
	"text/html":             KindHTML,
	"application/xhtml+xml": KindHTML,
	"application/pdf":       KindPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   KindDOCX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         KindXLSX,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": KindPPTX,
	"application/msword":            KindNone,
	"application/vnd.ms-excel":      KindNone,
	"application/vnd.ms-powerpoint": KindNone,
}

var extKinds = map[string]Kind{
	".html": KindHTML,
	".htm":  KindHTML,
	".pdf":  KindPDF,
	".docx": KindDOCX,
	".xlsx": KindXLSX,
	".pptx": KindPPTX,
	".txt":  KindText,
	".csv":  KindText,
}

// Classify picks the extraction routine for a document.
func Classify(contentType, name string, data []byte) Kind {
	mediaType := mediaType(contentType)
	if k, ok := mimeKinds[mediaType]; ok {
		return k
	}
	if strings.HasPrefix(mediaType, "image/") || strings.HasPrefix(mediaType, "video/") || strings.HasPrefix(mediaType, "audio/") {
		return KindNone
	}

	if ext := strings.ToLower(path.Ext(stripQuery(name))); ext != "" {
		if k, ok := extKinds[ext]; ok && (mediaType == "" || mediaType == "application/octet-stream") {
			return k
		}
	}

	if mediaType != "" && mediaType != "application/octet-stream" {
		return KindText
	}
	return sniff(data)
}

// Extractor dispatches on Kind.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract returns the text of data. contentType may be empty; name (usually
// the source URL) helps classify untyped bodies.
func (e *Extractor) Extract(ctx context.Context, data []byte, contentType, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch kind := Classify(contentType, name, data); kind {
	case KindHTML:
		return HTML(data, contentType)
	case KindPDF:
		return PDF(data)
	case KindDOCX:
		return DOCX(data)
	case KindXLSX:
		return XLSX(data)
	case KindPPTX:
		return PPTX(data)
	case KindText:
		return Text(data, contentType)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return strings.ToLower(mt)
}

func stripQuery(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		return name[:i]
	}
	return name
}

func sniff(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return KindPDF
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return sniffOOXML(data)
	}
	if strings.HasPrefix(http.DetectContentType(data), "text/html") {
		return KindHTML
	}
	return KindText
}

func sniffOOXML(data []byte) Kind {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return KindNone
	}
	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, "word/"):
			return KindDOCX
		case strings.HasPrefix(f.Name, "xl/"):
			return KindXLSX
		case strings.HasPrefix(f.Name, "ppt/"):
			return KindPPTX
		}
	}
	return KindNone
}
