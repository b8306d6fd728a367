package service

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/ticketassist/internal/domain"
)

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true,
	".json": true, ".html": true, ".htm": true, ".log": true, ".rst": true,
}

// ErrUnsupportedDocument is returned for binary uploads that arrive without
// client-extracted text.
var ErrUnsupportedDocument = domain.NewDomainError(domain.ErrCodeValidation, "document type requires client-extracted text")

// ExtractText returns the plain text of an uploaded document. Text supplied by
// the client (for example from a PDF extractor) wins over the raw bytes.
func ExtractText(filename, contentType string, data []byte, supplied string) (string, error) {
	if strings.TrimSpace(supplied) != "" {
		return supplied, nil
	}

	if !isTextDocument(filename, contentType) {
		return "", ErrUnsupportedDocument
	}
	if !utf8.Valid(data) {
		return "", ErrUnsupportedDocument
	}

	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

func isTextDocument(filename, contentType string) bool {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			if strings.HasPrefix(mt, "text/") || mt == "application/json" {
				return true
			}
		}
	}
	return textExtensions[strings.ToLower(filepath.Ext(filename))]
}
