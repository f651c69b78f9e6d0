// Package document extracts plain text from uploaded documents.
package document

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// Extractor turns an uploaded document into plain text.
type Extractor interface {
	// Extract returns the document's text, or an EXTRACTION_FAILED error on
	// malformed input.
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDFExtractor extracts text from PDF uploads.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract implements Extractor.
func (e *PDFExtractor) Extract(_ context.Context, data []byte) (text string, err error) {
	// The parser panics on some corrupt files; treat that as malformed input
	// rather than letting it kill the turn.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = cerrors.Newf(cerrors.CodeExtractionFailed, "pdf parser panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", cerrors.WrapWithCode(err, cerrors.CodeExtractionFailed, "opening pdf")
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", cerrors.WrapWithCode(err, cerrors.CodeExtractionFailed, "extracting pdf text")
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", cerrors.WrapWithCode(err, cerrors.CodeExtractionFailed, "reading pdf text")
	}

	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", cerrors.New(cerrors.CodeExtractionFailed, "pdf contains no extractable text")
	}
	return text, nil
}
