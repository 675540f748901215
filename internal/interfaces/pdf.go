package interfaces

import "context"

// PDFExtractor extracts text content from PDF documents. Scanned-only PDFs
// (no extractable text layer) are out of scope and fail extraction.
type PDFExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}
