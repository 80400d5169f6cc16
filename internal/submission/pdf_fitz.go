package submission

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// PDFVerifier checks uploaded invoice PDFs before submission.
type PDFVerifier interface {
	Inspect(data []byte) (PDFInfo, error)
}

// PDFInfo is what an inspection returns.
type PDFInfo struct {
	Pages int
	Text  string
}

// FitzVerifier inspects PDFs with mupdf.
type FitzVerifier struct {
	logger *zap.Logger
}

func NewFitzVerifier(logger *zap.Logger) *FitzVerifier {
	return &FitzVerifier{logger: logger}
}

// Inspect opens the document, counts pages and extracts plain text for
// folio cross-checking.
func (v *FitzVerifier) Inspect(data []byte) (PDFInfo, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return PDFInfo{}, fmt.Errorf("no se pudo abrir el PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	var text strings.Builder
	for page := 0; page < pages; page++ {
		t, err := doc.Text(page)
		if err != nil {
			v.logger.Warn("Failed to extract PDF page text",
				zap.Int("page", page),
				zap.Error(err))
			continue
		}
		text.WriteString(t)
		text.WriteByte('\n')
	}
	return PDFInfo{Pages: pages, Text: text.String()}, nil
}
