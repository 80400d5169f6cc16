package submission

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/orchestrator"
)

// Submitter is the orchestrator call this service depends on.
type Submitter interface {
	SubmitOperation(ctx context.Context, body io.Reader, contentType string) (*orchestrator.SubmitResult, error)
}

// Service runs the full submission pipeline: validate, parse invoices,
// sanity-check PDFs, then upload.
type Service struct {
	remote   Submitter
	verifier PDFVerifier
	logger   *zap.Logger
}

func NewService(remote Submitter, verifier PDFVerifier, logger *zap.Logger) *Service {
	return &Service{remote: remote, verifier: verifier, logger: logger}
}

// Submit validates and uploads a new operation. The returned result is the
// orchestrator's confirmation, already schema-checked by the client.
func (s *Service) Submit(ctx context.Context, req *Request) (*orchestrator.SubmitResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	docs, err := ParseInvoices(req.XMLFiles)
	if err != nil {
		return nil, err
	}

	if err := s.checkPDFs(req.PDFFiles, docs); err != nil {
		return nil, err
	}

	body, contentType, err := BuildMultipart(req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Submitting operation",
		zap.String("user", req.UserEmail),
		zap.Int("invoices", len(docs)),
		zap.String("currency", docs[0].Moneda))

	result, err := s.remote.SubmitOperation(ctx, body, contentType)
	if err != nil {
		s.logger.Error("Operation submission failed", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// checkPDFs verifies every PDF opens with at least one page and that each
// invoice folio appears somewhere in the extracted PDF text.
func (s *Service) checkPDFs(files []File, docs []InvoiceDoc) error {
	var combined strings.Builder
	for _, f := range files {
		info, err := s.verifier.Inspect(f.Data)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		if info.Pages == 0 {
			return fmt.Errorf("%s: PDF sin páginas", f.Name)
		}
		combined.WriteString(info.Text)
	}
	text := combined.String()
	for _, doc := range docs {
		if !strings.Contains(text, doc.Folio) {
			return fmt.Errorf("el folio %s no aparece en ningún PDF adjunto", doc.Folio)
		}
	}
	return nil
}
