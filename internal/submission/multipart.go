package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"
)

// BuildMultipart encodes a submission into the multipart body the
// orchestrator's submit endpoint expects: one "metadata" JSON part plus
// the three file groups.
func BuildMultipart(req *Request) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	meta := metadata{
		UserEmail:         req.UserEmail,
		TasaOperacion:     req.TasaOperacion,
		Comision:          req.Comision,
		MailVerificacion:  strings.Join(req.VerificationEmails, ";"),
		SolicitudAdelanto: req.Adelanto,
	}
	if req.Cuenta != nil {
		meta.CuentasDesembolso = []DisbursementAccount{*req.Cuenta}
	} else {
		meta.CuentasDesembolso = []DisbursementAccount{}
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := w.WriteField("metadata", string(raw)); err != nil {
		return nil, "", fmt.Errorf("failed to write metadata part: %w", err)
	}

	groups := []struct {
		field string
		files []File
	}{
		{"xml_files", req.XMLFiles},
		{"pdf_files", req.PDFFiles},
		{"respaldo_files", req.RespaldoFiles},
	}
	for _, g := range groups {
		for _, f := range g.files {
			part, err := w.CreateFormFile(g.field, f.Name)
			if err != nil {
				return nil, "", fmt.Errorf("failed to create part for %s: %w", f.Name, err)
			}
			if _, err := part.Write(f.Data); err != nil {
				return nil, "", fmt.Errorf("failed to write %s: %w", f.Name, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return body, w.FormDataContentType(), nil
}
