// Package submission prepares new-operation submissions for the
// orchestrator: client-side validation, invoice XML parsing, PDF sanity
// checks and the multipart request the orchestrator's submit endpoint
// expects.
package submission

import (
	"github.com/shopspring/decimal"
)

// File is an uploaded document.
type File struct {
	Name string
	Data []byte
}

// AdvanceRequest is the optional expedited-advance petition attached to a
// submission.
type AdvanceRequest struct {
	Solicita   bool            `json:"solicita"`
	Porcentaje decimal.Decimal `json:"porcentaje"`
}

// DisbursementAccount is the account the advance is paid into.
type DisbursementAccount struct {
	Banco  string `json:"banco"`
	Tipo   string `json:"tipo"`
	Numero string `json:"numero"`
	Moneda string `json:"moneda"`
}

// Request is a new-operation submission.
type Request struct {
	UserEmail          string
	TasaOperacion      decimal.Decimal
	Comision           decimal.Decimal
	VerificationEmails []string
	Adelanto           AdvanceRequest
	Cuenta             *DisbursementAccount

	XMLFiles      []File
	PDFFiles      []File
	RespaldoFiles []File
}

// metadata is the JSON blob sent as the multipart "metadata" part. Field
// names follow the orchestrator's wire format.
type metadata struct {
	UserEmail         string                `json:"user_email"`
	TasaOperacion     decimal.Decimal       `json:"tasaOperacion"`
	Comision          decimal.Decimal       `json:"comision"`
	MailVerificacion  string                `json:"mailVerificacion"`
	SolicitudAdelanto AdvanceRequest        `json:"solicitudAdelanto"`
	CuentasDesembolso []DisbursementAccount `json:"cuentasDesembolso"`
}
