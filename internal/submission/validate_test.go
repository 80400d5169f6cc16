package submission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validRequest() *Request {
	return &Request{
		UserEmail:          "karla@andescap.pe",
		TasaOperacion:      decimal.NewFromFloat(1.5),
		Comision:           decimal.NewFromFloat(0.5),
		VerificationEmails: []string{"verif@deudor.pe"},
		XMLFiles:           []File{{Name: "f1.xml", Data: []byte("<Invoice/>")}},
		PDFFiles:           []File{{Name: "f1.pdf", Data: []byte("%PDF")}},
		RespaldoFiles:      []File{{Name: "oc.pdf", Data: []byte("%PDF")}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr string
	}{
		{
			name:   "valid request",
			mutate: func(r *Request) {},
		},
		{
			name:    "missing user email",
			mutate:  func(r *Request) { r.UserEmail = "  " },
			wantErr: "correo del usuario",
		},
		{
			name:    "zero rate",
			mutate:  func(r *Request) { r.TasaOperacion = decimal.Zero },
			wantErr: "tasa de operación",
		},
		{
			name:    "negative commission",
			mutate:  func(r *Request) { r.Comision = decimal.NewFromInt(-1) },
			wantErr: "comisión",
		},
		{
			name:    "no xml files",
			mutate:  func(r *Request) { r.XMLFiles = nil },
			wantErr: "XML",
		},
		{
			name:    "no pdf files",
			mutate:  func(r *Request) { r.PDFFiles = nil },
			wantErr: "PDF",
		},
		{
			name:    "no respaldo files",
			mutate:  func(r *Request) { r.RespaldoFiles = nil },
			wantErr: "respaldo",
		},
		{
			name:    "bad verification email",
			mutate:  func(r *Request) { r.VerificationEmails = []string{"no-arroba"} },
			wantErr: "correo de verificación",
		},
		{
			name: "advance percentage over 100",
			mutate: func(r *Request) {
				r.Adelanto = AdvanceRequest{Solicita: true, Porcentaje: decimal.NewFromInt(120)}
			},
			wantErr: "porcentaje de adelanto",
		},
		{
			name: "advance percentage at 100 is fine",
			mutate: func(r *Request) {
				r.Adelanto = AdvanceRequest{Solicita: true, Porcentaje: decimal.NewFromInt(100)}
			},
		},
		{
			name: "percentage ignored when advance not requested",
			mutate: func(r *Request) {
				r.Adelanto = AdvanceRequest{Solicita: false, Porcentaje: decimal.NewFromInt(500)}
			},
		},
		{
			name: "partial account rejected",
			mutate: func(r *Request) {
				r.Cuenta = &DisbursementAccount{Banco: "BCP"}
			},
			wantErr: "incompleta",
		},
		{
			name: "account number with letters rejected",
			mutate: func(r *Request) {
				r.Cuenta = &DisbursementAccount{Banco: "BCP", Numero: "12AB-99"}
			},
			wantErr: "número de cuenta",
		},
		{
			name: "complete account accepted",
			mutate: func(r *Request) {
				r.Cuenta = &DisbursementAccount{Banco: "BCP", Tipo: "Corriente", Numero: "193-1234567-0-11", Moneda: "PEN"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			err := Validate(req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
