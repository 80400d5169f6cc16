package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceXML(folio, amount, currency string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2">
  <cbc:ID>` + folio + `</cbc:ID>
  <cbc:DocumentCurrencyCode>` + currency + `</cbc:DocumentCurrencyCode>
  <cac:LegalMonetaryTotal>
    <cbc:PayableAmount currencyID="` + currency + `">` + amount + `</cbc:PayableAmount>
  </cac:LegalMonetaryTotal>
</Invoice>`)
}

func TestParseInvoiceXML(t *testing.T) {
	doc, err := ParseInvoiceXML(invoiceXML("F001-00012345", "15340.50", "PEN"))
	require.NoError(t, err)
	assert.Equal(t, "F001-00012345", doc.Folio)
	assert.Equal(t, "15340.5", doc.Monto.String())
	assert.Equal(t, "PEN", doc.Moneda)
}

func TestParseInvoiceXML_FallsBackToDocumentCurrency(t *testing.T) {
	raw := []byte(`<Invoice><ID>F001-1</ID><DocumentCurrencyCode>USD</DocumentCurrencyCode>` +
		`<LegalMonetaryTotal><PayableAmount>100</PayableAmount></LegalMonetaryTotal></Invoice>`)
	doc, err := ParseInvoiceXML(raw)
	require.NoError(t, err)
	assert.Equal(t, "USD", doc.Moneda)
}

func TestParseInvoiceXML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantErr string
	}{
		{"not xml", []byte("{json}"), "ilegible"},
		{"missing folio", invoiceXML("", "100", "PEN"), "sin folio"},
		{"missing amount", []byte(`<Invoice><ID>F1</ID></Invoice>`), "sin monto"},
		{"bad amount", invoiceXML("F1", "diez", "PEN"), "monto inválido"},
		{"missing currency", []byte(`<Invoice><ID>F1</ID><LegalMonetaryTotal><PayableAmount>9</PayableAmount></LegalMonetaryTotal></Invoice>`), "sin moneda"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInvoiceXML(tt.raw)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseInvoices_RejectsMixedCurrencies(t *testing.T) {
	files := []File{
		{Name: "a.xml", Data: invoiceXML("F001-1", "100", "PEN")},
		{Name: "b.xml", Data: invoiceXML("F001-2", "200", "USD")},
	}
	_, err := ParseInvoices(files)
	assert.ErrorContains(t, err, "monedas mezcladas")
}

func TestParseInvoices_RejectsDuplicateFolios(t *testing.T) {
	files := []File{
		{Name: "a.xml", Data: invoiceXML("F001-1", "100", "PEN")},
		{Name: "b.xml", Data: invoiceXML("F001-1", "200", "PEN")},
	}
	_, err := ParseInvoices(files)
	assert.ErrorContains(t, err, "folio F001-1 repetido")
}

func TestParseInvoices_NamesOffendingFile(t *testing.T) {
	files := []File{{Name: "roto.xml", Data: []byte("nope")}}
	_, err := ParseInvoices(files)
	assert.ErrorContains(t, err, "roto.xml")
}
