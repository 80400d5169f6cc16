package submission

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// InvoiceDoc is the subset of a UBL invoice this service cares about.
type InvoiceDoc struct {
	Folio  string
	Monto  decimal.Decimal
	Moneda string
}

// ublInvoice matches UBL 2.1 electronic invoices by local element name,
// so namespace prefixes do not matter.
type ublInvoice struct {
	XMLName              xml.Name `xml:"Invoice"`
	ID                   string   `xml:"ID"`
	DocumentCurrencyCode string   `xml:"DocumentCurrencyCode"`
	PayableAmount        struct {
		Value    string `xml:",chardata"`
		Currency string `xml:"currencyID,attr"`
	} `xml:"LegalMonetaryTotal>PayableAmount"`
}

// ParseInvoiceXML extracts folio, amount and currency from an invoice XML.
func ParseInvoiceXML(data []byte) (*InvoiceDoc, error) {
	var inv ublInvoice
	if err := xml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("XML de factura ilegible: %w", err)
	}
	folio := strings.TrimSpace(inv.ID)
	if folio == "" {
		return nil, fmt.Errorf("XML de factura sin folio")
	}
	raw := strings.TrimSpace(inv.PayableAmount.Value)
	if raw == "" {
		return nil, fmt.Errorf("factura %s sin monto total", folio)
	}
	monto, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("factura %s con monto inválido %q", folio, raw)
	}
	moneda := strings.TrimSpace(inv.PayableAmount.Currency)
	if moneda == "" {
		moneda = strings.TrimSpace(inv.DocumentCurrencyCode)
	}
	if moneda == "" {
		return nil, fmt.Errorf("factura %s sin moneda", folio)
	}
	return &InvoiceDoc{Folio: folio, Monto: monto, Moneda: moneda}, nil
}

// ParseInvoices parses every XML file and enforces one currency and unique
// folios across the submission.
func ParseInvoices(files []File) ([]InvoiceDoc, error) {
	docs := make([]InvoiceDoc, 0, len(files))
	seen := make(map[string]string, len(files))
	currency := ""
	for _, f := range files {
		doc, err := ParseInvoiceXML(f.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		if prev, ok := seen[doc.Folio]; ok {
			return nil, fmt.Errorf("folio %s repetido en %s y %s", doc.Folio, prev, f.Name)
		}
		seen[doc.Folio] = f.Name
		if currency == "" {
			currency = doc.Moneda
		} else if doc.Moneda != currency {
			return nil, fmt.Errorf("monedas mezcladas en la operación: %s y %s", currency, doc.Moneda)
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}
