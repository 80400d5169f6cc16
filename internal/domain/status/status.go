// Package status models the verification lifecycle of an operation and its
// invoices. An operation's aggregate status is always a pure function of its
// invoice statuses; it is recomputed from scratch on every invoice mutation
// rather than ratcheted forward.
package status

// InvoiceStatus is the verification state of a single factura.
type InvoiceStatus string

const (
	InvoicePendiente  InvoiceStatus = "Pendiente"
	InvoiceVerificada InvoiceStatus = "Verificada"
	InvoiceRechazada  InvoiceStatus = "Rechazada"
)

var validInvoiceStatuses = map[InvoiceStatus]bool{
	InvoicePendiente:  true,
	InvoiceVerificada: true,
	InvoiceRechazada:  true,
}

// IsValid returns true if the invoice status is one of the recognized states.
func (s InvoiceStatus) IsValid() bool {
	return validInvoiceStatuses[s]
}

// String returns the string representation of the invoice status.
func (s InvoiceStatus) String() string {
	return string(s)
}

// Status is the aggregate verification state of an operation.
type Status string

const (
	// EnVerificacion: at least one invoice pending and none rejected.
	EnVerificacion Status = "En Verificación"
	// Conforme: every invoice verified; the operation is ready to complete.
	Conforme Status = "Conforme"
	// Discrepancia: at least one invoice rejected, regardless of the rest.
	Discrepancia Status = "Discrepancia"
	// Completada: archived by the analyst. Terminal.
	Completada Status = "Completada"
)

var validStatuses = map[Status]bool{
	EnVerificacion: true,
	Conforme:       true,
	Discrepancia:   true,
	Completada:     true,
}

// IsValid returns true if the status is one of the recognized states.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == Completada
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Derive computes the aggregate status from invoice statuses: any rejected
// invoice wins, then all-verified, else still in verification. An operation
// with no invoices stays in verification.
func Derive(invoices []InvoiceStatus) Status {
	if len(invoices) == 0 {
		return EnVerificacion
	}
	allVerified := true
	for _, st := range invoices {
		switch st {
		case InvoiceRechazada:
			return Discrepancia
		case InvoiceVerificada:
		default:
			allVerified = false
		}
	}
	if allVerified {
		return Conforme
	}
	return EnVerificacion
}

// CanComplete reports whether an operation in the given state may be
// archived by the analyst.
func (s Status) CanComplete() bool {
	return s.IsValid() && !s.IsTerminal()
}
