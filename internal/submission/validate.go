package submission

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validate checks a submission before any file is parsed or uploaded.
// It returns the first problem found so the caller can surface a single
// actionable message.
func Validate(req *Request) error {
	if strings.TrimSpace(req.UserEmail) == "" {
		return fmt.Errorf("falta el correo del usuario")
	}
	if req.TasaOperacion.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("la tasa de operación debe ser mayor a cero")
	}
	if req.Comision.IsNegative() {
		return fmt.Errorf("la comisión no puede ser negativa")
	}
	if len(req.XMLFiles) == 0 {
		return fmt.Errorf("debe adjuntar al menos un XML de factura")
	}
	if len(req.PDFFiles) == 0 {
		return fmt.Errorf("debe adjuntar al menos un PDF de factura")
	}
	if len(req.RespaldoFiles) == 0 {
		return fmt.Errorf("debe adjuntar al menos un documento de respaldo")
	}
	for _, email := range req.VerificationEmails {
		if !strings.Contains(email, "@") {
			return fmt.Errorf("correo de verificación inválido: %q", email)
		}
	}
	if req.Adelanto.Solicita {
		p := req.Adelanto.Porcentaje
		if p.LessThanOrEqual(decimal.Zero) || p.GreaterThan(hundred) {
			return fmt.Errorf("el porcentaje de adelanto debe estar entre 0 y 100")
		}
	}
	if req.Cuenta != nil {
		if err := validateAccount(req.Cuenta); err != nil {
			return err
		}
	}
	return nil
}

// validateAccount enforces complete-or-absent: a partially filled account
// is rejected rather than silently dropped.
func validateAccount(acc *DisbursementAccount) error {
	banco := strings.TrimSpace(acc.Banco)
	numero := strings.TrimSpace(acc.Numero)
	if banco == "" && numero == "" {
		return fmt.Errorf("cuenta de desembolso vacía")
	}
	if banco == "" || numero == "" {
		return fmt.Errorf("cuenta de desembolso incompleta: banco y número son obligatorios")
	}
	for _, r := range numero {
		if (r < '0' || r > '9') && r != '-' {
			return fmt.Errorf("número de cuenta inválido: %q", acc.Numero)
		}
	}
	return nil
}
