package entity

import "time"

// GestionType identifies the contact channel of a management log entry.
type GestionType string

const (
	GestionLlamada  GestionType = "Llamada"
	GestionEmail    GestionType = "Email Manual"
	GestionWhatsApp GestionType = "WhatsApp"
	GestionVisita   GestionType = "Visita en Terreno"
	GestionAdelanto GestionType = "Adelanto Express"
)

// GestionOutcome is the recorded result of a contact attempt.
type GestionOutcome string

const (
	OutcomeConforme     GestionOutcome = "Conforme"
	OutcomeNoContesta   GestionOutcome = "No Contesta"
	OutcomeDiscrepancia GestionOutcome = "Discrepancia de Monto"
	OutcomeDesconoce    GestionOutcome = "Desconoce Factura"
	OutcomeMasTiempo    GestionOutcome = "Solicita más tiempo"
	OutcomeAprobado     GestionOutcome = "Aprobado"
)

// Gestion is a manually recorded contact event attached to an operation.
// Entries are append-only; once recorded they are never edited or removed
// (the sync controller may drop the last entry when a remote submission
// fails, restoring the pre-append log).
type Gestion struct {
	Tipo      GestionType    `json:"tipo"`
	Contacto  string         `json:"contacto"`
	Cargo     string         `json:"cargo"`
	Telefono  string         `json:"telefono"`
	Resultado GestionOutcome `json:"resultado"`
	Notas     string         `json:"notas"`
	Analista  string         `json:"analista"`
	Fecha     time.Time      `json:"fecha"`
}
