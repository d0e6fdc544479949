// Package models defines the data structures shared across the scraping
// pipeline: the procedure record produced by extraction and the runtime
// configuration.
package models

// ProcedureRecord is the structured result of scraping one government
// procedure detail page. A record is built once per successfully extracted
// page and is not mutated afterwards; SourceURL is its identity key for
// deduplication at the persistence boundary.
type ProcedureRecord struct {
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	Requirements []string `json:"requirements" yaml:"requirements"`
	Steps        []string `json:"steps" yaml:"steps"`

	// Cost is nil when no monetary pattern was found on the page. A present
	// zero means the procedure is explicitly free, which is distinct from
	// "no cost information".
	Cost     *float64 `json:"cost" yaml:"cost"`
	Currency string   `json:"currency" yaml:"currency"`
	IsFree   bool     `json:"is_free" yaml:"is_free"`

	Duration   string `json:"processing_time" yaml:"processing_time"`
	SourceURL  string `json:"source_url" yaml:"source_url"`
	EntityName string `json:"entity_name" yaml:"entity_name"`
	EntityCode string `json:"entity_code" yaml:"entity_code"`
	TupaCode   string `json:"tupa_code,omitempty" yaml:"tupa_code,omitempty"`

	IsOnline bool     `json:"is_online" yaml:"is_online"`
	Channels []string `json:"channels,omitempty" yaml:"channels,omitempty"`

	Category   string   `json:"category" yaml:"category"`
	Tags       []string `json:"tags" yaml:"tags"`
	Keywords   []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	LegalBasis []string `json:"legal_basis,omitempty" yaml:"legal_basis,omitempty"`
	Language   string   `json:"language,omitempty" yaml:"language,omitempty"`
}

// DurationUnspecified is the sentinel used when a page carries no
// processing-time information.
const DurationUnspecified = "No especificado"

// CostOf is a convenience for building the optional cost field.
func CostOf(v float64) *float64 {
	return &v
}
