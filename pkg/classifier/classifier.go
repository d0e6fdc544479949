// Package classifier assigns categories and tags to scraped procedures using
// fixed keyword tables. All functions are pure: same input, same output, no
// I/O. The tables are ordered; first match wins.
package classifier

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// DefaultCategory is assigned when no keyword table matches.
const DefaultCategory = "General"

// MaxTags bounds the tag set on every record.
const MaxTags = 5

type categoryEntry struct {
	name     string
	keywords []string
}

// categoryTable is evaluated top to bottom; the first entry with any keyword
// present in the text wins. Tributario sits above Empresarial so that
// RUC procedures described in tax terms land under tax, not business.
var categoryTable = []categoryEntry{
	{"Identidad", []string{"dni", "pasaporte", "cedula", "cédula", "identificacion", "identificación", "reniec"}},
	{"Tributario", []string{"tributo", "tributario", "impuesto", "sunat", "fiscal", "declaracion", "declaración", "ruc"}},
	{"Empresarial", []string{"empresa", "negocio", "comercio", "sunarp", "sociedad"}},
	{"Educación", []string{"titulo", "título", "grado", "certificado", "educacion", "educación", "universidad"}},
	{"Salud", []string{"discapacidad", "salud", "medico", "médico", "hospital", "minsa"}},
	{"Vehicular", []string{"licencia de conducir", "conducir", "vehiculo", "vehículo", "transporte", "mtc"}},
	{"Laboral", []string{"trabajo", "empleo", "laboral", "planilla", "mintra"}},
	{"Municipal", []string{"municipal", "funcionamiento", "construccion", "construcción"}},
}

// Categories returns the fixed category set, in table order, excluding the
// default.
func Categories() []string {
	out := make([]string, len(categoryTable))
	for i, entry := range categoryTable {
		out[i] = entry.name
	}
	return out
}

// Categorize maps a procedure's name and description to exactly one
// category. The concatenated text is lower-cased and tested against the
// ordered keyword table; no match yields DefaultCategory.
func Categorize(name, description string) string {
	text := strings.ToLower(name + " " + description)
	for _, entry := range categoryTable {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.name
			}
		}
	}
	return DefaultCategory
}

// tagKeywords is a flat ordered list. A keyword becomes a tag when it occurs
// as a substring of the lower-cased name+description; the result is capped
// at MaxTags in list order.
var tagKeywords = []string{
	"dni",
	"pasaporte",
	"ruc",
	"licencia",
	"certificado",
	"partida",
	"duplicado",
	"renovacion",
	"renovación",
	"registro",
	"constancia",
	"documento",
	"solicitud",
	"pago",
	"multa",
}

// Tags returns the deduplicated keyword-membership tag set, at most MaxTags
// members, in keyword-table order.
func Tags(name, description string) []string {
	text := strings.ToLower(name + " " + description)
	tags := make([]string, 0, MaxTags)
	seen := make(map[string]struct{}, MaxTags)
	for _, kw := range tagKeywords {
		if len(tags) == MaxTags {
			break
		}
		if !strings.Contains(text, kw) {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		tags = append(tags, kw)
	}
	return tags
}

// onlineKeywords mark a procedure as accessible without a physical visit.
var onlineKeywords = []string{"virtual", "en línea", "en linea", "línea", "web", "digital", "online"}

// IsOnline reports whether any online-availability keyword appears in the
// page's visible text, case-insensitively.
func IsOnline(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range onlineKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectLanguage returns the ISO 639-1 code of the dominant language in the
// text, or "" when detection is inconclusive. Government pages are Spanish
// with occasional English admin sections, so the detector is restricted to
// those two.
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.Spanish, lingua.English).
			Build()
	})
	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
