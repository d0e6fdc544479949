package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/tramiteperu/tupa-scraper/models"
)

func testRecords() []models.ProcedureRecord {
	return []models.ProcedureRecord{
		{
			Name:         "Duplicado de DNI electrónico",
			Description:  strings.Repeat("Solicita un duplicado. ", 20),
			Requirements: []string{"Recibo de pago", "Número de DNI"},
			Cost:         models.CostOf(32.20),
			Currency:     "PEN",
			Duration:     "10 días hábiles",
			SourceURL:    "https://www.gob.pe/226",
			EntityName:   "RENIEC",
			EntityCode:   "RENIEC",
			TupaCode:     "RENIEC-021",
			IsOnline:     true,
			Category:     "Identidad",
			Keywords:     []string{"duplicado", "electrónico", "identidad", "pérdida", "robo", "extra"},
		},
		{
			Name:       "Inscripción al RUC",
			Currency:   "PEN",
			Duration:   "Inmediato",
			SourceURL:  "https://www.gob.pe/7480",
			EntityName: "SUNAT",
			EntityCode: "SUNAT",
			IsFree:     true,
			Cost:       models.CostOf(0),
			Category:   "Tributario",
		},
		{
			Name:       "Procedimiento sin costo publicado",
			Currency:   "PEN",
			Duration:   models.DurationUnspecified,
			SourceURL:  "https://www.gob.pe/999",
			EntityName: "RENIEC",
			EntityCode: "RENIEC",
			Category:   "General",
		},
	}
}

func TestBuildFrontendDocument(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	doc := BuildFrontendDocument(testRecords(), now)

	if doc.Metadata.TotalProcedures != 3 {
		t.Errorf("TotalProcedures = %d", doc.Metadata.TotalProcedures)
	}
	if doc.Metadata.LastUpdated != "2026-08-26T12:00:00Z" {
		t.Errorf("LastUpdated = %q", doc.Metadata.LastUpdated)
	}
	if want := []string{"RENIEC", "SUNAT"}; !reflect.DeepEqual(doc.Metadata.Entities, want) {
		t.Errorf("Entities = %v, want %v", doc.Metadata.Entities, want)
	}
	if want := []string{"General", "Identidad", "Tributario"}; !reflect.DeepEqual(doc.Metadata.Categories, want) {
		t.Errorf("Categories = %v, want %v", doc.Metadata.Categories, want)
	}

	first := doc.Procedures[0]
	if first.ID != "RENIEC-021" {
		t.Errorf("ID = %q, want official TUPA code", first.ID)
	}
	if len(first.Description) > frontendDescriptionLimit+3 {
		t.Errorf("description not truncated: %d chars", len(first.Description))
	}
	if len(first.Keywords) != 5 {
		t.Errorf("keywords not capped: %v", first.Keywords)
	}
	if first.RequirementsCount != 2 {
		t.Errorf("RequirementsCount = %d", first.RequirementsCount)
	}

	second := doc.Procedures[1]
	if !strings.HasPrefix(second.ID, "SUNAT-") {
		t.Errorf("synthetic ID = %q, want SUNAT- prefix", second.ID)
	}

	third := doc.Procedures[2]
	if third.Cost != nil {
		t.Errorf("absent cost serialized as %v, want null", *third.Cost)
	}
}

func TestSyntheticIDStable(t *testing.T) {
	rec := testRecords()[1]
	if procedureID(rec) != procedureID(rec) {
		t.Error("synthetic procedure id must be deterministic")
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	if err := WriteAll(dir, testRecords(), now); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	// Full JSON round-trips.
	data, err := os.ReadFile(filepath.Join(dir, FullJSONName))
	if err != nil {
		t.Fatalf("reading full JSON: %v", err)
	}
	var full []models.ProcedureRecord
	if err := json.Unmarshal(data, &full); err != nil {
		t.Fatalf("full JSON invalid: %v", err)
	}
	if len(full) != 3 {
		t.Errorf("full JSON has %d records", len(full))
	}
	if full[2].Cost != nil {
		t.Error("absent cost must round-trip as null")
	}

	// Frontend JSON parses into the documented shape.
	data, err = os.ReadFile(filepath.Join(dir, FrontendJSONName))
	if err != nil {
		t.Fatalf("reading frontend JSON: %v", err)
	}
	var doc FrontendDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("frontend JSON invalid: %v", err)
	}
	if doc.Metadata.TotalProcedures != 3 {
		t.Errorf("frontend TotalProcedures = %d", doc.Metadata.TotalProcedures)
	}

	// CSV: header plus one row per record, absent cost as empty cell.
	f, err := os.Open(filepath.Join(dir, CSVName))
	if err != nil {
		t.Fatalf("opening CSV: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("CSV invalid: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("CSV has %d rows, want header + 3", len(rows))
	}
	if rows[1][3] != "32.20" {
		t.Errorf("cost cell = %q, want 32.20", rows[1][3])
	}
	if rows[3][3] != "" {
		t.Errorf("absent cost cell = %q, want empty", rows[3][3])
	}
}

func TestFrontendTruncationKeepsValidUTF8(t *testing.T) {
	// Place a multibyte rune so the 200-byte cut would land inside it.
	desc := strings.Repeat("x", 199) + "á" + strings.Repeat("y", 50)
	recs := []models.ProcedureRecord{{
		Name:        "Renovación de pasaporte electrónico",
		Description: desc,
		Currency:    "PEN",
		Duration:    "5 días hábiles",
		SourceURL:   "https://www.gob.pe/448",
		EntityName:  "MIGRACIONES",
		EntityCode:  "MIGRA",
		Category:    "Identidad",
	}}

	doc := BuildFrontendDocument(recs, time.Now())
	got := doc.Procedures[0].Description
	if !utf8.ValidString(got) {
		t.Fatalf("truncated description is invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated description missing ellipsis: %q", got)
	}
	if want := strings.Repeat("x", 199) + "..."; got != want {
		t.Errorf("description = %q, want cut backed off to the rune boundary", got)
	}
}
