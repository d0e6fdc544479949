package extractor

import (
	"errors"
	"strings"
	"testing"

	"github.com/tramiteperu/tupa-scraper/models"
)

const detailPageHTML = `<!DOCTYPE html>
<html>
<head><title>Duplicado de DNI electrónico | gob.pe</title></head>
<body>
  <h1>Duplicado de DNI electrónico por pérdida o robo</h1>
  <div class="descripcion">Solicita un duplicado de tu DNI electrónico si lo perdiste o te lo robaron. El trámite puede hacerse de manera virtual.</div>
  <section class="requisitos">
    <h2>Requisitos</h2>
    <ul>
      <li>Recibo de pago por derecho de trámite</li>
      <li>Número de DNI del solicitante registrado</li>
    </ul>
  </section>
  <div class="pasos">
    <ol>
      <li>Paga el derecho de trámite en el Banco de la Nación</li>
      <li>Ingresa a la plataforma virtual con tu número de DNI</li>
    </ol>
  </div>
  <div class="costo">S/ 32.20</div>
  <div class="plazo">10 días hábiles</div>
  <p>Base legal: Ley N° 26497, Resolución Jefatural N° 123-2023</p>
  <p>Atención presencial en oficinas y en línea. Código: RENIEC-021</p>
</body>
</html>`

func TestParseProcedureDetailPage(t *testing.T) {
	rec, err := ParseProcedure(detailPageHTML, "https://www.gob.pe/institucion/reniec/tramites/123")
	if err != nil {
		t.Fatalf("ParseProcedure() error = %v", err)
	}

	if rec.Name != "Duplicado de DNI electrónico por pérdida o robo" {
		t.Errorf("Name = %q", rec.Name)
	}
	if !strings.HasPrefix(rec.Description, "Solicita un duplicado") {
		t.Errorf("Description = %q", rec.Description)
	}
	if len(rec.Requirements) != 2 {
		t.Fatalf("Requirements = %v, want 2 items", rec.Requirements)
	}
	if rec.Requirements[0] != "Recibo de pago por derecho de trámite" {
		t.Errorf("Requirements[0] = %q", rec.Requirements[0])
	}
	if len(rec.Steps) != 2 {
		t.Errorf("Steps = %v, want 2 items", rec.Steps)
	}
	if rec.Cost == nil || *rec.Cost != 32.20 {
		t.Errorf("Cost = %v, want 32.20", rec.Cost)
	}
	if rec.IsFree {
		t.Error("IsFree = true for a S/ 32.20 procedure")
	}
	if rec.Duration != "10 días hábiles" {
		t.Errorf("Duration = %q", rec.Duration)
	}
	if !rec.IsOnline {
		t.Error("IsOnline = false, page mentions virtual service")
	}
	if rec.EntityName != "RENIEC" || rec.EntityCode != "RENIEC" {
		t.Errorf("entity = %s/%s, want RENIEC", rec.EntityName, rec.EntityCode)
	}
	if len(rec.LegalBasis) == 0 || !strings.Contains(rec.LegalBasis[0], "Ley N° 26497") {
		t.Errorf("LegalBasis = %v", rec.LegalBasis)
	}
	if rec.SourceURL != "https://www.gob.pe/institucion/reniec/tramites/123" {
		t.Errorf("SourceURL = %q", rec.SourceURL)
	}
}

func TestParseProcedureGenericFallbacks(t *testing.T) {
	// No site-specific selectors at all; list extraction must fall back to
	// keyword-filtered generic list items.
	html := `<html><body>
	  <h1>Inscripción en el registro de contribuyentes</h1>
	  <ul>
	    <li>Presentar documento de identidad vigente del titular</li>
	    <li>Recibo de servicios como requisito de domicilio</li>
	    <li>Horario de atención de 8 a 17 horas</li>
	  </ul>
	</body></html>`

	rec, err := ParseProcedure(html, "https://www.sunat.gob.pe/tramite/ruc")
	if err != nil {
		t.Fatalf("ParseProcedure() error = %v", err)
	}
	if len(rec.Requirements) != 2 {
		t.Fatalf("Requirements = %v, want the 2 keyword-bearing items", rec.Requirements)
	}
	for _, req := range rec.Requirements {
		if strings.Contains(req, "Horario") {
			t.Errorf("non-requirement item leaked in: %q", req)
		}
	}
	if rec.EntityName != "SUNAT" {
		t.Errorf("EntityName = %q, want SUNAT", rec.EntityName)
	}
}

func TestParseProcedureDegenerate(t *testing.T) {
	rec, err := ParseProcedure("<html><body></body></html>", "https://www.gob.pe/x")
	if err != nil {
		t.Fatalf("ParseProcedure() error = %v, empty pages are degenerate, not errors", err)
	}
	if rec.Name != "" {
		t.Errorf("Name = %q, want empty", rec.Name)
	}
	if rec.Cost != nil {
		t.Errorf("Cost = %v, want absent", rec.Cost)
	}
	if rec.Duration != models.DurationUnspecified {
		t.Errorf("Duration = %q, want sentinel", rec.Duration)
	}
}

func TestParseCost(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *float64 // nil means absent
	}{
		{"plain amount", "S/ 32.20", models.CostOf(32.20)},
		{"with dot after S", "Tasa: S/. 45.00 por derecho", models.CostOf(45.00)},
		{"thousands separator", "S/ 1,234.50", models.CostOf(1234.50)},
		{"empty text", "", nil},
		{"no pattern", "consultar en ventanilla", nil},
		{"explicitly free", "Este trámite es gratuito", models.CostOf(0)},
		{"sin costo marker", "Atención sin costo alguno", models.CostOf(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCost(tt.text)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParseCost(%q) = %v, want absent", tt.text, *got)
			case tt.want != nil && got == nil:
				t.Errorf("ParseCost(%q) = absent, want %v", tt.text, *tt.want)
			case tt.want != nil && got != nil && *got != *tt.want:
				t.Errorf("ParseCost(%q) = %v, want %v", tt.text, *got, *tt.want)
			}
		})
	}
}

func TestParseCostAbsentIsNotZero(t *testing.T) {
	if got := ParseCost(""); got != nil {
		t.Fatalf("empty cost text must yield absent, got %v", *got)
	}
	free := ParseCost("gratuito")
	if free == nil || *free != 0 {
		t.Fatal("explicit free marker must yield a present zero")
	}
}

func TestParseUITCost(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"Tasa: 3.5% UIT", 3.5 * 5150.0 / 100},
		{"Derecho de 0.5 UIT", 0.5 * 5150.0},
	}
	for _, tt := range tests {
		got := ParseUITCost(tt.text)
		if got == nil {
			t.Errorf("ParseUITCost(%q) = absent, want %v", tt.text, tt.want)
			continue
		}
		if *got != tt.want {
			t.Errorf("ParseUITCost(%q) = %v, want %v", tt.text, *got, tt.want)
		}
	}
	if got := ParseUITCost("sin referencia"); got != nil {
		t.Errorf("ParseUITCost on plain text = %v, want absent", *got)
	}
}

func TestExtractionErrorCarriesURL(t *testing.T) {
	err := &ExtractionError{URL: "https://www.gob.pe/123", Err: errMalformed}
	if !strings.Contains(err.Error(), "https://www.gob.pe/123") {
		t.Errorf("message should name the URL, got %s", err.Error())
	}
	if !errors.Is(err, errMalformed) {
		t.Error("ExtractionError should unwrap to its cause")
	}
}

var errMalformed = errors.New("malformed page")
