package classifier

import (
	"reflect"
	"testing"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name        string
		procName    string
		description string
		want        string
	}{
		{"tax wins over business for RUC", "Inscripción RUC", "trámite tributario SUNAT", "Tributario"},
		{"no match falls back", "Evento cultural", "", "General"},
		{"identity", "Duplicado de DNI", "emisión de nuevo documento nacional", "Identidad"},
		{"health", "Calificación de discapacidad", "evaluación hospitalaria", "Salud"},
		{"business without tax terms", "Constitución de empresa", "registro de sociedad", "Empresarial"},
		{"case insensitive", "INSCRIPCIÓN AL RUC", "", "Tributario"},
		{"empty input", "", "", "General"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.procName, tt.description); got != tt.want {
				t.Errorf("Categorize(%q, %q) = %q, want %q", tt.procName, tt.description, got, tt.want)
			}
		})
	}
}

func TestCategorizeAlwaysInFixedSet(t *testing.T) {
	valid := make(map[string]bool)
	for _, c := range Categories() {
		valid[c] = true
	}
	valid[DefaultCategory] = true

	inputs := [][2]string{
		{"Inscripción RUC", "trámite tributario"},
		{"Licencia de funcionamiento", "local comercial municipal"},
		{"Algo sin clasificar", "texto arbitrario"},
		{"", ""},
	}
	for _, in := range inputs {
		got := Categorize(in[0], in[1])
		if !valid[got] {
			t.Errorf("Categorize(%q, %q) = %q, not in the fixed category set", in[0], in[1], got)
		}
	}
}

func TestTags(t *testing.T) {
	got := Tags("Duplicado de DNI", "solicitud de documento")
	want := []string{"dni", "duplicado", "documento", "solicitud"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tags = %v, want %v", got, want)
	}
}

func TestTagsCappedAtFive(t *testing.T) {
	// Text matching far more than five keywords.
	got := Tags(
		"Duplicado de DNI y pasaporte con RUC",
		"solicitud de documento, licencia, certificado, registro, constancia y pago de multa",
	)
	if len(got) != MaxTags {
		t.Fatalf("len(Tags) = %d, want %d", len(got), MaxTags)
	}
	want := []string{"dni", "pasaporte", "ruc", "licencia", "certificado"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tags = %v, want first five in table order %v", got, want)
	}
}

func TestTagsNoDuplicates(t *testing.T) {
	got := Tags("DNI dni DNI", "dni otra vez dni")
	if len(got) != 1 || got[0] != "dni" {
		t.Errorf("Tags = %v, want exactly [dni]", got)
	}
}

func TestTagsIdempotent(t *testing.T) {
	first := Tags("Renovación de pasaporte", "pago de tasa y solicitud")
	second := Tags("Renovación de pasaporte", "pago de tasa y solicitud")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Tags not idempotent: %v vs %v", first, second)
	}
	if c1, c2 := Categorize("Renovación de pasaporte", "pago"), Categorize("Renovación de pasaporte", "pago"); c1 != c2 {
		t.Errorf("Categorize not idempotent: %q vs %q", c1, c2)
	}
}

func TestIsOnline(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Realiza este trámite de manera VIRTUAL desde tu casa", true},
		{"Disponible en línea las 24 horas", true},
		{"Atención solo en oficina presencial", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsOnline(tt.text); got != tt.want {
			t.Errorf("IsOnline(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"spanish", "Solicitud de duplicado del documento nacional de identidad por pérdida o robo", "es"},
		{"english", "Request a duplicate of your national identity document after loss or theft", "en"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLanguage(tt.text); got != tt.want {
				t.Errorf("DetectLanguage(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
