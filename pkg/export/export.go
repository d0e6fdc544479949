// Package export writes the persisted record set to the files the frontend
// and analysts consume: a full JSON dump, a trimmed frontend JSON with run
// metadata, and a flat CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/tramiteperu/tupa-scraper/internal/common"
	"github.com/tramiteperu/tupa-scraper/models"
)

const (
	FullJSONName     = "tupa_procedures_complete.json"
	FrontendJSONName = "tupa_procedures_frontend.json"
	CSVName          = "tupa_procedures_analysis.csv"
)

// Metadata heads the frontend export.
type Metadata struct {
	TotalProcedures int      `json:"total_procedures"`
	LastUpdated     string   `json:"last_updated"`
	Entities        []string `json:"entities"`
	Categories      []string `json:"categories"`
}

// FrontendDocument is the shape the web frontend loads at startup.
type FrontendDocument struct {
	Metadata   Metadata            `json:"metadata"`
	Procedures []FrontendProcedure `json:"procedures"`
}

// FrontendProcedure trims a record to what search and listing views need.
type FrontendProcedure struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Entity            Entity   `json:"entity"`
	Cost              *float64 `json:"cost"`
	Currency          string   `json:"currency"`
	ProcessingTime    string   `json:"processing_time"`
	RequirementsCount int      `json:"requirements_count"`
	IsFree            bool     `json:"is_free"`
	IsOnline          bool     `json:"is_online"`
	Category          string   `json:"category"`
	Keywords          []string `json:"keywords"`
}

type Entity struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

const (
	frontendDescriptionLimit = 200
	frontendKeywordLimit     = 5
)

// WriteFullJSON dumps every record verbatim.
func WriteFullJSON(dir string, records []models.ProcedureRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return writeFile(filepath.Join(dir, FullJSONName), data)
}

// WriteFrontendJSON writes the trimmed document with run metadata.
func WriteFrontendJSON(dir string, records []models.ProcedureRecord, now time.Time) error {
	doc := BuildFrontendDocument(records, now)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal frontend document: %w", err)
	}
	return writeFile(filepath.Join(dir, FrontendJSONName), data)
}

// BuildFrontendDocument assembles the frontend shape without touching disk.
func BuildFrontendDocument(records []models.ProcedureRecord, now time.Time) FrontendDocument {
	doc := FrontendDocument{
		Metadata: Metadata{
			TotalProcedures: len(records),
			LastUpdated:     now.Format(time.RFC3339),
			Entities:        distinct(records, func(r models.ProcedureRecord) string { return r.EntityName }),
			Categories:      distinct(records, func(r models.ProcedureRecord) string { return r.Category }),
		},
		Procedures: make([]FrontendProcedure, 0, len(records)),
	}

	for _, rec := range records {
		description := rec.Description
		if len(description) > frontendDescriptionLimit {
			description = common.Truncate(description, frontendDescriptionLimit) + "..."
		}

		kws := rec.Keywords
		if len(kws) > frontendKeywordLimit {
			kws = kws[:frontendKeywordLimit]
		}

		doc.Procedures = append(doc.Procedures, FrontendProcedure{
			ID:                procedureID(rec),
			Name:              rec.Name,
			Description:       description,
			Entity:            Entity{Name: rec.EntityName, Code: rec.EntityCode},
			Cost:              rec.Cost,
			Currency:          rec.Currency,
			ProcessingTime:    rec.Duration,
			RequirementsCount: len(rec.Requirements),
			IsFree:            rec.IsFree,
			IsOnline:          rec.IsOnline,
			Category:          rec.Category,
			Keywords:          kws,
		})
	}
	return doc
}

// procedureID prefers the official TUPA code; records without one get a
// stable synthetic id derived from the name.
func procedureID(rec models.ProcedureRecord) string {
	if rec.TupaCode != "" {
		return rec.TupaCode
	}
	h := fnv.New32a()
	h.Write([]byte(rec.Name))
	return fmt.Sprintf("%s-%03d", rec.EntityCode, h.Sum32()%1000)
}

var csvHeader = []string{
	"Nombre", "Entidad", "Categoria", "Costo", "Moneda",
	"Tiempo_Procesamiento", "Es_Gratuito", "Es_Online",
	"Num_Requisitos", "URL_Fuente",
}

// WriteCSV writes the analysis CSV. An absent cost is an empty cell, never
// zero.
func WriteCSV(dir string, records []models.ProcedureRecord) error {
	f, err := os.Create(filepath.Join(dir, CSVName))
	if err != nil {
		return fmt.Errorf("failed to create CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range records {
		cost := ""
		if rec.Cost != nil {
			cost = strconv.FormatFloat(*rec.Cost, 'f', 2, 64)
		}
		row := []string{
			rec.Name,
			rec.EntityName,
			rec.Category,
			cost,
			rec.Currency,
			rec.Duration,
			strconv.FormatBool(rec.IsFree),
			strconv.FormatBool(rec.IsOnline),
			strconv.Itoa(len(rec.Requirements)),
			rec.SourceURL,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteAll writes the three export files into dir, creating it if needed.
func WriteAll(dir string, records []models.ProcedureRecord, now time.Time) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := WriteFullJSON(dir, records); err != nil {
		return err
	}
	if err := WriteFrontendJSON(dir, records, now); err != nil {
		return err
	}
	return WriteCSV(dir, records)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error saving file: %s", err)
	}
	return nil
}

func distinct(records []models.ProcedureRecord, key func(models.ProcedureRecord) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range records {
		k := key(rec)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
