// Package report builds the run summary written after every scrape: totals,
// per-entity and per-category breakdowns, and aggregate keywords across the
// harvested text.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tramiteperu/tupa-scraper/models"
	"github.com/tramiteperu/tupa-scraper/pkg/keywords"
)

// RunReport is the structure of the summary JSON written after a run. It
// gives a lightweight overview without requiring readers to load the full
// export files.
type RunReport struct {
	GeneratedAt       string         `json:"generated_at"`
	DurationSeconds   float64        `json:"duration_seconds"`
	TotalProcedures   int            `json:"total_procedures"`
	DriverErrors      int            `json:"driver_errors"`
	ByEntity          map[string]int `json:"by_entity"`
	ByCategory        map[string]int `json:"by_category"`
	FreeCount         int            `json:"free_count"`
	FreePercent       float64        `json:"free_percent"`
	OnlineCount       int            `json:"online_count"`
	OnlinePercent     float64        `json:"online_percent"`
	AggregateKeywords []string       `json:"aggregate_keywords"`
	MostExpensive     []CostEntry    `json:"most_expensive"`
}

// CostEntry names one of the priciest procedures in the run.
type CostEntry struct {
	Name   string  `json:"name"`
	Entity string  `json:"entity"`
	Cost   float64 `json:"cost"`
}

const (
	topKeywordCount = 25
	topCostCount    = 10
)

// Build aggregates a run's records into a report.
func Build(records []models.ProcedureRecord, duration time.Duration, driverErrors int, now time.Time) RunReport {
	rep := RunReport{
		GeneratedAt:     now.Format(time.RFC3339),
		DurationSeconds: duration.Seconds(),
		TotalProcedures: len(records),
		DriverErrors:    driverErrors,
		ByEntity:        make(map[string]int),
		ByCategory:      make(map[string]int),
	}

	aggregate := make(map[string]int)
	var priced []CostEntry

	for _, rec := range records {
		rep.ByEntity[rec.EntityName]++
		rep.ByCategory[rec.Category]++
		if rec.IsFree {
			rep.FreeCount++
		}
		if rec.IsOnline {
			rep.OnlineCount++
		}
		for word, count := range keywords.WordFrequency(rec.Name + " " + rec.Description) {
			aggregate[word] += count
		}
		if rec.Cost != nil && *rec.Cost > 0 {
			priced = append(priced, CostEntry{Name: rec.Name, Entity: rec.EntityName, Cost: *rec.Cost})
		}
	}

	if len(records) > 0 {
		rep.FreePercent = float64(rep.FreeCount) / float64(len(records)) * 100
		rep.OnlinePercent = float64(rep.OnlineCount) / float64(len(records)) * 100
	}

	rep.AggregateKeywords = keywords.TopN(aggregate, topKeywordCount)

	sort.Slice(priced, func(i, j int) bool {
		if priced[i].Cost != priced[j].Cost {
			return priced[i].Cost > priced[j].Cost
		}
		return priced[i].Name < priced[j].Name
	})
	if len(priced) > topCostCount {
		priced = priced[:topCostCount]
	}
	rep.MostExpensive = priced

	return rep
}

// Write saves the report as results/report-YYYY-MM-DD.json inside dir and
// returns the path.
func Write(dir string, rep RunReport, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("report-%s.json", now.Format("2006-01-02")))
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshalling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("error saving report: %w", err)
	}
	return path, nil
}
