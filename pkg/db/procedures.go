package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tramiteperu/tupa-scraper/models"
)

// execQuerier abstracts *sql.DB and *sql.Tx so upserts run standalone or
// inside a run transaction.
type execQuerier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// UpsertProcedure inserts a record or updates the existing row with the same
// source_url. Returns true when a new row was inserted. Cross-driver
// duplicates resolve here, at the persistence boundary, not in the pipeline.
func (db *DB) UpsertProcedure(rec *models.ProcedureRecord) (inserted bool, err error) {
	return upsertProcedure(db.DB, rec)
}

func upsertProcedure(q execQuerier, rec *models.ProcedureRecord) (inserted bool, err error) {
	var existingID int64
	err = q.QueryRow("SELECT procedure_id FROM procedures WHERE source_url = ?", rec.SourceURL).Scan(&existingID)
	switch {
	case err == nil:
		inserted = false
	case errors.Is(err, sql.ErrNoRows):
		inserted = true
	default:
		return false, fmt.Errorf("failed to check existing procedure: %w", err)
	}

	requirements, err := marshalList(rec.Requirements)
	if err != nil {
		return false, err
	}
	steps, err := marshalList(rec.Steps)
	if err != nil {
		return false, err
	}
	channels, err := marshalList(rec.Channels)
	if err != nil {
		return false, err
	}
	tags, err := marshalList(rec.Tags)
	if err != nil {
		return false, err
	}
	kws, err := marshalList(rec.Keywords)
	if err != nil {
		return false, err
	}
	legal, err := marshalList(rec.LegalBasis)
	if err != nil {
		return false, err
	}

	var cost sql.NullFloat64
	if rec.Cost != nil {
		cost = sql.NullFloat64{Float64: *rec.Cost, Valid: true}
	}

	_, err = q.Exec(`
		INSERT INTO procedures (
			source_url, name, description, requirements, steps, cost,
			currency, is_free, duration, entity_name, entity_code,
			tupa_code, is_online, channels, category, tags, keywords,
			legal_basis, language
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			requirements = excluded.requirements,
			steps = excluded.steps,
			cost = excluded.cost,
			currency = excluded.currency,
			is_free = excluded.is_free,
			duration = excluded.duration,
			entity_name = excluded.entity_name,
			entity_code = excluded.entity_code,
			tupa_code = excluded.tupa_code,
			is_online = excluded.is_online,
			channels = excluded.channels,
			category = excluded.category,
			tags = excluded.tags,
			keywords = excluded.keywords,
			legal_basis = excluded.legal_basis,
			language = excluded.language,
			updated_at = CURRENT_TIMESTAMP
	`, rec.SourceURL, rec.Name, rec.Description, requirements, steps, cost,
		rec.Currency, rec.IsFree, rec.Duration, rec.EntityName, rec.EntityCode,
		rec.TupaCode, rec.IsOnline, channels, rec.Category, tags, kws,
		legal, rec.Language)
	if err != nil {
		return false, fmt.Errorf("failed to upsert procedure: %w", err)
	}

	return inserted, nil
}

// UpsertAll writes the full run output in one transaction and reports how
// many rows were inserted vs updated.
func (db *DB) UpsertAll(records []models.ProcedureRecord) (insertedCount, updatedCount int, err error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range records {
		inserted, uerr := upsertProcedure(tx, &records[i])
		if uerr != nil {
			err = uerr
			return 0, 0, err
		}
		if inserted {
			insertedCount++
		} else {
			updatedCount++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit: %w", err)
	}
	return insertedCount, updatedCount, nil
}

// ListProcedures returns every stored procedure ordered by entity then name.
func (db *DB) ListProcedures() ([]models.ProcedureRecord, error) {
	rows, err := db.Query(`
		SELECT source_url, name, description, requirements, steps, cost,
		       currency, is_free, duration, entity_name, entity_code,
		       tupa_code, is_online, channels, category, tags, keywords,
		       legal_basis, language
		FROM procedures
		ORDER BY entity_code, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query procedures: %w", err)
	}
	defer rows.Close()

	var records []models.ProcedureRecord
	for rows.Next() {
		var rec models.ProcedureRecord
		var cost sql.NullFloat64
		var requirements, steps, channels, tags, kws, legal string

		err := rows.Scan(&rec.SourceURL, &rec.Name, &rec.Description,
			&requirements, &steps, &cost, &rec.Currency, &rec.IsFree,
			&rec.Duration, &rec.EntityName, &rec.EntityCode, &rec.TupaCode,
			&rec.IsOnline, &channels, &rec.Category, &tags, &kws,
			&legal, &rec.Language)
		if err != nil {
			return nil, fmt.Errorf("failed to scan procedure: %w", err)
		}

		if cost.Valid {
			rec.Cost = models.CostOf(cost.Float64)
		}
		if rec.Requirements, err = unmarshalList(requirements); err != nil {
			return nil, err
		}
		if rec.Steps, err = unmarshalList(steps); err != nil {
			return nil, err
		}
		if rec.Channels, err = unmarshalList(channels); err != nil {
			return nil, err
		}
		if rec.Tags, err = unmarshalList(tags); err != nil {
			return nil, err
		}
		if rec.Keywords, err = unmarshalList(kws); err != nil {
			return nil, err
		}
		if rec.LegalBasis, err = unmarshalList(legal); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountProcedures returns the stored total.
func (db *DB) CountProcedures() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM procedures").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count procedures: %w", err)
	}
	return count, nil
}

// CountByEntity returns stored totals keyed by entity code.
func (db *DB) CountByEntity() (map[string]int, error) {
	rows, err := db.Query("SELECT entity_code, COUNT(*) FROM procedures GROUP BY entity_code")
	if err != nil {
		return nil, fmt.Errorf("failed to count by entity: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var entity string
		var count int
		if err := rows.Scan(&entity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan entity count: %w", err)
		}
		counts[entity] = count
	}
	return counts, rows.Err()
}

// ValidationIssue describes one stored row violating a record invariant.
type ValidationIssue struct {
	SourceURL string
	Problem   string
}

// Validate checks stored rows against the record invariants: non-negative
// cost, non-empty name and category, and tag count. Any expectedEntities
// with no stored procedures are flagged as store-level issues.
func (db *DB) Validate(expectedEntities ...string) ([]ValidationIssue, error) {
	var issues []ValidationIssue

	rows, err := db.Query("SELECT source_url, name, cost, category, tags FROM procedures")
	if err != nil {
		return nil, fmt.Errorf("failed to query for validation: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sourceURL, name, category, tags string
		var cost sql.NullFloat64
		if err := rows.Scan(&sourceURL, &name, &cost, &category, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan validation row: %w", err)
		}

		if cost.Valid && cost.Float64 < 0 {
			issues = append(issues, ValidationIssue{sourceURL, "negative cost"})
		}
		if name == "" {
			issues = append(issues, ValidationIssue{sourceURL, "empty name"})
		}
		if category == "" {
			issues = append(issues, ValidationIssue{sourceURL, "empty category"})
		}
		tagList, err := unmarshalList(tags)
		if err != nil {
			issues = append(issues, ValidationIssue{sourceURL, "malformed tags"})
			continue
		}
		if len(tagList) > 5 {
			issues = append(issues, ValidationIssue{sourceURL, fmt.Sprintf("%d tags, limit is 5", len(tagList))})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(expectedEntities) > 0 {
		counts, err := db.CountByEntity()
		if err != nil {
			return nil, err
		}
		for _, entity := range expectedEntities {
			if counts[entity] == 0 {
				issues = append(issues, ValidationIssue{"store", fmt.Sprintf("entity %s has no procedures", entity)})
			}
		}
	}

	return issues, nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal list: %w", err)
	}
	return string(data), nil
}

func unmarshalList(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal list: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}
