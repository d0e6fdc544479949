// Package drivers holds one Source Driver per government entity. A driver
// owns its site's discovery and extraction quirks; everything an entity
// changes on its portal stays inside its driver.
package drivers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/tramiteperu/tupa-scraper/models"
	"github.com/tramiteperu/tupa-scraper/pkg/classifier"
	"github.com/tramiteperu/tupa-scraper/pkg/extractor"
	"github.com/tramiteperu/tupa-scraper/pkg/keywords"
)

// Fetcher renders a page in the shared browser session and returns its HTML.
// The production implementation is *browser.Session; tests substitute fakes.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, timeout time.Duration) (string, error)
}

// Driver is one entity's discovery + extraction pipeline. ScrapeAll never
// aborts on a single bad URL; a source that is wholly unreachable returns a
// *DriverError and no records.
type Driver interface {
	Entity() string
	DiscoverURLs(ctx context.Context, session Fetcher) ([]string, error)
	ScrapeAll(ctx context.Context, session Fetcher) ([]models.ProcedureRecord, error)
}

// DriverError means a whole source was unreachable (listing never loaded).
// Sibling drivers are unaffected.
type DriverError struct {
	Entity string
	Err    error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver %s: %v", e.Entity, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// finalize fills the classification fields on a freshly extracted record and
// stamps the owning entity. An empty entityName keeps whatever the extractor
// derived from the page URL: the general listing mixes procedures from many
// entities, so its driver must not flatten them all to one owner.
func finalize(rec *models.ProcedureRecord, entityName, entityCode string) {
	if entityName != "" {
		rec.EntityName = entityName
		rec.EntityCode = entityCode
	}
	rec.Category = classifier.Categorize(rec.Name, rec.Description)
	rec.Tags = classifier.Tags(rec.Name, rec.Description)
	rec.Keywords = keywords.Extract(rec.Name, rec.Description)
	rec.Language = classifier.DetectLanguage(rec.Name + " " + rec.Description)
}

// scrapeURLs runs the shared per-driver detail loop: paced, sequential,
// skip-on-error. Output order matches discovery order.
func scrapeURLs(
	ctx context.Context,
	session Fetcher,
	urls []string,
	entityName, entityCode string,
	timeout time.Duration,
	limiter *rate.Limiter,
	logger *slog.Logger,
) []models.ProcedureRecord {
	records := make([]models.ProcedureRecord, 0, len(urls))

	for _, pageURL := range urls {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				logger.Warn("pacing interrupted", "error", err)
				break
			}
		}

		html, err := session.Fetch(ctx, pageURL, timeout)
		if err != nil {
			logger.Warn("navigation failed, skipping", "url", pageURL, "error", err)
			continue
		}

		rec, err := extractor.ParseProcedure(html, pageURL)
		if err != nil {
			logger.Warn("extraction failed, skipping", "url", pageURL, "error", err)
			continue
		}

		finalize(rec, entityName, entityCode)
		records = append(records, *rec)
		logger.Info("procedure extracted", "entity", rec.EntityName, "name", rec.Name, "url", pageURL)
	}

	return records
}
