// Package scrape wires the browser session, source drivers, and persistence
// into the pipeline behind the CLI. The orchestrator owns the run lifecycle;
// drivers never touch the browser process directly.
package scrape

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tramiteperu/tupa-scraper/models"
	"github.com/tramiteperu/tupa-scraper/pkg/browser"
	"github.com/tramiteperu/tupa-scraper/pkg/drivers"
)

// Session is the slice of the browser session the orchestrator needs.
// *browser.Session satisfies it; tests substitute fakes so no run ever needs
// a real Chrome.
type Session interface {
	Init(ctx context.Context) error
	Close()
	Fetch(ctx context.Context, pageURL string, timeout time.Duration) (string, error)
}

// Orchestrator fans a single run out over every registered driver.
type Orchestrator struct {
	session Session
	drivers []drivers.Driver
	logger  *slog.Logger
}

func NewOrchestrator(session Session, drv []drivers.Driver, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{session: session, drivers: drv, logger: logger}
}

type driverResult struct {
	entity  string
	records []models.ProcedureRecord
	err     error
}

// RunAll initializes the browser once, runs every driver concurrently, and
// flattens their output. The session is closed exactly once on every path.
// A browser launch failure aborts before any driver executes; a failing
// driver only loses its own records. driverErrors counts sources that
// returned nothing because they were unreachable.
func (o *Orchestrator) RunAll(ctx context.Context) (records []models.ProcedureRecord, driverErrors int, err error) {
	if err := o.session.Init(ctx); err != nil {
		o.logger.Error("browser launch failed", "error", err)
		return nil, 0, err
	}
	defer o.session.Close()

	results := make(chan driverResult, len(o.drivers))
	var wg sync.WaitGroup

	for _, d := range o.drivers {
		wg.Add(1)
		go func(d drivers.Driver) {
			defer wg.Done()
			recs, derr := d.ScrapeAll(ctx, o.session)
			results <- driverResult{entity: d.Entity(), records: recs, err: derr}
		}(d)
	}

	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			driverErrors++
			o.logger.Warn("driver failed, continuing with siblings", "entity", res.entity, "error", res.err)
			continue
		}
		o.logger.Info("driver finished", "entity", res.entity, "records", len(res.records))
		records = append(records, res.records...)
	}

	return records, driverErrors, nil
}

// NewBrowserSession builds the production session from config.
func NewBrowserSession(cfg *models.Config) *browser.Session {
	return browser.NewSession(browser.Options{
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
	})
}
