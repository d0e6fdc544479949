package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tramiteperu/tupa-scraper/models"
	"github.com/tramiteperu/tupa-scraper/pkg/db"
	"github.com/tramiteperu/tupa-scraper/pkg/drivers"
	"github.com/tramiteperu/tupa-scraper/pkg/export"
	"github.com/tramiteperu/tupa-scraper/pkg/fetch"
	"github.com/tramiteperu/tupa-scraper/pkg/report"
)

func newLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func loadConfig(c *cli.Context, logger *slog.Logger) *models.Config {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		logger.Error("invalid config file", "path", c.String("config"), "error", err)
		os.Exit(2)
	}
	applyOverrides(c, cfg)
	return cfg
}

// applyOverrides copies CLI flag values over the file config. Only flags the
// user actually set win; unset flags keep whatever the file said.
func applyOverrides(c *cli.Context, cfg *models.Config) {
	if c.IsSet("headless") {
		cfg.Headless = c.Bool("headless")
	}
}

// ScrapeFlags declares the scrape command's flags.
func ScrapeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-db",
			Usage: "skip persistence; export straight from the scrape results",
		},
		&cli.BoolFlag{
			Name:  "no-export",
			Usage: "skip writing the JSON/CSV export files",
		},
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "run Chrome headless (overrides the config file)",
			Value: true,
		},
	}
}

// runOptions carries the scrape command's toggles into the pipeline.
type runOptions struct {
	skipExport bool
}

// buildDrivers registers one driver per supported entity.
func buildDrivers(cfg *models.Config, logger *slog.Logger) []drivers.Driver {
	static := fetch.NewClient(cfg.UserAgent, cfg.ListingTimeout())
	return []drivers.Driver{
		drivers.NewGobPeDriver(drivers.GobPeConfig{
			MaxURLs:        cfg.MaxListingURLs,
			DetailTimeout:  cfg.DetailTimeout(),
			ListingTimeout: cfg.ListingTimeout(),
			RequestsPerSec: cfg.RequestsPerSecond,
		}, logger),
		drivers.NewSunatDriver(drivers.SunatConfig{
			MaxURLs:        cfg.MaxListingURLs,
			DetailTimeout:  cfg.DetailTimeout(),
			RequestsPerSec: cfg.RequestsPerSecond,
		}, static, logger),
		drivers.NewReniecDriver(drivers.ReniecConfig{
			MaxURLs:        cfg.MaxListingURLs,
			DetailTimeout:  cfg.DetailTimeout(),
			RequestsPerSec: cfg.RequestsPerSecond,
		}, static, logger),
		drivers.NewSunarpDriver(drivers.SunarpConfig{
			MaxURLs:        cfg.MaxListingURLs,
			DetailTimeout:  cfg.DetailTimeout(),
			RequestsPerSec: cfg.RequestsPerSecond,
		}, static, logger),
	}
}

// driverEntities lists the entity names the registered drivers cover, in
// registration order.
func driverEntities(drv []drivers.Driver) []string {
	entities := make([]string, 0, len(drv))
	for _, d := range drv {
		entities = append(entities, d.Entity())
	}
	return entities
}

// ScrapeAction runs the full pipeline: launch browser, fan out drivers,
// persist, export, and write the run report. With --no-db the store is never
// opened and exports come straight from the scrape.
func ScrapeAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg := loadConfig(c, logger)

	var database *db.DB
	if !c.Bool("no-db") {
		var err error
		database, err = db.Open(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(2)
		}
		defer database.Close()
	}

	session := NewBrowserSession(cfg)
	opts := runOptions{skipExport: c.Bool("no-export")}
	return runPipeline(c.Context, cfg, opts, session, buildDrivers(cfg, logger), database, logger)
}

// runPipeline is the scrape command minus flag parsing and resource setup,
// so tests can drive it with fakes. A nil database skips persistence.
func runPipeline(
	ctx context.Context,
	cfg *models.Config,
	opts runOptions,
	session Session,
	drv []drivers.Driver,
	database *db.DB,
	logger *slog.Logger,
) error {
	startTime := time.Now()
	orchestrator := NewOrchestrator(session, drv, logger)

	records, driverErrors, err := orchestrator.RunAll(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("scrape run failed: %v", err), 1)
	}

	finished := time.Now()
	inserted, updated := 0, 0
	exportRecords := records

	if database != nil {
		inserted, updated, err = database.UpsertAll(records)
		if err != nil {
			logger.Error("failed to persist records", "error", err)
			return cli.Exit("persistence failed", 1)
		}

		if _, err := database.InsertRun(db.Run{
			StartedAt:     startTime,
			FinishedAt:    finished,
			TotalRecords:  len(records),
			InsertedCount: inserted,
			UpdatedCount:  updated,
			DriverErrors:  driverErrors,
		}); err != nil {
			logger.Warn("failed to record run", "error", err)
		}

		stored, err := database.ListProcedures()
		if err != nil {
			logger.Error("failed to load stored records for export", "error", err)
			return cli.Exit("export failed", 1)
		}
		exportRecords = stored
	}

	if !opts.skipExport {
		if err := export.WriteAll(cfg.OutputDir, exportRecords, finished); err != nil {
			logger.Error("export failed", "error", err)
			return cli.Exit("export failed", 1)
		}
	}

	rep := report.Build(records, finished.Sub(startTime), driverErrors, finished)
	reportPath, err := report.Write(cfg.OutputDir, rep, finished)
	if err != nil {
		logger.Warn("failed to write run report", "error", err)
	}

	logger.Info("scrape run complete",
		"records", len(records),
		"inserted", inserted,
		"updated", updated,
		"driver_errors", driverErrors,
		"duration", finished.Sub(startTime).String(),
		"report", reportPath,
	)
	return nil
}

// ExportAction regenerates the export files from the store without scraping.
func ExportAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg := loadConfig(c, logger)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(2)
	}
	defer database.Close()

	records, err := database.ListProcedures()
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load records: %v", err), 1)
	}
	if err := export.WriteAll(cfg.OutputDir, records, time.Now()); err != nil {
		return cli.Exit(fmt.Sprintf("export failed: %v", err), 1)
	}

	logger.Info("export complete", "records", len(records), "dir", cfg.OutputDir)
	return nil
}

// ValidateAction checks stored rows against the data invariants and prints
// store statistics. Entities with a registered driver but no stored
// procedures count as violations.
func ValidateAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg := loadConfig(c, logger)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(2)
	}
	defer database.Close()

	total, err := database.CountProcedures()
	if err != nil {
		return cli.Exit(fmt.Sprintf("validation failed: %v", err), 1)
	}
	byEntity, err := database.CountByEntity()
	if err != nil {
		return cli.Exit(fmt.Sprintf("validation failed: %v", err), 1)
	}

	fmt.Printf("Stored procedures: %d\n", total)
	for entity, count := range byEntity {
		fmt.Printf("  %s: %d\n", entity, count)
	}

	if lastRun, err := database.LastRun(); err == nil && lastRun != nil {
		fmt.Printf("Last run: %s (%d records, %d driver errors)\n",
			lastRun.StartedAt.Format(time.RFC3339), lastRun.TotalRecords, lastRun.DriverErrors)
	}

	issues, err := database.Validate(driverEntities(buildDrivers(cfg, logger))...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("validation failed: %v", err), 1)
	}
	if len(issues) == 0 {
		fmt.Println("No invariant violations found")
		return nil
	}

	for _, issue := range issues {
		fmt.Printf("INVALID %s: %s\n", issue.SourceURL, issue.Problem)
	}
	return cli.Exit(fmt.Sprintf("%d invariant violations", len(issues)), 1)
}
