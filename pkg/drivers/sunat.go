package drivers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/tramiteperu/tupa-scraper/internal/common"
	"github.com/tramiteperu/tupa-scraper/models"
	"github.com/tramiteperu/tupa-scraper/pkg/extractor"
	"github.com/tramiteperu/tupa-scraper/pkg/fetch"
)

const sunatBase = "https://www.sunat.gob.pe"

// sunatSeedURLs are procedure pages known to exist regardless of what index
// discovery finds. The tax authority's portal structure predates gob.pe and
// rarely changes.
var sunatSeedURLs = []string{
	"https://www.gob.pe/7480-inscribirte-en-el-ruc-persona-natural",
	"https://www.gob.pe/7482-inscribirte-en-el-ruc-persona-juridica",
	"https://www.gob.pe/8571-solicitar-clave-sol",
}

// SunatDriver scrapes SUNAT tax procedures. Its legacy index pages are
// static HTML, so discovery uses the plain HTTP client; detail pages still
// render through the browser because several redirect into gob.pe.
type SunatDriver struct {
	indexURL      string
	static        *fetch.Client
	maxURLs       int
	detailTimeout time.Duration
	limiter       *rate.Limiter
	logger        *slog.Logger
}

type SunatConfig struct {
	MaxURLs        int
	DetailTimeout  time.Duration
	RequestsPerSec float64
}

func NewSunatDriver(cfg SunatConfig, static *fetch.Client, logger *slog.Logger) *SunatDriver {
	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}
	return &SunatDriver{
		indexURL:      sunatBase + "/institucional/tramites/index.html",
		static:        static,
		maxURLs:       cfg.MaxURLs,
		detailTimeout: cfg.DetailTimeout,
		limiter:       limiter,
		logger:        logger.With("driver", "sunat"),
	}
}

func (d *SunatDriver) Entity() string { return "SUNAT" }

// DiscoverURLs merges the seed list with whatever the static index yields.
// An unreachable index is not fatal; the seeds alone keep the source alive.
func (d *SunatDriver) DiscoverURLs(ctx context.Context, _ Fetcher) ([]string, error) {
	found := append([]string(nil), sunatSeedURLs...)

	html, err := d.static.GetHTML(ctx, d.indexURL)
	if err != nil {
		d.logger.Warn("index unreachable, using seeds only", "error", err)
	} else if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html)); derr == nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			abs := common.ResolveURL(sunatBase, href)
			if abs != "" && isProcedureURL(abs) {
				found = append(found, abs)
			}
		})
	}

	urls, _ := common.SanitizeAndValidateURLs(common.Dedupe(found))
	if len(urls) > d.maxURLs {
		urls = urls[:d.maxURLs]
	}
	d.logger.Info("listing discovered", "urls", len(urls))
	return urls, nil
}

func (d *SunatDriver) ScrapeAll(ctx context.Context, session Fetcher) ([]models.ProcedureRecord, error) {
	urls, err := d.DiscoverURLs(ctx, session)
	if err != nil {
		return nil, err
	}

	records := make([]models.ProcedureRecord, 0, len(urls))
	for _, pageURL := range urls {
		if d.limiter != nil {
			if werr := d.limiter.Wait(ctx); werr != nil {
				d.logger.Warn("pacing interrupted", "error", werr)
				break
			}
		}

		html, ferr := session.Fetch(ctx, pageURL, d.detailTimeout)
		if ferr != nil {
			d.logger.Warn("navigation failed, skipping", "url", pageURL, "error", ferr)
			continue
		}

		rec, perr := extractor.ParseProcedure(html, pageURL)
		if perr != nil {
			d.logger.Warn("extraction failed, skipping", "url", pageURL, "error", perr)
			continue
		}

		// SUNAT publishes many fees as UIT fractions rather than sol
		// amounts.
		if rec.Cost == nil {
			if uit := extractor.ParseUITCost(html); uit != nil {
				rec.Cost = uit
				rec.IsFree = *uit == 0
			}
		}

		finalize(rec, d.Entity(), "SUNAT")
		records = append(records, *rec)
		d.logger.Info("procedure extracted", "name", rec.Name, "url", pageURL)
	}

	return records, nil
}
