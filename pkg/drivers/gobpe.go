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
)

const (
	gobPeBase    = "https://www.gob.pe"
	gobPeListing = "https://www.gob.pe/busquedas?contenido[]=tramites"
)

// Listing anchors on gob.pe search results. The markup has gone through
// several redesigns; old selectors stay in the list because entity subsites
// still serve them.
var gobPeLinkSelectors = []string{
	`a[href*="/tramites/"]`,
	`a[href*="/procedimiento"]`,
	`a[href*="/servicio"]`,
	".tramite-link a",
	".procedimiento-link a",
	`[data-testid="search-result"] a`,
}

// procedureURLKeywords gate discovered hrefs; anything without one of these
// is navigation chrome, not a procedure page.
var procedureURLKeywords = []string{
	"tramite", "procedimiento", "servicio", "solicitud",
	"dni", "ruc", "licencia", "certificado", "registro",
}

// GobPeDriver scrapes the national portal's trámite search. Discovery is
// dynamic: the listing only fills in after client-side rendering, so it goes
// through the browser session with the longer listing timeout.
type GobPeDriver struct {
	listingURL     string
	maxURLs        int
	detailTimeout  time.Duration
	listingTimeout time.Duration
	limiter        *rate.Limiter
	logger         *slog.Logger
}

// GobPeConfig carries the tunables the orchestrator resolves from the run
// config.
type GobPeConfig struct {
	MaxURLs        int
	DetailTimeout  time.Duration
	ListingTimeout time.Duration
	RequestsPerSec float64
}

func NewGobPeDriver(cfg GobPeConfig, logger *slog.Logger) *GobPeDriver {
	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}
	return &GobPeDriver{
		listingURL:     gobPeListing,
		maxURLs:        cfg.MaxURLs,
		detailTimeout:  cfg.DetailTimeout,
		listingTimeout: cfg.ListingTimeout,
		limiter:        limiter,
		logger:         logger.With("driver", "gob.pe"),
	}
}

func (d *GobPeDriver) Entity() string { return "Gobierno del Perú" }

// DiscoverURLs renders the trámite search listing and collects procedure
// links, deduplicated and capped to bound total run cost.
func (d *GobPeDriver) DiscoverURLs(ctx context.Context, session Fetcher) ([]string, error) {
	html, err := session.Fetch(ctx, d.listingURL, d.listingTimeout)
	if err != nil {
		return nil, &DriverError{Entity: d.Entity(), Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &DriverError{Entity: d.Entity(), Err: err}
	}

	var found []string
	for _, sel := range gobPeLinkSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			abs := common.ResolveURL(gobPeBase, href)
			if abs == "" || !isProcedureURL(abs) {
				return
			}
			found = append(found, abs)
		})
	}

	urls, invalid := common.SanitizeAndValidateURLs(common.Dedupe(found))
	if len(invalid) > 0 {
		d.logger.Debug("discarded malformed listing hrefs", "count", len(invalid))
	}
	if len(urls) > d.maxURLs {
		urls = urls[:d.maxURLs]
	}

	d.logger.Info("listing discovered", "urls", len(urls))
	return urls, nil
}

func (d *GobPeDriver) ScrapeAll(ctx context.Context, session Fetcher) ([]models.ProcedureRecord, error) {
	urls, err := d.DiscoverURLs(ctx, session)
	if err != nil {
		return nil, err
	}
	// The listing mixes many entities' procedures; the extractor's per-URL
	// entity detection stands, defaulting to the national portal itself.
	return scrapeURLs(ctx, session, urls, "", "", d.detailTimeout, d.limiter, d.logger), nil
}

func isProcedureURL(pageURL string) bool {
	lowered := strings.ToLower(pageURL)
	for _, kw := range procedureURLKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
