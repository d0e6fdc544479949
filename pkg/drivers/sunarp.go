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
	"github.com/tramiteperu/tupa-scraper/pkg/fetch"
)

const sunarpBase = "https://www.sunarp.gob.pe"

// sunarpSeedURLs cover the registry procedures companies and vehicle owners
// file most. SUNARP, like RENIEC, hosts its detail pages on gob.pe.
var sunarpSeedURLs = []string{
	"https://www.gob.pe/269-registrar-o-constituir-una-empresa",
	"https://www.gob.pe/1116-inscribir-la-transferencia-de-propiedad-vehicular",
	"https://www.gob.pe/8976-solicitar-busqueda-de-antecedentes-registrales",
}

// SunarpDriver scrapes SUNARP public-registry procedures. Discovery
// supplements the seed list with static-HTML portal scanning, the same shape
// as the RENIEC driver.
type SunarpDriver struct {
	portalURL     string
	static        *fetch.Client
	maxURLs       int
	detailTimeout time.Duration
	limiter       *rate.Limiter
	logger        *slog.Logger
}

type SunarpConfig struct {
	MaxURLs        int
	DetailTimeout  time.Duration
	RequestsPerSec float64
}

func NewSunarpDriver(cfg SunarpConfig, static *fetch.Client, logger *slog.Logger) *SunarpDriver {
	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}
	return &SunarpDriver{
		portalURL:     sunarpBase + "/tramites-y-servicios",
		static:        static,
		maxURLs:       cfg.MaxURLs,
		detailTimeout: cfg.DetailTimeout,
		limiter:       limiter,
		logger:        logger.With("driver", "sunarp"),
	}
}

func (d *SunarpDriver) Entity() string { return "SUNARP" }

func (d *SunarpDriver) DiscoverURLs(ctx context.Context, _ Fetcher) ([]string, error) {
	found := append([]string(nil), sunarpSeedURLs...)

	html, err := d.static.GetHTML(ctx, d.portalURL)
	if err != nil {
		d.logger.Warn("portal unreachable, using seeds only", "error", err)
	} else if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html)); derr == nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			abs := common.ResolveURL(sunarpBase, href)
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

func (d *SunarpDriver) ScrapeAll(ctx context.Context, session Fetcher) ([]models.ProcedureRecord, error) {
	urls, err := d.DiscoverURLs(ctx, session)
	if err != nil {
		return nil, err
	}
	return scrapeURLs(ctx, session, urls, d.Entity(), "SUNARP", d.detailTimeout, d.limiter, d.logger), nil
}
