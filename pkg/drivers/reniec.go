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

const reniecBase = "https://www.reniec.gob.pe"

// reniecSeedURLs are the identity procedures citizens actually look for.
// RENIEC hosts its detail pages on gob.pe.
var reniecSeedURLs = []string{
	"https://www.gob.pe/250-renovar-dni-para-mayores-de-edad",
	"https://www.gob.pe/226-duplicado-de-dni-electronico-dnie",
	"https://www.gob.pe/235-obtener-dni-por-primera-vez-para-mayores-de-edad",
	"https://www.gob.pe/243-rectificar-datos-en-el-dni",
}

// ReniecDriver scrapes RENIEC identity procedures. Like SUNAT, discovery
// supplements a seed list with static-HTML portal scanning.
type ReniecDriver struct {
	portalURL     string
	static        *fetch.Client
	maxURLs       int
	detailTimeout time.Duration
	limiter       *rate.Limiter
	logger        *slog.Logger
}

type ReniecConfig struct {
	MaxURLs        int
	DetailTimeout  time.Duration
	RequestsPerSec float64
}

func NewReniecDriver(cfg ReniecConfig, static *fetch.Client, logger *slog.Logger) *ReniecDriver {
	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}
	return &ReniecDriver{
		portalURL:     reniecBase + "/portal/tramites.htm",
		static:        static,
		maxURLs:       cfg.MaxURLs,
		detailTimeout: cfg.DetailTimeout,
		limiter:       limiter,
		logger:        logger.With("driver", "reniec"),
	}
}

func (d *ReniecDriver) Entity() string { return "RENIEC" }

func (d *ReniecDriver) DiscoverURLs(ctx context.Context, _ Fetcher) ([]string, error) {
	found := append([]string(nil), reniecSeedURLs...)

	html, err := d.static.GetHTML(ctx, d.portalURL)
	if err != nil {
		d.logger.Warn("portal unreachable, using seeds only", "error", err)
	} else if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html)); derr == nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			abs := common.ResolveURL(reniecBase, href)
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

func (d *ReniecDriver) ScrapeAll(ctx context.Context, session Fetcher) ([]models.ProcedureRecord, error) {
	urls, err := d.DiscoverURLs(ctx, session)
	if err != nil {
		return nil, err
	}
	return scrapeURLs(ctx, session, urls, d.Entity(), "RENIEC", d.detailTimeout, d.limiter, d.logger), nil
}
