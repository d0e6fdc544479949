// Package extractor turns rendered procedure-page HTML into ProcedureRecord
// fields. Every field tries an ordered list of selector candidates and takes
// the first non-empty match; list fields fall back to generic list items
// filtered by keyword heuristics when no site-specific selector hits.
package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/tramiteperu/tupa-scraper/internal/common"
	"github.com/tramiteperu/tupa-scraper/models"
	"github.com/tramiteperu/tupa-scraper/pkg/classifier"
)

// ExtractionError indicates the rendered HTML could not be parsed into a
// record. Like a navigation failure, it is recovered per URL.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Selector candidate lists, highest priority first. gob.pe markup changes
// without notice, so each list mixes current selectors with older ones still
// live on cached entity pages.
var (
	nameSelectors = []string{
		"h1", "h2.titulo", ".procedure-title", ".tramite-titulo", ".page-title", "title",
	}
	descriptionSelectors = []string{
		".descripcion", ".description", ".resumen", ".summary",
		".procedure-description", "p.intro", ".content p",
	}
	requirementSelectors = []string{
		".requisitos li", "#requisitos li", "section.requisitos li", ".requirements li",
	}
	stepSelectors = []string{
		".pasos li", "#pasos li", "ol.pasos li", ".steps li", ".procedure-steps li",
	}
	costSelectors = []string{
		".costo", ".tasa", ".precio", ".cost",
	}
	durationSelectors = []string{
		".plazo", ".duracion", ".duración", ".tiempo", ".processing-time",
	}
)

// Keyword heuristics for the generic list-item fallback.
var (
	requirementKeywords = []string{"requisito", "documento", "presentar"}
	stepKeywords        = []string{"paso", "acude", "ingresa", "dirígete", "presenta"}
)

var (
	costPattern     = regexp.MustCompile(`(?i)S/\.?\s*([\d][\d.,]*)`)
	uitPattern      = regexp.MustCompile(`(?i)([\d]+(?:\.[\d]+)?)\s*%?\s*(?:de\s+la\s+)?UIT`)
	tupaCodePattern = regexp.MustCompile(`(?i)(?:TUPA|Código|N°)[:\s]*([A-Z0-9][A-Z0-9\-.]+)`)
	durationPattern = regexp.MustCompile(`(?i)(\d+\s*(?:a\s*\d+\s*)?(?:día|días|hábil|hábiles|hora|horas|mes|meses|semana|semanas))|inmediato|al momento`)
	legalPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Ley\s+N?°?\s*\d+[^\n.]*`),
		regexp.MustCompile(`(?i)Decreto\s+\p{L}+\s+N?°?\s*\d+[^\n.]*`),
		regexp.MustCompile(`(?i)Resolución\s+\p{L}+\s+N?°?\s*\d+[^\n.]*`),
	}
)

// freeMarkers short-circuit cost parsing: the page states the procedure is
// free, which is an explicit zero, not an absent cost.
var freeMarkers = []string{"gratuito", "gratis", "sin costo"}

// uitValue is the 2024 reference tax unit in soles. SUNAT publishes some
// fees as UIT fractions instead of sol amounts.
const uitValue = 5150.0

const (
	minNameLen        = 10
	maxNameLen        = 200
	minDescriptionLen = 20
	maxDescriptionLen = 1000
	minListItemLen    = 10
	maxListItemLen    = 300
	maxListItems      = 10
	maxLegalRefs      = 3
)

// ParseCost extracts the first sol-denominated amount from text. It returns
// nil when no monetary pattern is present; an explicit free marker yields a
// present zero. Thousands separators are stripped before parsing.
func ParseCost(text string) *float64 {
	lowered := strings.ToLower(text)
	for _, marker := range freeMarkers {
		if strings.Contains(lowered, marker) {
			return models.CostOf(0)
		}
	}

	m := costPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := m[1]

	// "1,234.50" carries comma thousands separators; "32.20" does not.
	// A trailing ".NN" group is the decimal part, everything else is noise.
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimRight(raw, ".")

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return nil
	}
	return models.CostOf(value)
}

// ParseUITCost converts a UIT-fraction fee ("3.5% UIT", "0.5 UIT") to soles.
// Returns nil when no UIT pattern is present.
func ParseUITCost(text string) *float64 {
	m := uitPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	frac, err := strconv.ParseFloat(m[1], 64)
	if err != nil || frac < 0 {
		return nil
	}
	// Percent notation when the matched text carries '%', otherwise a
	// direct UIT multiple.
	if strings.Contains(m[0], "%") {
		return models.CostOf(frac * uitValue / 100)
	}
	return models.CostOf(frac * uitValue)
}

// firstText returns the first selector candidate whose text lands inside the
// length bounds. maxLen of 0 means unbounded; text beyond a positive maxLen
// is truncated rather than rejected.
func firstText(doc *goquery.Document, selectors []string, minLen, maxLen int) string {
	for _, sel := range selectors {
		text := common.NormalizeText(doc.Find(sel).First().Text())
		if len(text) <= minLen {
			continue
		}
		if sel == "h1" || sel == "title" || strings.HasPrefix(sel, "h2") {
			// Headings over the bound are junk (whole-nav matches), skip.
			if maxLen > 0 && len(text) > maxLen {
				continue
			}
			return text
		}
		if maxLen > 0 && len(text) > maxLen {
			return common.Truncate(text, maxLen)
		}
		return text
	}
	return ""
}

// listItems collects the items matched by the first selector candidate that
// yields anything, bounded in count and per-item length.
func listItems(doc *goquery.Document, selectors []string) []string {
	for _, sel := range selectors {
		var items []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if len(items) == maxListItems {
				return
			}
			text := common.NormalizeText(s.Text())
			if len(text) > minListItemLen && len(text) < maxListItemLen {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			return common.Dedupe(items)
		}
	}
	return nil
}

// genericListFallback scans every list item on the page and keeps the ones
// containing any of the given keywords.
func genericListFallback(doc *goquery.Document, keywordSet []string) []string {
	var items []string
	doc.Find("ul li, ol li").Each(func(_ int, s *goquery.Selection) {
		if len(items) == maxListItems {
			return
		}
		text := common.NormalizeText(s.Text())
		if len(text) <= minListItemLen || len(text) >= maxListItemLen {
			return
		}
		lowered := strings.ToLower(text)
		for _, kw := range keywordSet {
			if strings.Contains(lowered, kw) {
				items = append(items, text)
				return
			}
		}
	})
	return common.Dedupe(items)
}

// entityFromURL guesses the owning entity when the driver does not override
// it.
func entityFromURL(pageURL string) (name, code string) {
	switch {
	case strings.Contains(pageURL, "sunat"):
		return "SUNAT", "SUNAT"
	case strings.Contains(pageURL, "reniec"):
		return "RENIEC", "RENIEC"
	case strings.Contains(pageURL, "sunarp"):
		return "SUNARP", "SUNARP"
	case strings.Contains(pageURL, "minsa"):
		return "MINSA", "MINSA"
	case strings.Contains(pageURL, "municip"):
		return "Municipalidad", "MUNI"
	default:
		return "Gobierno del Perú", "GOB"
	}
}

// readableDescription runs the readability pass as a last resort when no
// description selector matched. It returns "" on any failure; a missing
// description is a degenerate record, not an error.
func readableDescription(html, pageURL string) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	readabilityParser := readability.NewParser()
	article, err := readabilityParser.Parse(strings.NewReader(html), parsedURL)
	if err != nil {
		return ""
	}
	text := common.NormalizeText(article.Excerpt)
	if text == "" {
		text = common.NormalizeText(article.TextContent)
	}
	return common.Truncate(text, maxDescriptionLen)
}

// ParseProcedure builds a ProcedureRecord from rendered HTML. Classification
// fields (category, tags, keywords, language) are left empty; the calling
// driver fills them. An empty name is a valid, degenerate outcome and never
// an error.
func ParseProcedure(html, pageURL string) (*models.ProcedureRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{URL: pageURL, Err: err}
	}

	bodyText := common.NormalizeText(doc.Find("body").Text())

	name := firstText(doc, nameSelectors, minNameLen, maxNameLen)

	description := firstText(doc, descriptionSelectors, minDescriptionLen, maxDescriptionLen)
	if description == "" {
		var paragraphs []string
		doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
			paragraphs = append(paragraphs, common.NormalizeText(s.Text()))
			return i < 2
		})
		description = common.Truncate(common.NormalizeText(strings.Join(paragraphs, " ")), maxDescriptionLen)
	}
	if description == "" {
		description = readableDescription(html, pageURL)
	}

	requirements := listItems(doc, requirementSelectors)
	if len(requirements) == 0 {
		requirements = genericListFallback(doc, requirementKeywords)
	}

	steps := listItems(doc, stepSelectors)
	if len(steps) == 0 {
		steps = genericListFallback(doc, stepKeywords)
	}

	cost := ParseCost(firstText(doc, costSelectors, 0, 0))
	if cost == nil {
		cost = ParseCost(bodyText)
	}

	duration := firstText(doc, durationSelectors, 0, 0)
	if duration == "" {
		duration = durationPattern.FindString(bodyText)
	}
	if duration == "" {
		duration = models.DurationUnspecified
	}

	tupaCode := ""
	if m := tupaCodePattern.FindStringSubmatch(bodyText); m != nil {
		tupaCode = m[1]
	}

	var legalBasis []string
	for _, pattern := range legalPatterns {
		refs := pattern.FindAllString(bodyText, maxLegalRefs)
		for _, ref := range refs {
			legalBasis = append(legalBasis, common.NormalizeText(ref))
		}
	}
	legalBasis = common.Dedupe(legalBasis)

	entityName, entityCode := entityFromURL(pageURL)

	return &models.ProcedureRecord{
		Name:         name,
		Description:  description,
		Requirements: requirements,
		Steps:        steps,
		Cost:         cost,
		Currency:     "PEN",
		IsFree:       cost != nil && *cost == 0,
		IsOnline:     classifier.IsOnline(bodyText),
		Duration:     duration,
		SourceURL:    pageURL,
		EntityName:   entityName,
		EntityCode:   entityCode,
		TupaCode:     tupaCode,
		Channels:     detectChannels(bodyText),
		LegalBasis:   legalBasis,
	}, nil
}

// detectChannels infers service channels from page text. Every TUPA
// procedure has at least an in-person channel.
func detectChannels(bodyText string) []string {
	lowered := strings.ToLower(bodyText)
	var channels []string
	if strings.Contains(lowered, "presencial") || strings.Contains(lowered, "oficina") {
		channels = append(channels, "Presencial")
	}
	if strings.Contains(lowered, "virtual") || strings.Contains(lowered, "línea") || strings.Contains(lowered, "web") {
		channels = append(channels, "Virtual")
	}
	if strings.Contains(lowered, "teléfono") || strings.Contains(lowered, "telefónic") {
		channels = append(channels, "Telefónico")
	}
	if strings.Contains(lowered, "correo") || strings.Contains(lowered, "email") {
		channels = append(channels, "Correo electrónico")
	}
	if len(channels) == 0 {
		channels = []string{"Presencial"}
	}
	return channels
}
