package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tramiteperu/tupa-scraper/internal/scrape"
)

func main() {
	app := &cli.App{
		Name:  "tupa-scraper",
		Usage: "harvest Peruvian government procedure (TUPA) data from gob.pe, SUNAT, and RENIEC",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				Value:   "config.yaml",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only log errors",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "scrape",
				Usage:  "run the full pipeline: discover, extract, classify, persist, export",
				Flags:  scrape.ScrapeFlags(),
				Action: scrape.ScrapeAction,
			},
			{
				Name:   "export",
				Usage:  "regenerate JSON/CSV exports from the store without scraping",
				Action: scrape.ExportAction,
			},
			{
				Name:   "validate",
				Usage:  "check stored records against the data invariants",
				Action: scrape.ValidateAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
