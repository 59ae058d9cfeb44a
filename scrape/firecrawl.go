package scrape

import (
	"context"
	"net/url"
	"time"

	"github.com/mendableai/firecrawl-go"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/mempirate/electionjobs/document"
)

const FIRECRAWL_API = "https://api.firecrawl.dev"

// FirecrawlScraper is a scraper that uses the Firecrawl API to scrape web pages.
type FirecrawlScraper struct {
	app     *firecrawl.FirecrawlApp
	limiter *rate.Limiter

	params *firecrawl.ScrapeParams
}

func NewFirecrawlScraper(key string, requestsPerSecond float64) (*FirecrawlScraper, error) {
	app, err := firecrawl.NewFirecrawlApp(key, FIRECRAWL_API)
	if err != nil {
		return nil, err
	}

	timeout := 90_000

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &FirecrawlScraper{
		app:     app,
		limiter: rate.NewLimiter(limit, 1),
		params: &firecrawl.ScrapeParams{
			Formats: []string{"markdown"},
			Timeout: &timeout,
		},
	}, nil
}

// Scrape scrapes the given URL and returns a Document. The title is taken from
// the page metadata (OGTitle first, then Title), falling back to the first
// heading of the content.
func (s *FirecrawlScraper) Scrape(ctx context.Context, link *url.URL) (*document.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fcDoc, err := s.app.ScrapeURL(link.String(), s.params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scrape URL %s", link)
	}

	if fcDoc.Markdown == "" {
		return nil, errors.Errorf("no content at %s", link)
	}

	doc := &document.Document{
		Content: fcDoc.Markdown,
		Metadata: document.Metadata{
			Source:      link.String(),
			ScrapedTime: time.Now().UTC().Format(time.RFC3339),
			Scraper:     "firecrawl",
		},
	}

	if md := fcDoc.Metadata; md != nil {
		if md.OGTitle != nil {
			doc.Metadata.Title = *md.OGTitle
		} else if md.Title != nil {
			doc.Metadata.Title = *md.Title
		}

		if md.Description != nil {
			doc.Metadata.Description = md.Description
		} else if md.OGDescription != nil {
			doc.Metadata.Description = md.OGDescription
		}

		doc.Metadata.SiteName = md.OGSiteName
		doc.Metadata.PublishedTime = md.PublishedTime
	}

	doc.FindTitle()

	return doc, nil
}
