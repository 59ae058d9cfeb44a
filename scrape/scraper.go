package scrape

import (
	"context"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/mempirate/electionjobs/content"
	"github.com/mempirate/electionjobs/document"
)

// Scraper fetches the full text of a job posting as a markdown document.
type Scraper interface {
	Scrape(ctx context.Context, link *url.URL) (*document.Document, error)
}

// DirectScraper downloads the page itself and converts it to markdown.
type DirectScraper struct {
	client *resty.Client
}

func NewDirectScraper(opts ClientOptions) *DirectScraper {
	return &DirectScraper{
		client: newClient(opts),
	}
}

func (s *DirectScraper) Scrape(ctx context.Context, link *url.URL) (*document.Document, error) {
	res, err := s.client.R().
		SetContext(ctx).
		Get(link.String())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", link)
	}

	if res.IsError() {
		return nil, errors.Errorf("unexpected status %s from %s", res.Status(), link)
	}

	title, body, err := content.ToMarkdown(res.Body(), link)
	if err != nil {
		return nil, err
	}

	if len(body) == 0 {
		return nil, errors.Errorf("no content at %s", link)
	}

	doc := &document.Document{
		Content: string(body),
		Metadata: document.Metadata{
			Title:       title,
			Source:      link.String(),
			ScrapedTime: time.Now().UTC().Format(time.RFC3339),
			Scraper:     "direct",
		},
	}

	return doc, nil
}
