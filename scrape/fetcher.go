package scrape

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mempirate/electionjobs/content"
	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/job"
	"github.com/mempirate/electionjobs/log"
	"github.com/mempirate/electionjobs/store"
)

const DefaultBaseURL = "https://electionline.org"

const weeklyPath = "/electionline-weekly/"

var errNotFound = errors.New("page not found")

// Fetcher discovers newsletter issues from the yearly index pages and
// downloads the ones that are not mirrored yet.
type Fetcher struct {
	log    zerolog.Logger
	client *resty.Client
	base   *url.URL
}

func NewFetcher(baseURL string, opts ClientOptions) (*Fetcher, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base URL %q", baseURL)
	}

	return &Fetcher{
		log:    log.NewLogger("fetcher"),
		client: newClient(opts),
		base:   base,
	}, nil
}

// IssueURL returns the page address of an issue.
func (f *Fetcher) IssueURL(issue job.Issue) string {
	return f.base.JoinPath(weeklyPath, strconv.Itoa(issue.Year), issue.Date).String()
}

// Discover lists the issues linked from the index page of each year. Years
// whose page is missing or has an unexpected layout are logged and skipped.
func (f *Fetcher) Discover(ctx context.Context, years []int) ([]job.Issue, error) {
	ctx, span := tracer.Start(ctx, "Discover")
	defer span.End()

	var issues []job.Issue

	for _, year := range years {
		yearURL := f.base.JoinPath(weeklyPath, strconv.Itoa(year))

		body, err := f.get(ctx, yearURL.String())
		if err != nil {
			if errors.Is(err, errNotFound) {
				f.log.Warn().Int("year", year).Msg("Year page not found, skipping")
				continue
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch year page")
			return nil, err
		}

		found, err := content.ParseWeekLinks(bytes.NewReader(body), yearURL)
		if err != nil {
			f.log.Error().Err(err).Int("year", year).Msg("Failed to parse year page, skipping")
			continue
		}

		f.log.Debug().Int("year", year).Int("count", len(found)).Msg("Issues discovered")
		issues = append(issues, found...)
	}

	span.SetAttributes(attribute.Int("issues", len(issues)))

	return issues, nil
}

// Sync downloads every discovered issue that is not in the mirror and returns
// the issues it added. A network failure aborts the sync; issues stored
// before the failure stay mirrored.
func (f *Fetcher) Sync(ctx context.Context, mirror store.Mirror, years []int) ([]job.Issue, error) {
	issues, err := f.Discover(ctx, years)
	if err != nil {
		return nil, err
	}

	var added []job.Issue

	for _, issue := range issues {
		exists, err := mirror.Contains(issue)
		if err != nil {
			return added, failure.Persistence("failed to check mirror for "+issue.ID(), err)
		}
		if exists {
			continue
		}

		start := time.Now()
		body, err := f.get(ctx, issue.URL)
		if err != nil {
			if errors.Is(err, errNotFound) {
				f.log.Warn().Str("issue", issue.ID()).Msg("Issue page not found, skipping")
				continue
			}
			return added, err
		}

		if err := mirror.Store(issue, bytes.NewReader(body)); err != nil {
			return added, failure.Persistence("failed to mirror issue "+issue.ID(), err)
		}

		f.log.Info().Str("issue", issue.ID()).Dur("duration", time.Since(start)).Msg("Issue mirrored")
		added = append(added, issue)
	}

	return added, nil
}

func (f *Fetcher) get(ctx context.Context, link string) ([]byte, error) {
	res, err := f.client.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return nil, failure.Network("failed to fetch "+link, err)
	}

	switch {
	case res.StatusCode() == http.StatusNotFound:
		return nil, errNotFound
	case res.IsError():
		return nil, failure.Network("unexpected status "+res.Status()+" from "+link, nil)
	}

	return res.Body(), nil
}
