// Package pipeline runs one weekly scrape: mirror new issues, extract their
// postings, drop known and excluded ones, enrich the rest and append them to
// the dataset.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/mempirate/electionjobs/backend"
	"github.com/mempirate/electionjobs/content"
	"github.com/mempirate/electionjobs/document"
	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/filter"
	"github.com/mempirate/electionjobs/job"
	"github.com/mempirate/electionjobs/log"
	"github.com/mempirate/electionjobs/salary"
	"github.com/mempirate/electionjobs/scrape"
	"github.com/mempirate/electionjobs/store"
)

const previewLength = 500

var tracer = otel.Tracer("electionjobs/pipeline")

// DatasetStore persists the dataset. It is read once and written once per run.
type DatasetStore interface {
	ReadAll(ctx context.Context) ([]job.Posting, error)
	WriteAll(ctx context.Context, postings []job.Posting) error
}

// Publisher mirrors the persisted dataset somewhere shared.
type Publisher interface {
	Publish(ctx context.Context, postings []job.Posting) error
}

// Fetcher brings the issue mirror up to date.
type Fetcher interface {
	Sync(ctx context.Context, mirror store.Mirror, years []int) ([]job.Issue, error)
	IssueURL(issue job.Issue) string
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Options struct {
	// Years whose mirrored issues are processed.
	Years       []int
	Exclusions  filter.Exclusions
	Concurrency int
	// DataDir is where full-text documents are saved.
	DataDir string
	// DryRun runs every stage but leaves the dataset, the spreadsheet and the
	// document directory untouched.
	DryRun bool
}

// Deps are the collaborators of a run. Publisher, Classifier, Scraper and
// Notifier are optional.
type Deps struct {
	Fetcher    Fetcher
	Mirror     store.Mirror
	Dataset    DatasetStore
	Publisher  Publisher
	Extractor  backend.Extractor
	Classifier backend.Classifier
	Scraper    scrape.Scraper
	Notifier   Notifier
}

type Pipeline struct {
	log  zerolog.Logger
	opts Options
	deps Deps
}

func New(opts Options, deps Deps) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Pipeline{
		log:  log.NewLogger("pipeline"),
		opts: opts,
		deps: deps,
	}
}

// Run executes the pipeline once. Any returned error means the run failed;
// the dataset is either untouched or fully written.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	summary, err := p.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		p.log.Error().Err(err).Str("kind", string(failure.KindOf(err))).Msg("Run failed")
		p.notify(ctx, "electionline Weekly scrape failed: "+err.Error())
		return summary, err
	}

	p.log.Info().
		Int("new", summary.New).
		Int("needs_review", summary.NeedsReview).
		Int("total", summary.Total).
		Dur("duration", summary.Duration).
		Msg("Run complete")

	p.notify(ctx, summary.String())

	return summary, nil
}

func (p *Pipeline) run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{DryRun: p.opts.DryRun}

	prior, err := p.deps.Dataset.ReadAll(ctx)
	if err != nil {
		return summary, err
	}
	p.log.Info().Int("count", len(prior)).Msg("Dataset loaded")

	mirrored, err := p.fetch(ctx)
	if err != nil {
		return summary, err
	}
	summary.Mirrored = len(mirrored)

	raws, err := p.extract(ctx, summary)
	if err != nil {
		return summary, err
	}
	summary.Postings = len(raws)

	candidates := filter.Apply(raws, filter.Keys(prior), p.opts.Exclusions)
	summary.Candidates = len(candidates)
	p.log.Info().Int("postings", len(raws)).Int("candidates", len(candidates)).Msg("Postings filtered")

	fresh, err := p.enrich(ctx, candidates, summary)
	if err != nil {
		return summary, err
	}

	job.MarkDuplicates(prior, fresh)

	summary.New = len(fresh)
	summary.Total = len(prior) + len(fresh)

	if p.opts.DryRun {
		p.log.Info().Int("new", len(fresh)).Msg("Dry run, not writing dataset or spreadsheet")
		summary.Duration = time.Since(start)
		return summary, nil
	}

	merged := prior
	if len(fresh) > 0 {
		merged, err = store.Append(ctx, p.deps.Dataset, prior, fresh)
		if err != nil {
			return summary, err
		}
	}

	if p.deps.Publisher != nil {
		if err := p.publish(ctx, merged); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		summary.Published = true
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

func (p *Pipeline) fetch(ctx context.Context) ([]job.Issue, error) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()

	mirrored, err := p.deps.Fetcher.Sync(ctx, p.deps.Mirror, p.opts.Years)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to sync mirror")
		return nil, err
	}

	span.SetAttributes(attribute.Int("mirrored", len(mirrored)))
	p.log.Info().Int("count", len(mirrored)).Msg("Mirror synced")

	return mirrored, nil
}

// extract reads every mirrored issue in the configured years. Issues without
// a job section are logged and skipped.
func (p *Pipeline) extract(ctx context.Context, summary *Summary) ([]job.Raw, error) {
	ctx, span := tracer.Start(ctx, "extract")
	defer span.End()

	issues, err := p.deps.Mirror.List()
	if err != nil {
		return nil, failure.Persistence("failed to list mirror", err)
	}

	years := make(map[int]bool, len(p.opts.Years))
	for _, y := range p.opts.Years {
		years[y] = true
	}

	var raws []job.Raw
	for _, issue := range issues {
		if !years[issue.Year] {
			continue
		}
		issue.URL = p.deps.Fetcher.IssueURL(issue)

		postings, err := p.extractIssue(ctx, issue)
		if err != nil {
			if failure.IsFatal(err) {
				return nil, err
			}
			summary.ParseErrors++
			p.log.Warn().Err(err).Str("issue", issue.ID()).Msg("Skipping issue")
			continue
		}

		summary.Issues++
		raws = append(raws, postings...)
	}

	span.SetAttributes(attribute.Int("postings", len(raws)))

	return raws, nil
}

func (p *Pipeline) extractIssue(ctx context.Context, issue job.Issue) ([]job.Raw, error) {
	r, err := p.deps.Mirror.Get(issue)
	if err != nil {
		return nil, failure.Persistence("failed to open mirrored issue "+issue.ID(), err)
	}
	defer r.Close()

	return content.ExtractPostings(ctx, r, issue)
}

// enrich builds a posting for each candidate. Postings whose extracted
// employer is excluded are dropped; everything else is kept, flagged for
// review if extraction failed.
func (p *Pipeline) enrich(ctx context.Context, candidates []job.Raw, summary *Summary) ([]job.Posting, error) {
	ctx, span := tracer.Start(ctx, "enrich")
	defer span.End()

	results := make([]*job.Posting, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for i, raw := range candidates {
		i, raw := i, raw
		g.Go(func() error {
			posting, err := p.enrichOne(gctx, raw)
			if err != nil {
				return err
			}
			results[i] = posting
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enrichment aborted")
		return nil, errors.Wrap(err, "enrichment aborted")
	}

	fresh := make([]job.Posting, 0, len(results))
	for _, posting := range results {
		if posting == nil {
			summary.Excluded++
			continue
		}
		if posting.Status == job.StatusNeedsReview {
			summary.NeedsReview++
		}
		if posting.FullTextFile != "" {
			summary.FullText++
		}
		fresh = append(fresh, *posting)
	}

	span.SetAttributes(attribute.Int("new", len(fresh)))

	return fresh, nil
}

// enrichOne returns nil for an excluded posting. It only fails when the run
// context is done.
func (p *Pipeline) enrichOne(ctx context.Context, raw job.Raw) (*job.Posting, error) {
	posting := job.NewPosting(raw)
	logger := p.log.With().Str("key", posting.Key).Str("issue", raw.Issue.ID()).Logger()

	features, err := p.deps.Extractor.Extract(ctx, raw.Description)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn().Err(err).Msg("Feature extraction failed, flagging for review")
		posting.Status = job.StatusNeedsReview
	} else {
		applyFeatures(&posting, features)

		if filter.ExcludedEmployer(posting.Employer, p.opts.Exclusions.Employers) {
			logger.Info().Str("employer", posting.Employer).Msg("Excluded employer")
			return nil, nil
		}
	}

	if p.deps.Classifier != nil {
		role, err := p.deps.Classifier.Classify(ctx, raw.Description)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Err(err).Msg("Classification failed")
		} else {
			posting.Classification = role
		}
	}

	if p.deps.Scraper != nil && !p.opts.DryRun {
		if err := p.scrapeFullText(ctx, &posting); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Err(err).Str("link", posting.Link).Msg("Full text not scraped")
		}
	}

	return &posting, nil
}

func applyFeatures(posting *job.Posting, f *backend.Features) {
	posting.JobTitle = strings.TrimSpace(f.JobTitle)
	posting.Employer = strings.TrimSpace(f.Employer)
	posting.State = strings.TrimSpace(f.State)

	salary.Apply(posting, salary.Normalize(f.SalaryLow, f.SalaryHigh, f.PayBasis))
}

var errNoLink = errors.New("posting has no web link")

func (p *Pipeline) scrapeFullText(ctx context.Context, posting *job.Posting) error {
	link, err := url.Parse(posting.Link)
	if err != nil || (link.Scheme != "http" && link.Scheme != "https") {
		return errNoLink
	}

	doc, err := p.deps.Scraper.Scrape(ctx, link)
	if err != nil {
		return err
	}

	doc.Metadata.Key = posting.Key
	doc.Metadata.Issue = posting.Issue().ID()

	rel := document.Path(posting)
	if err := doc.Save(filepath.Join(p.opts.DataDir, rel)); err != nil {
		return errors.Wrap(err, "failed to save document")
	}

	text := doc.PlainText()
	length := utf8.RuneCountInString(text)

	posting.FullTextPreview = doc.Preview(previewLength)
	posting.FullTextLength = &length
	posting.FullTextScrapedDate = doc.Metadata.ScrapedTime
	posting.FullTextFile = filepath.ToSlash(rel)

	return nil
}

func (p *Pipeline) publish(ctx context.Context, postings []job.Posting) error {
	ctx, span := tracer.Start(ctx, "publish")
	defer span.End()

	if err := p.deps.Publisher.Publish(ctx, postings); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish")
		return err
	}

	return nil
}

func (p *Pipeline) notify(ctx context.Context, text string) {
	if p.deps.Notifier == nil {
		return
	}

	// The run context may have expired; the report should still go out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.deps.Notifier.Notify(ctx, text); err != nil {
		p.log.Warn().Err(err).Msg("Failed to send notification")
	}
}

// Summary reports what a run did.
type Summary struct {
	Mirrored    int
	Issues      int
	ParseErrors int
	Postings    int
	Candidates  int
	Excluded    int
	New         int
	NeedsReview int
	FullText    int
	Total       int
	Published   bool
	DryRun      bool
	Duration    time.Duration
}

func (s *Summary) String() string {
	var b strings.Builder

	if s.DryRun {
		b.WriteString("[dry run] ")
	}

	fmt.Fprintf(&b, "electionline Weekly scrape: %d new postings", s.New)
	if s.NeedsReview > 0 {
		fmt.Fprintf(&b, " (%d need review)", s.NeedsReview)
	}
	fmt.Fprintf(&b, ", %d rows total.", s.Total)
	fmt.Fprintf(&b, " %d issues mirrored, %d issues read", s.Mirrored, s.Issues)
	if s.ParseErrors > 0 {
		fmt.Fprintf(&b, ", %d unreadable", s.ParseErrors)
	}
	b.WriteString(".")
	if s.Excluded > 0 {
		fmt.Fprintf(&b, " %d excluded after extraction.", s.Excluded)
	}
	if s.FullText > 0 {
		fmt.Fprintf(&b, " %d full descriptions saved.", s.FullText)
	}

	return b.String()
}
