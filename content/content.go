// Package content turns newsletter and job pages into postings and text.
package content

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"

	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/job"
	"github.com/mempirate/electionjobs/util"
)

var tracer = otel.Tracer("electionjobs/content")

var (
	jobHeading = regexp.MustCompile(`(?i)^job`)
	weekPath   = regexp.MustCompile(`/electionline-weekly/(\d{4})/(\d{2}-\d{2})`)
)

const (
	// Paragraphs this short are spacing or stray markup, not postings.
	minPostingLength = 10
	introPrefix      = "electionlineWeekly"
)

// ExtractPostings returns the postings listed in the job section of an issue
// page. The first paragraph of the section is the section intro and is
// skipped. If the page has no job section it returns no postings and a parse
// error, so the caller can log the layout change and carry on.
func ExtractPostings(ctx context.Context, r io.Reader, issue job.Issue) ([]job.Raw, error) {
	_, span := tracer.Start(ctx, "ExtractPostings")
	defer span.End()
	span.SetAttributes(attribute.String("issue", issue.ID()))

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse issue page")
		return nil, failure.Parse("failed to parse issue page "+issue.ID(), err)
	}

	base, _ := url.Parse(issue.URL)

	var postings []job.Raw
	sections := 0

	doc.Find("div.article-wrapper").Each(func(_ int, div *goquery.Selection) {
		heading := div.Find("h2").FilterFunction(func(_ int, h *goquery.Selection) bool {
			return jobHeading.MatchString(strings.TrimSpace(h.Text()))
		})
		if heading.Length() == 0 {
			return
		}
		sections++

		paragraphs := div.Find("p")
		if paragraphs.Length() < 2 {
			return
		}

		paragraphs.Slice(1, goquery.ToEnd).Each(func(_ int, p *goquery.Selection) {
			text := util.CollapseWhitespace(p.Text())
			if strings.HasPrefix(text, introPrefix) || utf8.RuneCountInString(text) <= minPostingLength {
				return
			}

			postings = append(postings, job.Raw{
				Issue:       issue,
				Description: text,
				Link:        resolveLink(base, p.Find("a").First().AttrOr("href", "")),
			})
		})
	})

	span.SetAttributes(attribute.Int("postings", len(postings)))

	if sections == 0 {
		span.SetStatus(codes.Error, "no job section")
		return nil, failure.Parse("no job section in issue "+issue.ID(), nil)
	}

	return postings, nil
}

// ParseWeekLinks lists the issues linked from a yearly index page. Links are
// resolved against base.
func ParseWeekLinks(r io.Reader, base *url.URL) ([]job.Issue, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, failure.Parse("failed to parse year page", err)
	}

	weeks := doc.Find("ul.weeks")
	if weeks.Length() == 0 {
		return nil, failure.Parse("year page has no week list", nil)
	}

	var issues []job.Issue
	seen := make(map[string]struct{})

	weeks.First().Find("li a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}

		link := resolveLink(base, href)
		issue, ok := IssueFromURL(link)
		if !ok {
			return
		}

		if _, dup := seen[issue.ID()]; dup {
			return
		}
		seen[issue.ID()] = struct{}{}
		issues = append(issues, issue)
	})

	return issues, nil
}

// IssueFromURL reads the issue year and date from an issue page URL such as
// https://electionline.org/electionline-weekly/2024/01-05.
func IssueFromURL(link string) (job.Issue, bool) {
	m := weekPath.FindStringSubmatch(link)
	if m == nil {
		return job.Issue{}, false
	}

	year, err := strconv.Atoi(m[1])
	if err != nil {
		return job.Issue{}, false
	}

	return job.Issue{Year: year, Date: m[2], URL: link}, true
}

// ToMarkdown converts an HTML page to markdown and returns it along with the
// page title, if any.
func ToMarkdown(body []byte, pageURL *url.URL) (string, []byte, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to parse HTML")
	}

	title, _ := extractTitle(doc)

	var opts []converter.ConvertOptionFunc
	if pageURL != nil {
		opts = append(opts, converter.WithDomain(pageURL.Host))
	}

	mdBody, err := md.ConvertReader(bytes.NewReader(body), opts...)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to convert HTML to Markdown")
	}

	return title, mdBody, nil
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}

	ref, err := url.Parse(href)
	if err != nil {
		return href
	}

	return base.ResolveReference(ref).String()
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func extractTitle(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild == nil {
			return "", false
		}
		return util.CollapseWhitespace(n.FirstChild.Data), true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := extractTitle(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}
