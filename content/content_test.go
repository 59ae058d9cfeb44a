package content

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/job"
)

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestExtractPostings(t *testing.T) {
	issue := job.Issue{Year: 2024, Date: "01-05", URL: "https://electionline.org/electionline-weekly/2024/01-05"}

	postings, err := ExtractPostings(context.Background(), openFixture(t, "issue.html"), issue)
	require.NoError(t, err)
	require.Len(t, postings, 3)

	require.Equal(t, "https://www.kingcounty.gov/jobs/123", postings[0].Link)
	require.True(t, strings.HasPrefix(postings[0].Description, "Election Director, King County, Washington"))
	require.NotContains(t, postings[0].Description, "\n")
	require.Equal(t, issue, postings[0].Issue)

	// Relative links resolve against the issue page.
	require.Equal(t, "https://electionline.org/careers/wisconsin", postings[1].Link)

	require.Equal(t, "", postings[2].Link)
	require.Contains(t, postings[2].Description, "Democracy Works")
}

func TestExtractPostingsNoJobSection(t *testing.T) {
	issue := job.Issue{Year: 2024, Date: "01-12"}

	postings, err := ExtractPostings(context.Background(), openFixture(t, "no_jobs.html"), issue)
	require.Error(t, err)
	require.True(t, failure.Is(err, failure.KindParse))
	require.False(t, failure.IsFatal(err))
	require.Empty(t, postings)
}

func TestExtractPostingsShortSection(t *testing.T) {
	page := `<div class="article-wrapper"><h2>Jobs</h2><p>Only the intro.</p></div>`

	postings, err := ExtractPostings(context.Background(), strings.NewReader(page), job.Issue{Year: 2024, Date: "02-01"})
	require.NoError(t, err)
	require.Empty(t, postings)
}

func TestExtractPostingsCountsCharacters(t *testing.T) {
	// Ten characters but more than ten bytes: too short to be a posting.
	page := `<div class="article-wrapper"><h2>Jobs</h2><p>Intro.</p>` +
		`<p>“Señor” Zé</p>` +
		`<p>Poll worker coordinator, Bexar County, TX.</p></div>`

	postings, err := ExtractPostings(context.Background(), strings.NewReader(page), job.Issue{Year: 2024, Date: "02-08"})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "Poll worker coordinator, Bexar County, TX.", postings[0].Description)
}

func TestParseWeekLinks(t *testing.T) {
	base, _ := url.Parse("https://electionline.org/electionline-weekly/2024")

	issues, err := ParseWeekLinks(openFixture(t, "year.html"), base)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	require.Equal(t, job.Issue{Year: 2024, Date: "01-12", URL: "https://electionline.org/electionline-weekly/2024/01-12"}, issues[0])
	require.Equal(t, "2024/01-05", issues[1].ID())
}

func TestParseWeekLinksMissingList(t *testing.T) {
	_, err := ParseWeekLinks(strings.NewReader("<html><body><p>moved</p></body></html>"), nil)
	require.True(t, failure.Is(err, failure.KindParse))
}

func TestIssueFromURL(t *testing.T) {
	issue, ok := IssueFromURL("https://electionline.org/electionline-weekly/2019/03-14")
	require.True(t, ok)
	require.Equal(t, 2019, issue.Year)
	require.Equal(t, "03-14", issue.Date)

	_, ok = IssueFromURL("https://electionline.org/about")
	require.False(t, ok)
}

func TestToMarkdown(t *testing.T) {
	page := `<html><head><title> Elections
	Director </title></head><body><h1>Elections Director</h1><p>Run <a href="/elections">elections</a>.</p></body></html>`
	uri, _ := url.Parse("https://county.example.gov/jobs/1")

	title, body, err := ToMarkdown([]byte(page), uri)
	require.NoError(t, err)
	require.Equal(t, "Elections Director", title)
	require.Contains(t, string(body), "# Elections Director")
	require.Contains(t, string(body), "[elections](")
}
