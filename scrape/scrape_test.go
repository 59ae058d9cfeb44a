package scrape

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/job"
	"github.com/mempirate/electionjobs/store"
)

const yearPage = `<html><body><ul class="weeks">
<li><a href="/electionline-weekly/2024/01-12">January 12</a></li>
<li><a href="/electionline-weekly/2024/01-05">January 5</a></li>
</ul></body></html>`

func newSite(t *testing.T, pages map[string]string) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

func TestSync(t *testing.T) {
	server, _ := newSite(t, map[string]string{
		"/electionline-weekly/2024":       yearPage,
		"/electionline-weekly/2024/01-05": "<html>first</html>",
		"/electionline-weekly/2024/01-12": "<html>second</html>",
	})

	f, err := NewFetcher(server.URL, ClientOptions{})
	require.NoError(t, err)

	mirror := store.NewFileStore(t.TempDir())
	pre := job.Issue{Year: 2024, Date: "01-05"}
	require.NoError(t, mirror.Store(pre, strings.NewReader("<html>already mirrored</html>")))

	// 2023 has no index page and is skipped.
	added, err := f.Sync(context.Background(), mirror, []int{2023, 2024})
	require.NoError(t, err)
	require.Len(t, added, 1)
	require.Equal(t, "2024/01-12", added[0].ID())
	require.Equal(t, server.URL+"/electionline-weekly/2024/01-12", added[0].URL)

	r, err := mirror.Get(pre)
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "<html>already mirrored</html>", string(body), "mirrored snapshots are never rewritten")

	added, err = f.Sync(context.Background(), mirror, []int{2024})
	require.NoError(t, err)
	require.Empty(t, added)
}

func TestSyncBadYearPage(t *testing.T) {
	server, _ := newSite(t, map[string]string{
		"/electionline-weekly/2024": "<html><body>redesigned</body></html>",
	})

	f, err := NewFetcher(server.URL, ClientOptions{})
	require.NoError(t, err)

	added, err := f.Sync(context.Background(), store.NewFileStore(t.TempDir()), []int{2024})
	require.NoError(t, err)
	require.Empty(t, added)
}

func TestSyncUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	f, err := NewFetcher(base, ClientOptions{})
	require.NoError(t, err)

	_, err = f.Sync(context.Background(), store.NewFileStore(t.TempDir()), []int{2024})
	require.Error(t, err)
	require.True(t, failure.Is(err, failure.KindNetwork))
	require.True(t, failure.IsFatal(err))
}

func TestSyncServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	f, err := NewFetcher(server.URL, ClientOptions{Retries: 1})
	require.NoError(t, err)

	_, err = f.Discover(context.Background(), []int{2024})
	require.True(t, failure.Is(err, failure.KindNetwork))
}

func TestIssueURL(t *testing.T) {
	f, err := NewFetcher("", ClientOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://electionline.org/electionline-weekly/2024/01-05", f.IssueURL(job.Issue{Year: 2024, Date: "01-05"}))
}

func TestDirectScraper(t *testing.T) {
	server, hits := newSite(t, map[string]string{
		"/jobs/1": `<html><head><title>Deputy Clerk</title></head><body><h1>Deputy Clerk</h1><p>Travis County is hiring.</p></body></html>`,
	})

	s := NewDirectScraper(ClientOptions{UserAgent: "test-agent", RequestsPerSecond: 100})

	link, _ := url.Parse(server.URL + "/jobs/1")
	doc, err := s.Scrape(context.Background(), link)
	require.NoError(t, err)
	require.Equal(t, "Deputy Clerk", doc.Metadata.Title)
	require.Equal(t, link.String(), doc.Metadata.Source)
	require.Equal(t, "direct", doc.Metadata.Scraper)
	require.Contains(t, doc.Content, "# Deputy Clerk")
	require.Contains(t, doc.PlainText(), "Travis County is hiring.")
	require.EqualValues(t, 1, hits.Load())

	missing, _ := url.Parse(server.URL + "/jobs/2")
	_, err = s.Scrape(context.Background(), missing)
	require.Error(t, err)
}
