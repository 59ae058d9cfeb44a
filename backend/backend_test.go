package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mempirate/electionjobs/cache"
	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/job"
)

const description = "Elections Director, Dane County, WI. $80,000 - $95,000 per year."

// fakeAPI answers chat completion requests. Each request takes the next status
// from statuses; once they run out it answers 200 with content.
type fakeAPI struct {
	statuses []int
	content  string
	hits     atomic.Int32

	mu       sync.Mutex
	lastBody map[string]interface{}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(f.hits.Add(1)) - 1

	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	_ = json.Unmarshal(body, &f.lastBody)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if n < len(f.statuses) {
		w.WriteHeader(f.statuses[n])
		_, _ = w.Write([]byte(`{"error":{"message":"fake failure","type":"server_error"}}`))
		return
	}

	resp := map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 0,
		"model":   "gpt-4o-mini",
		"choices": []interface{}{
			map[string]interface{}{
				"index":         0,
				"finish_reason": "stop",
				"logprobs":      nil,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": f.content,
					"refusal": nil,
				},
			},
		},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestBackend(t *testing.T, api *fakeAPI, retries uint64) *Backend {
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	return NewBackend(Options{
		APIKey:         "test",
		BaseURL:        server.URL + "/",
		Timeout:        5 * time.Second,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		Cache:          cache.NewMemory(),
	})
}

func TestExtract(t *testing.T) {
	api := &fakeAPI{content: `{"job_title":"Elections Director","employer":"Dane County","state":"WI","salary_low_end":80000,"salary_high_end":95000,"pay_basis":"yearly"}`}
	b := newTestBackend(t, api, 3)

	features, err := b.Extract(context.Background(), description)
	require.NoError(t, err)
	require.Equal(t, "Elections Director", features.JobTitle)
	require.Equal(t, "Dane County", features.Employer)
	require.Equal(t, "WI", features.State)
	require.Equal(t, 80000.0, *features.SalaryLow)
	require.Equal(t, 95000.0, *features.SalaryHigh)
	require.Equal(t, "yearly", features.PayBasis)

	format := api.lastBody["response_format"].(map[string]interface{})
	require.Equal(t, "json_schema", format["type"])

	// Served from the cache the second time.
	_, err = b.Extract(context.Background(), description)
	require.NoError(t, err)
	require.EqualValues(t, 1, api.hits.Load())
}

func TestExtractNullSalary(t *testing.T) {
	api := &fakeAPI{content: `{"job_title":"Clerk","employer":"City of Austin","state":"TX","salary_low_end":null,"salary_high_end":null,"pay_basis":"unknown"}`}
	b := newTestBackend(t, api, 0)

	features, err := b.Extract(context.Background(), description)
	require.NoError(t, err)
	require.Nil(t, features.SalaryLow)
	require.Nil(t, features.SalaryHigh)
}

func TestExtractRetriesTransient(t *testing.T) {
	api := &fakeAPI{
		statuses: []int{http.StatusInternalServerError, http.StatusTooManyRequests},
		content:  `{"job_title":"Clerk","employer":"","state":"","salary_low_end":null,"salary_high_end":null,"pay_basis":"unknown"}`,
	}
	b := newTestBackend(t, api, 3)

	features, err := b.Extract(context.Background(), description)
	require.NoError(t, err)
	require.Equal(t, "Clerk", features.JobTitle)
	require.EqualValues(t, 3, api.hits.Load())
}

func TestExtractBudgetExhausted(t *testing.T) {
	api := &fakeAPI{statuses: []int{500, 502, 503, 500, 500}}
	b := newTestBackend(t, api, 2)

	_, err := b.Extract(context.Background(), description)
	require.Error(t, err)
	require.True(t, failure.Is(err, failure.KindExternalService))
	require.False(t, failure.IsFatal(err))
	require.EqualValues(t, 3, api.hits.Load())
}

func TestExtractPermanentError(t *testing.T) {
	api := &fakeAPI{statuses: []int{http.StatusBadRequest}}
	b := newTestBackend(t, api, 3)

	_, err := b.Extract(context.Background(), description)
	require.True(t, failure.Is(err, failure.KindExternalService))
	require.EqualValues(t, 1, api.hits.Load())
}

func TestExtractInvalidJSONNotCached(t *testing.T) {
	api := &fakeAPI{content: `not json`}
	b := newTestBackend(t, api, 0)

	_, err := b.Extract(context.Background(), description)
	require.Error(t, err)
	require.Equal(t, 0, b.cache.Len())
}

func TestClassify(t *testing.T) {
	api := &fakeAPI{content: `{"classification":"top_election_official"}`}
	b := newTestBackend(t, api, 0)

	role, err := b.Classify(context.Background(), description)
	require.NoError(t, err)
	require.Equal(t, job.RoleChief, role)
}

func TestClassifyUnknownRole(t *testing.T) {
	api := &fakeAPI{content: `{"classification":"astronaut"}`}
	b := newTestBackend(t, api, 0)

	_, err := b.Classify(context.Background(), description)
	require.True(t, failure.Is(err, failure.KindExternalService))
}

func TestExtractAndClassifyCacheSeparately(t *testing.T) {
	api := &fakeAPI{content: `{"classification":"election_official"}`}
	b := newTestBackend(t, api, 0)

	_, err := b.Classify(context.Background(), description)
	require.NoError(t, err)
	_, ok := b.cache.Get("classify:" + job.Key(description))
	require.True(t, ok)
	_, ok = b.cache.Get("extract:" + job.Key(description))
	require.False(t, ok)
}

func TestExtractConcurrentDefaultCache(t *testing.T) {
	api := &fakeAPI{content: `{"job_title":"Clerk","employer":"Travis County","state":"TX","salary_low_end":null,"salary_high_end":null,"pay_basis":"unknown"}`}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	// No cache configured: the backend falls back to its in-memory one,
	// shared by every enrichment worker.
	b := NewBackend(Options{
		APIKey:         "test",
		BaseURL:        server.URL + "/",
		Timeout:        5 * time.Second,
		InitialBackoff: time.Millisecond,
	})

	const workers = 64

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = b.Extract(context.Background(), "Deputy Clerk posting "+strings.Repeat("x", i+1))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, workers, b.cache.Len())
}
