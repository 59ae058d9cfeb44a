// Package filter drops postings that are already known or come from excluded
// employers.
package filter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"

	"github.com/mempirate/electionjobs/job"
)

const normalizeFlags = purell.FlagsSafe | purell.FlagRemoveWWW

// Exclusions names the employers whose postings are never recorded. Domains
// are matched against the posting link host, Employers as case-insensitive
// substrings of the description or the extracted employer name.
type Exclusions struct {
	Employers []string
	Domains   []string
}

// Apply returns the postings in raws that are neither in existing nor
// excluded, in their original order. A posting repeated within raws is kept
// once. Apply does not modify its inputs.
func Apply(raws []job.Raw, existing map[string]struct{}, ex Exclusions) []job.Raw {
	domains := make([]string, 0, len(ex.Domains))
	for _, d := range ex.Domains {
		if d = normalizeHost(d); d != "" {
			domains = append(domains, d)
		}
	}

	seen := make(map[string]struct{}, len(raws))
	kept := make([]job.Raw, 0, len(raws))

	for _, raw := range raws {
		key := raw.Key()
		if _, ok := existing[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if excludedDomain(raw.Link, domains) || ExcludedEmployer(raw.Description, ex.Employers) {
			continue
		}

		kept = append(kept, raw)
	}

	return kept
}

// ExcludedEmployer reports whether text mentions any of the employer
// substrings.
func ExcludedEmployer(text string, employers []string) bool {
	if text == "" {
		return false
	}

	lower := strings.ToLower(text)
	for _, e := range employers {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && strings.Contains(lower, e) {
			return true
		}
	}

	return false
}

// Keys returns the set of keys of the given postings.
func Keys(postings []job.Posting) map[string]struct{} {
	keys := make(map[string]struct{}, len(postings))
	for i := range postings {
		keys[postings[i].Key] = struct{}{}
	}
	return keys
}

func excludedDomain(link string, domains []string) bool {
	if link == "" || len(domains) == 0 {
		return false
	}

	host := normalizeHost(link)
	if host == "" {
		return false
	}

	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}

	return false
}

// normalizeHost accepts either a bare domain or a full URL.
func normalizeHost(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	normalized, err := purell.NormalizeURLString(s, normalizeFlags)
	if err != nil {
		return ""
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Hostname())
}
