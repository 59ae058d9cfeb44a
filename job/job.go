// Package job holds the posting record that flows through the pipeline and is
// persisted as one dataset row.
package job

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mempirate/electionjobs/util"
)

type PayBasis string

const (
	PayHourly      PayBasis = "hourly"
	PayBiweekly    PayBasis = "biweekly"
	PaySemiMonthly PayBasis = "semi-monthly"
	PayMonthly     PayBasis = "monthly"
	PayYearly      PayBasis = "yearly"
	PayUnknown     PayBasis = "unknown"
)

// Role is the experimental classification of a posting. It is advisory and
// never decides whether a posting is kept.
type Role string

const (
	RoleChief       Role = "top_election_official"
	RoleNonChief    Role = "election_official"
	RoleNonElection Role = "not_election_official"
)

func (r Role) Valid() bool {
	switch r {
	case RoleChief, RoleNonChief, RoleNonElection:
		return true
	}
	return false
}

type Status string

const (
	StatusOK Status = "ok"
	// StatusNeedsReview marks a posting whose feature extraction failed. Its
	// extracted fields are left empty rather than guessed.
	StatusNeedsReview Status = "needs_review"
)

// Issue identifies one weekly newsletter publication.
type Issue struct {
	Year int
	// Date is the month and day of the issue, formatted MM-DD.
	Date string
	URL  string
}

// ID is the issue's mirror key, e.g. "2024/01-05".
func (i Issue) ID() string {
	return fmt.Sprintf("%d/%s", i.Year, i.Date)
}

// Raw is a posting as it appears in the issue page, before enrichment.
type Raw struct {
	Issue       Issue
	Description string
	Link        string
}

var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://electionline.org/electionline-weekly"))

// Key derives the uniqueness key of a posting from its description. Two
// descriptions that only differ in case, whitespace, digits or punctuation
// share a key.
func Key(description string) string {
	return uuid.NewSHA1(keyNamespace, []byte(util.LettersOnly(description))).String()
}

func (r Raw) Key() string {
	return Key(r.Description)
}

type Posting struct {
	Key         string
	Year        int
	Date        string
	Description string
	Link        string

	JobTitle string
	Employer string
	State    string

	SalaryLow  *float64
	SalaryHigh *float64
	SalaryMean *float64
	PayBasis   PayBasis

	AnnualSalaryLow  *float64
	AnnualSalaryHigh *float64
	AnnualSalary     *float64

	Classification Role
	Status         Status
	IsDuplicate    bool

	FullTextPreview     string
	FullTextLength      *int
	FullTextScrapedDate string
	FullTextFile        string
}

func NewPosting(raw Raw) Posting {
	return Posting{
		Key:         raw.Key(),
		Year:        raw.Issue.Year,
		Date:        raw.Issue.Date,
		Description: raw.Description,
		Link:        raw.Link,
		Status:      StatusOK,
	}
}

func (p *Posting) Issue() Issue {
	return Issue{Year: p.Year, Date: p.Date}
}

const fingerprintPreview = 500

// Fingerprint identifies the job behind a posting independent of how the
// newsletter worded it in a given week.
func (p *Posting) Fingerprint() string {
	desc := util.Truncate(util.LettersOnly(p.Description), fingerprintPreview)
	return strings.Join([]string{
		util.LettersOnly(p.JobTitle),
		util.LettersOnly(p.Employer),
		util.LettersOnly(p.State),
		desc,
	}, "|")
}

// MarkDuplicates flags each fresh posting whose fingerprint was already seen,
// either in the existing rows or earlier in fresh. Existing rows are only read.
func MarkDuplicates(existing []Posting, fresh []Posting) {
	seen := make(map[string]struct{}, len(existing)+len(fresh))
	for i := range existing {
		seen[existing[i].Fingerprint()] = struct{}{}
	}

	for i := range fresh {
		fp := fresh[i].Fingerprint()
		if _, ok := seen[fp]; ok {
			fresh[i].IsDuplicate = true
			continue
		}
		seen[fp] = struct{}{}
	}
}
