package prompt

import "fmt"

const EXTRACTION_INSTRUCTIONS = `You extract structured data from job postings published in a weekly elections newsletter.
Report the job title, the employing office or organization, and the US state (two-letter code) where the job is located.
Report salary figures exactly as the posting states them, without converting between pay periods. Use null for a figure that is not given.
If the posting gives a single figure, report it as both the low and the high end.
pay_basis is the period the salary figures refer to. Use "unknown" if the posting does not say.
If a field cannot be determined, use an empty string. Never guess.`

const EXTRACTION_PROMPT = `Extract structured data from this job posting.

Job posting:
%s`

func CreateExtractionPrompt(description string) string {
	return fmt.Sprintf(EXTRACTION_PROMPT, description)
}

// The classification is experimental and advisory: it is stored for analysis
// and never used to include or exclude a posting.
const CLASSIFICATION_INSTRUCTIONS = `You classify job postings from a weekly elections newsletter. This classification is experimental.
Classification guidelines:
- election_official: Works in a public elections office
- top_election_official: Directs entire elections office, typically salary >$100k, reports to board/secretary of state
- not_election_official: Non-profit or private company`

const CLASSIFICATION_PROMPT = `Classify this job posting.

Job posting:
%s`

func CreateClassificationPrompt(description string) string {
	return fmt.Sprintf(CLASSIFICATION_PROMPT, description)
}
