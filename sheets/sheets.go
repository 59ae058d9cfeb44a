// Package sheets mirrors the dataset to a shared Google spreadsheet.
package sheets

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/job"
	"github.com/mempirate/electionjobs/log"
)

// Client is the spreadsheet surface the publisher needs. Rows include the
// header.
type Client interface {
	RowCount(ctx context.Context) (int, error)
	// Replace clears the sheet and writes rows starting at A1.
	Replace(ctx context.Context, rows [][]interface{}) error
	Format(ctx context.Context, layout Layout) error
}

// Layout describes the presentation applied after a replace.
type Layout struct {
	// CurrencyColumns are zero-based column indexes formatted as dollars.
	CurrencyColumns []int
	// Widths holds the pixel width of each column, in order.
	Widths []int64
}

var currencyColumns = map[string]bool{
	"salary_low_end":     true,
	"salary_high_end":    true,
	"salary_mean":        true,
	"annual_salary_low":  true,
	"annual_salary_high": true,
	"annual_salary":      true,
}

var numericColumns = map[string]bool{
	"year":               true,
	"full_text_length":   true,
	"salary_low_end":     true,
	"salary_high_end":    true,
	"salary_mean":        true,
	"annual_salary_low":  true,
	"annual_salary_high": true,
	"annual_salary":      true,
}

var columnWidths = map[string]int64{
	"key":                         80,
	"year":                        50,
	"date":                        50,
	"description":                 150,
	"link":                        50,
	"job_title":                   150,
	"employer":                    150,
	"state":                       150,
	"salary_low_end":              120,
	"salary_high_end":             120,
	"salary_mean":                 120,
	"pay_basis":                   100,
	"annual_salary_low":           120,
	"annual_salary_high":          120,
	"annual_salary":               120,
	"classification_experimental": 200,
	"extraction_status":           100,
	"is_duplicate_job":            80,
	"full_text_preview":           300,
	"full_text_length":            80,
	"full_text_scraped_date":      100,
	"full_text_file":              150,
}

// Publisher replaces the spreadsheet contents with the dataset.
type Publisher struct {
	log    zerolog.Logger
	client Client
}

func NewPublisher(client Client) *Publisher {
	return &Publisher{
		log:    log.NewLogger("sheets"),
		client: client,
	}
}

// Publish writes the whole dataset to the sheet when it holds more rows than
// the sheet does. A sheet that is already as long is left alone, and one
// that is longer is never shrunk.
func (p *Publisher) Publish(ctx context.Context, postings []job.Posting) error {
	rows, err := p.client.RowCount(ctx)
	if err != nil {
		return failure.ExternalService("failed to read spreadsheet", err)
	}

	existing := rows - 1
	if existing < 0 {
		existing = 0
	}

	switch {
	case len(postings) == existing:
		p.log.Info().Int("rows", existing).Msg("Spreadsheet up to date")
		return nil
	case len(postings) < existing:
		p.log.Warn().Int("sheet", existing).Int("dataset", len(postings)).Msg("Spreadsheet has more rows than the dataset, not updating")
		return nil
	}

	values := make([][]interface{}, 0, len(postings)+1)
	values = append(values, header())
	for i := range postings {
		values = append(values, cells(&postings[i]))
	}

	if err := p.client.Replace(ctx, values); err != nil {
		return failure.ExternalService("failed to update spreadsheet", err)
	}

	if err := p.client.Format(ctx, layout()); err != nil {
		// The data is in place; formatting is cosmetic.
		p.log.Warn().Err(err).Msg("Failed to format spreadsheet")
	}

	p.log.Info().Int("old", existing).Int("new", len(postings)).Msg("Spreadsheet updated")

	return nil
}

func header() []interface{} {
	row := make([]interface{}, len(job.Columns))
	for i, col := range job.Columns {
		row[i] = col
	}
	return row
}

// cells renders a posting with numbers as numbers, so the sheet can format
// and sort them.
func cells(p *job.Posting) []interface{} {
	fields := p.Row()
	row := make([]interface{}, len(fields))

	for i, field := range fields {
		row[i] = field
		if field == "" || !numericColumns[job.Columns[i]] {
			continue
		}
		if f, err := strconv.ParseFloat(field, 64); err == nil {
			row[i] = f
		}
	}

	return row
}

func layout() Layout {
	var l Layout
	for i, col := range job.Columns {
		if currencyColumns[col] {
			l.CurrencyColumns = append(l.CurrencyColumns, i)
		}
		l.Widths = append(l.Widths, columnWidths[col])
	}
	return l
}
