package job

import (
	"strconv"

	"github.com/pkg/errors"
)

// Columns is the dataset header, in order.
var Columns = []string{
	"key",
	"year",
	"date",
	"description",
	"link",
	"job_title",
	"employer",
	"state",
	"salary_low_end",
	"salary_high_end",
	"salary_mean",
	"pay_basis",
	"annual_salary_low",
	"annual_salary_high",
	"annual_salary",
	"classification_experimental",
	"extraction_status",
	"is_duplicate_job",
	"full_text_preview",
	"full_text_length",
	"full_text_scraped_date",
	"full_text_file",
}

// Row renders the posting in Columns order.
func (p *Posting) Row() []string {
	return []string{
		p.Key,
		strconv.Itoa(p.Year),
		p.Date,
		p.Description,
		p.Link,
		p.JobTitle,
		p.Employer,
		p.State,
		formatFloat(p.SalaryLow),
		formatFloat(p.SalaryHigh),
		formatFloat(p.SalaryMean),
		string(p.PayBasis),
		formatFloat(p.AnnualSalaryLow),
		formatFloat(p.AnnualSalaryHigh),
		formatFloat(p.AnnualSalary),
		string(p.Classification),
		string(p.Status),
		strconv.FormatBool(p.IsDuplicate),
		p.FullTextPreview,
		formatInt(p.FullTextLength),
		p.FullTextScrapedDate,
		p.FullTextFile,
	}
}

// FromRow parses a row using the given header. Unknown columns are ignored
// and missing ones are left empty, so older dataset files still load.
func FromRow(header []string, row []string) (Posting, error) {
	if len(row) != len(header) {
		return Posting{}, errors.Errorf("row has %d fields, header has %d", len(row), len(header))
	}

	values := make(map[string]string, len(header))
	for i, col := range header {
		values[col] = row[i]
	}

	var p Posting
	var err error

	p.Key = values["key"]
	if p.Key == "" {
		return Posting{}, errors.New("row has no key")
	}

	if y := values["year"]; y != "" {
		if p.Year, err = strconv.Atoi(y); err != nil {
			return Posting{}, errors.Wrapf(err, "invalid year %q", y)
		}
	}

	p.Date = values["date"]
	p.Description = values["description"]
	p.Link = values["link"]
	p.JobTitle = values["job_title"]
	p.Employer = values["employer"]
	p.State = values["state"]
	p.PayBasis = PayBasis(values["pay_basis"])
	p.Classification = Role(values["classification_experimental"])
	p.Status = Status(values["extraction_status"])
	p.FullTextPreview = values["full_text_preview"]
	p.FullTextScrapedDate = values["full_text_scraped_date"]
	p.FullTextFile = values["full_text_file"]

	floats := []struct {
		col string
		dst **float64
	}{
		{"salary_low_end", &p.SalaryLow},
		{"salary_high_end", &p.SalaryHigh},
		{"salary_mean", &p.SalaryMean},
		{"annual_salary_low", &p.AnnualSalaryLow},
		{"annual_salary_high", &p.AnnualSalaryHigh},
		{"annual_salary", &p.AnnualSalary},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloat(values[f.col]); err != nil {
			return Posting{}, errors.Wrapf(err, "invalid %s", f.col)
		}
	}

	if v := values["is_duplicate_job"]; v != "" {
		if p.IsDuplicate, err = strconv.ParseBool(v); err != nil {
			return Posting{}, errors.Wrap(err, "invalid is_duplicate_job")
		}
	}

	if v := values["full_text_length"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Posting{}, errors.Wrap(err, "invalid full_text_length")
		}
		p.FullTextLength = &n
	}

	return p, nil
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
