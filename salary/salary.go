// Package salary turns reported pay figures into annual figures.
package salary

import (
	"math"
	"strings"

	"github.com/mempirate/electionjobs/job"
)

var multipliers = map[job.PayBasis]float64{
	job.PayHourly:      2080,
	job.PayBiweekly:    26,
	job.PaySemiMonthly: 24,
	job.PayMonthly:     12,
	job.PayYearly:      1,
}

// No real pay figure reaches this in any basis.
const maxFigure = 10_000_000

// Annualize converts a pay figure to a yearly figure. It returns nil when the
// figure is missing, not positive, not finite, implausibly large, or the basis
// has no multiplier.
func Annualize(figure *float64, basis job.PayBasis) *float64 {
	if figure == nil || !valid(*figure) {
		return nil
	}

	m, ok := multipliers[ParseBasis(string(basis))]
	if !ok {
		return nil
	}

	annual := *figure * m
	return &annual
}

// ParseBasis maps the free-form basis a model or page reports to a PayBasis.
func ParseBasis(s string) job.PayBasis {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)

	switch s {
	case "hourly", "hour", "per-hour", "hr":
		return job.PayHourly
	case "biweekly", "bi-weekly", "every-two-weeks":
		return job.PayBiweekly
	case "semi-monthly", "semimonthly", "twice-monthly":
		return job.PaySemiMonthly
	case "monthly", "month", "per-month":
		return job.PayMonthly
	case "yearly", "year", "annual", "annually", "salary", "per-year":
		return job.PayYearly
	}
	return job.PayUnknown
}

// Range is a reported salary range with its basis resolved and annualized.
type Range struct {
	Low   *float64
	High  *float64
	Mean  *float64
	Basis job.PayBasis

	AnnualLow  *float64
	AnnualHigh *float64
	AnnualMean *float64
}

// Normalize resolves a reported range. A missing end is filled from the other
// one, and a "yearly" mean between 2,000 and 10,000 is taken to be monthly pay
// mislabelled by the source.
func Normalize(low, high *float64, basis string) Range {
	r := Range{
		Low:   clean(low),
		High:  clean(high),
		Basis: ParseBasis(basis),
	}

	switch {
	case r.Low != nil && r.High == nil:
		r.High = copyOf(r.Low)
	case r.High != nil && r.Low == nil:
		r.Low = copyOf(r.High)
	}

	if r.Low != nil {
		mean := (*r.Low + *r.High) / 2
		r.Mean = &mean
	}

	if r.Basis == job.PayYearly && r.Mean != nil && *r.Mean > 2000 && *r.Mean < 10000 {
		r.Basis = job.PayMonthly
	}

	r.AnnualLow = Annualize(r.Low, r.Basis)
	r.AnnualHigh = Annualize(r.High, r.Basis)
	r.AnnualMean = Annualize(r.Mean, r.Basis)

	return r
}

// Apply writes the normalized range onto p.
func Apply(p *job.Posting, r Range) {
	p.SalaryLow = r.Low
	p.SalaryHigh = r.High
	p.SalaryMean = r.Mean
	p.PayBasis = r.Basis
	p.AnnualSalaryLow = r.AnnualLow
	p.AnnualSalaryHigh = r.AnnualHigh
	p.AnnualSalary = r.AnnualMean
}

func valid(f float64) bool {
	return f > 0 && f < maxFigure && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clean(f *float64) *float64 {
	if f == nil || !valid(*f) {
		return nil
	}
	return copyOf(f)
}

func copyOf(f *float64) *float64 {
	v := *f
	return &v
}
