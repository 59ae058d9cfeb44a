package salary

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mempirate/electionjobs/job"
)

func f(v float64) *float64 { return &v }

func TestAnnualize(t *testing.T) {
	tests := []struct {
		name     string
		figure   *float64
		basis    job.PayBasis
		expected *float64
	}{
		{"monthly", f(3000), job.PayMonthly, f(36000)},
		{"hourly", f(25), job.PayHourly, f(52000)},
		{"yearly", f(50000), job.PayYearly, f(50000)},
		{"biweekly", f(2000), job.PayBiweekly, f(52000)},
		{"semi-monthly", f(2000), job.PaySemiMonthly, f(48000)},
		{"synonym", f(50000), job.PayBasis("Annually"), f(50000)},
		{"missing", nil, job.PayYearly, nil},
		{"zero", f(0), job.PayYearly, nil},
		{"negative", f(-10), job.PayHourly, nil},
		{"nan", f(math.NaN()), job.PayHourly, nil},
		{"inf", f(math.Inf(1)), job.PayYearly, nil},
		{"too large", f(1e12), job.PayYearly, nil},
		{"unknown basis", f(50000), job.PayUnknown, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Annualize(test.figure, test.basis)
			if test.expected == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.InDelta(t, *test.expected, *got, 1e-9)
		})
	}
}

func TestAnnualizeDeterministic(t *testing.T) {
	first := Annualize(f(3000), job.PayMonthly)
	second := Annualize(f(3000), job.PayMonthly)
	require.Equal(t, *first, *second)
}

func TestParseBasis(t *testing.T) {
	assert.Equal(t, job.PayYearly, ParseBasis("Salary"))
	assert.Equal(t, job.PayYearly, ParseBasis(" annually "))
	assert.Equal(t, job.PaySemiMonthly, ParseBasis("semi_monthly"))
	assert.Equal(t, job.PayBiweekly, ParseBasis("Bi-Weekly"))
	assert.Equal(t, job.PayHourly, ParseBasis("HOURLY"))
	assert.Equal(t, job.PayUnknown, ParseBasis(""))
	assert.Equal(t, job.PayUnknown, ParseBasis("per diem"))
}

func TestNormalize(t *testing.T) {
	t.Run("hourly range", func(t *testing.T) {
		r := Normalize(f(25), f(35), "hourly")
		require.Equal(t, job.PayHourly, r.Basis)
		require.InDelta(t, 30, *r.Mean, 1e-9)
		require.InDelta(t, 52000, *r.AnnualLow, 1e-9)
		require.InDelta(t, 72800, *r.AnnualHigh, 1e-9)
		require.InDelta(t, 62400, *r.AnnualMean, 1e-9)
	})

	t.Run("low only", func(t *testing.T) {
		r := Normalize(f(60000), nil, "yearly")
		require.InDelta(t, 60000, *r.High, 1e-9)
		require.InDelta(t, 60000, *r.Mean, 1e-9)
		require.InDelta(t, 60000, *r.AnnualMean, 1e-9)
	})

	t.Run("high only with zero low", func(t *testing.T) {
		r := Normalize(f(0), f(80000), "salary")
		require.Equal(t, job.PayYearly, r.Basis)
		require.InDelta(t, 80000, *r.Low, 1e-9)
		require.InDelta(t, 80000, *r.AnnualLow, 1e-9)
	})

	t.Run("mislabelled monthly", func(t *testing.T) {
		r := Normalize(f(4000), f(5000), "yearly")
		require.Equal(t, job.PayMonthly, r.Basis)
		require.InDelta(t, 54000, *r.AnnualMean, 1e-9)
	})

	t.Run("no figures", func(t *testing.T) {
		r := Normalize(nil, nil, "yearly")
		require.Nil(t, r.Low)
		require.Nil(t, r.Mean)
		require.Nil(t, r.AnnualMean)
		require.Equal(t, job.PayYearly, r.Basis)
	})

	t.Run("unknown basis keeps figures", func(t *testing.T) {
		r := Normalize(f(100), f(200), "per diem")
		require.Equal(t, job.PayUnknown, r.Basis)
		require.InDelta(t, 150, *r.Mean, 1e-9)
		require.Nil(t, r.AnnualMean)
	})

	t.Run("idempotent", func(t *testing.T) {
		first := Normalize(f(3000), f(3000), "monthly")
		second := Normalize(first.Low, first.High, string(first.Basis))
		require.Equal(t, *first.AnnualMean, *second.AnnualMean)
		require.Equal(t, first.Basis, second.Basis)
	})
}

func TestApply(t *testing.T) {
	var p job.Posting
	Apply(&p, Normalize(f(3000), nil, "monthly"))
	require.Equal(t, job.PayMonthly, p.PayBasis)
	require.InDelta(t, 36000, *p.AnnualSalary, 1e-9)
}
