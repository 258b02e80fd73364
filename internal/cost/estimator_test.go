package cost

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEstimate(t *testing.T) {
	masters := domain.ResolvedRequirement{QualificationRequirement: domain.QualificationRequirement{Name: domain.QualMasters}, Tier: domain.TierSystem}
	premium := domain.ResolvedRequirement{QualificationRequirement: domain.QualificationRequirement{Name: "Marital_Status_Married"}, Tier: domain.TierPremium, Fee: d("0.10")}

	tests := []struct {
		name        string
		reward      string
		assignments int
		batch       bool
		reqs        []domain.ResolvedRequirement
		want        string
	}{
		{"large single HIT", "1.00", 12, false, nil, "16.80"},
		{"batch mode", "1.00", 12, true, nil, "14.40"},
		{"small single HIT", "1.00", 9, false, nil, "10.80"},
		{"masters surcharge", "0.50", 10, true, []domain.ResolvedRequirement{masters}, "6.25"},
		{"premium flat fee", "1.00", 5, true, []domain.ResolvedRequirement{premium}, "6.10"},
		{"zero assignments", "1.00", 0, true, nil, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(d(tt.reward), tt.assignments, tt.batch, tt.reqs)
			assert.Equal(t, tt.want, Format(got))
		})
	}
}

func TestCheckBalance(t *testing.T) {
	assert.NoError(t, CheckBalance(d("14.40"), d("14.40")))

	err := CheckBalance(d("16.80"), d("10"))
	assert.True(t, errors.IsInsufficientFunds(err))
	assert.Contains(t, err.Error(), "cost $16.80, balance $10.00")
}
