// Package cost estimates what creating or growing a task will charge the requester account.
package cost

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	apperrors "github.com/kurihiro0119/hitbatch/internal/errors"
)

var (
	mastersFee     = decimal.RequireFromString("0.05")
	baseFee        = decimal.RequireFromString("0.20")
	largeSingleFee = decimal.RequireFromString("0.40")
)

// Estimate returns the total charge for assignments at reward each.
// Batch mode always pays the base commission since no HIT exceeds the cap;
// a single HIT above the cap pays the large-HIT commission.
func Estimate(reward decimal.Decimal, assignments int, batch bool, reqs []domain.ResolvedRequirement) decimal.Decimal {
	nominal := reward.Mul(decimal.NewFromInt(int64(assignments)))

	feeRate := decimal.Zero
	for _, r := range reqs {
		if r.Name == domain.QualMasters {
			feeRate = feeRate.Add(mastersFee)
			break
		}
	}
	switch {
	case batch:
		feeRate = feeRate.Add(baseFee)
	case assignments > domain.MaxBatchAssignments:
		feeRate = feeRate.Add(largeSingleFee)
	default:
		feeRate = feeRate.Add(baseFee)
	}

	total := nominal.Mul(decimal.NewFromInt(1).Add(feeRate))
	for _, r := range reqs {
		if r.Tier == domain.TierPremium {
			total = total.Add(r.Fee)
		}
	}
	return total
}

// CheckBalance fails when total exceeds the available balance
func CheckBalance(total, balance decimal.Decimal) error {
	if total.GreaterThan(balance) {
		return apperrors.NewInsufficientFundsError(
			fmt.Sprintf("you don't have enough funds: cost $%s, balance $%s", Format(total), Format(balance)))
	}
	return nil
}

// Format renders a dollar amount rounded to cents
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
