// Package batch maps a logical task onto HITs capped at domain.MaxBatchAssignments
// assignments each, and keeps that set consistent as assignments and time are added.
package batch

import (
	"time"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

// DefaultLifetime is used for new members when every existing member has expired
const DefaultLifetime = 4 * 24 * time.Hour

// MinInheritedLifetime is the shortest remaining window new members inherit;
// below it the set is treated as expired and DefaultLifetime applies.
const MinInheritedLifetime = time.Minute

// Plan splits total assignments into batch sizes: full batches followed by one
// remainder batch. Plan(20) is [9 9 2]; Plan(0) is empty.
func Plan(total int) []int {
	return planWithCap(total, domain.MaxBatchAssignments)
}

func planWithCap(total, limit int) []int {
	if total <= 0 {
		return nil
	}
	n := (total + limit - 1) / limit
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = limit
	}
	if rem := total % limit; rem != 0 {
		sizes[n-1] = rem
	}
	return sizes
}

// TopUp adds assignments to an existing under-cap member
type TopUp struct {
	HITID  string
	Amount int
}

// GrowthPlan is the set of operations that adds assignments to a batch set
type GrowthPlan struct {
	TopUp    *TopUp
	NewSizes []int
	// Lifetime applies to every new member.
	Lifetime time.Duration
	// Inherited reports whether Lifetime was derived from existing members rather than the default.
	Inherited bool
	Template  domain.HIT
}

// PlanGrowth plans adding additional assignments to set at time now.
// The first member below the cap, in set order, is topped up before any new member is planned.
func PlanGrowth(set *domain.BatchSet, additional int, now time.Time) GrowthPlan {
	var plan GrowthPlan
	if len(set.HITs) == 0 || additional <= 0 {
		return plan
	}
	plan.Template = set.HITs[0]

	remaining := additional
	for _, h := range set.HITs {
		if h.MaxAssignments < domain.MaxBatchAssignments {
			amount := min(additional, domain.MaxBatchAssignments-h.MaxAssignments)
			plan.TopUp = &TopUp{HITID: h.ID, Amount: amount}
			remaining -= amount
			break
		}
	}

	plan.NewSizes = Plan(remaining)
	plan.Lifetime, plan.Inherited = lifetimeFor(set, now)
	return plan
}

// lifetimeFor lets new members expire with the latest running member, so the
// set stays reachable for one window. A set about to close counts as expired.
func lifetimeFor(set *domain.BatchSet, now time.Time) (time.Duration, bool) {
	remaining := set.LatestExpiration().Sub(now).Truncate(time.Second)
	if remaining >= MinInheritedLifetime {
		return remaining, true
	}
	return DefaultLifetime, false
}
