package batch

import (
	"time"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

// Extension is a planned expiration update for one HIT
type Extension struct {
	HITID         string
	OldExpiration time.Time
	NewExpiration time.Time
}

// NewExpiration extends from now when the current expiration is already past
func NewExpiration(now, current time.Time, delta time.Duration) time.Time {
	base := current
	if now.After(base) {
		base = now
	}
	return base.Add(delta)
}

// PlanExtensions extends every member that still has assignments to complete
func PlanExtensions(hits []domain.HIT, now time.Time, delta time.Duration) []Extension {
	var exts []Extension
	for i := range hits {
		if !hits[i].InProgress() {
			continue
		}
		exts = append(exts, Extension{
			HITID:         hits[i].ID,
			OldExpiration: hits[i].Expiration,
			NewExpiration: NewExpiration(now, hits[i].Expiration, delta),
		})
	}
	return exts
}
