package aggregator

import (
	"context"
	"sort"
	"time"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/storage"
)

// Aggregator summarizes stored batch sets for display
type Aggregator interface {
	// EnvironmentStatus summarizes the set stored for env
	EnvironmentStatus(ctx context.Context, env domain.Environment) (*Summary, error)
}

// Row is one member of a batch set
type Row struct {
	HITID          string    `json:"hit_id"`
	GroupID        string    `json:"group_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Expiration     time.Time `json:"expiration"`
	Expired        bool      `json:"expired"`
	MaxAssignments int       `json:"max_assignments"`
	Pending        int       `json:"pending"`
	Available      int       `json:"available"`
	Completed      int       `json:"completed"`
}

// Totals sums the rows of a summary
type Totals struct {
	MaxAssignments int `json:"max_assignments"`
	Pending        int `json:"pending"`
	Available      int `json:"available"`
	Completed      int `json:"completed"`
}

// Summary is the status of every member in a set, soonest expiration first
type Summary struct {
	Environment domain.Environment `json:"environment"`
	Batch       bool               `json:"batch"`
	Rows        []Row              `json:"rows"`
	Totals      Totals             `json:"totals"`
}

// aggregator implements the Aggregator interface
type aggregator struct {
	storage storage.Repository
	now     func() time.Time
}

// NewAggregator creates a new aggregator
func NewAggregator(storage storage.Repository) Aggregator {
	return &aggregator{
		storage: storage,
		now:     time.Now,
	}
}

// EnvironmentStatus summarizes the stored records without contacting the marketplace
func (a *aggregator) EnvironmentStatus(ctx context.Context, env domain.Environment) (*Summary, error) {
	set, err := a.storage.Load(ctx, env)
	if err != nil {
		return nil, err
	}
	summary := Summarize(set, a.now())
	summary.Environment = env
	return summary, nil
}

// Summarize builds rows sorted by expiration and their totals
func Summarize(set *domain.BatchSet, now time.Time) *Summary {
	summary := &Summary{Batch: set.Batch, Rows: make([]Row, 0, len(set.HITs))}
	for _, h := range set.HITs {
		summary.Rows = append(summary.Rows, Row{
			HITID:          h.ID,
			GroupID:        h.GroupID,
			CreatedAt:      h.CreatedAt,
			Expiration:     h.Expiration,
			Expired:        !h.Expiration.After(now),
			MaxAssignments: h.MaxAssignments,
			Pending:        h.NumberPending,
			Available:      h.NumberAvailable,
			Completed:      h.NumberCompleted,
		})
		summary.Totals.MaxAssignments += h.MaxAssignments
		summary.Totals.Pending += h.NumberPending
		summary.Totals.Available += h.NumberAvailable
		summary.Totals.Completed += h.NumberCompleted
	}
	sort.SliceStable(summary.Rows, func(i, j int) bool {
		return summary.Rows[i].Expiration.Before(summary.Rows[j].Expiration)
	})
	return summary
}
