// Package marketplacetest provides an in-memory marketplace.Client for tests.
package marketplacetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/marketplace"
)

var _ marketplace.Client = (*Fake)(nil)

// Call records one marketplace call in order
type Call struct {
	Operation string
	HITID     string
	Count     int
	Time      time.Time
}

// Fake keeps HITs in memory and records every call
type Fake struct {
	mu sync.Mutex

	Now                func() time.Time
	Balance            decimal.Decimal
	QualificationTypes []domain.QualificationType

	hits     map[string]*domain.HIT
	hitTypes map[string]domain.HITTypeParams
	calls    []Call
	failures map[string]failure
	counts   map[string]int
	nextID   int
	nextType int
}

type failure struct {
	nth int
	err error
}

// NewFake creates a fake whose clock is now
func NewFake(now time.Time) *Fake {
	return &Fake{
		Now:      func() time.Time { return now },
		Balance:  decimal.NewFromInt(10000),
		hits:     map[string]*domain.HIT{},
		hitTypes: map[string]domain.HITTypeParams{},
		failures: map[string]failure{},
		counts:   map[string]int{},
	}
}

// Seed stores existing HITs
func (f *Fake) Seed(hits ...domain.HIT) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range hits {
		h := hits[i]
		f.hits[h.ID] = &h
	}
}

// FailOn makes the nth call (1-based) of operation fail with a NetworkError wrapping err
func (f *Fake) FailOn(operation string, nth int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[operation] = failure{nth: nth, err: err}
}

// Calls returns the recorded calls
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Operations returns the recorded operation names
func (f *Fake) Operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, len(f.calls))
	for i, c := range f.calls {
		ops[i] = c.Operation
	}
	return ops
}

// HIT returns the stored HIT
func (f *Fake) HIT(id string) (domain.HIT, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hits[id]
	if !ok {
		return domain.HIT{}, false
	}
	return *h, true
}

// HITType returns the stored type parameters
func (f *Fake) HITType(id string) (domain.HITTypeParams, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.hitTypes[id]
	return p, ok
}

func (f *Fake) record(operation, hitID string, count int) error {
	f.calls = append(f.calls, Call{Operation: operation, HITID: hitID, Count: count, Time: f.Now()})
	f.counts[operation]++
	if fail, ok := f.failures[operation]; ok && fail.nth == f.counts[operation] {
		return errors.NewNetworkError(operation, fail.err)
	}
	return nil
}

func (f *Fake) newHIT(typeID string, maxAssignments int, lifetime time.Duration, question string) *domain.HIT {
	f.nextID++
	now := f.Now()
	h := &domain.HIT{
		ID:              fmt.Sprintf("HIT%d", f.nextID),
		HITTypeID:       typeID,
		GroupID:         "GROUP-" + typeID,
		MaxAssignments:  maxAssignments,
		Expiration:      now.Add(lifetime),
		Question:        question,
		NumberAvailable: maxAssignments,
		CreatedAt:       now,
	}
	f.hits[h.ID] = h
	return h
}

func (f *Fake) CreateHITType(ctx context.Context, params domain.HITTypeParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateHITType", "", 0); err != nil {
		return "", err
	}
	f.nextType++
	id := fmt.Sprintf("TYPE%d", f.nextType)
	f.hitTypes[id] = params
	return id, nil
}

func (f *Fake) CreateHIT(ctx context.Context, params domain.HITParams) (*domain.HIT, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateHIT", "", params.MaxAssignments); err != nil {
		return nil, err
	}
	f.nextType++
	typeID := fmt.Sprintf("TYPE%d", f.nextType)
	f.hitTypes[typeID] = params.HITTypeParams
	h := f.newHIT(typeID, params.MaxAssignments, params.Lifetime, params.Question)
	out := *h
	return &out, nil
}

func (f *Fake) CreateHITWithHITType(ctx context.Context, hitTypeID string, maxAssignments int, lifetime time.Duration, question string) (*domain.HIT, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateHITWithHITType", "", maxAssignments); err != nil {
		return nil, err
	}
	h := f.newHIT(hitTypeID, maxAssignments, lifetime, question)
	out := *h
	return &out, nil
}

func (f *Fake) GetHIT(ctx context.Context, hitID string) (*domain.HIT, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetHIT", hitID, 0); err != nil {
		return nil, err
	}
	h, ok := f.hits[hitID]
	if !ok {
		return nil, errors.NewNetworkError("GetHIT", fmt.Errorf("HIT %s does not exist", hitID))
	}
	out := *h
	return &out, nil
}

func (f *Fake) UpdateExpiration(ctx context.Context, hitID string, expireAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateExpirationForHIT", hitID, 0); err != nil {
		return err
	}
	h, ok := f.hits[hitID]
	if !ok {
		return errors.NewNetworkError("UpdateExpirationForHIT", fmt.Errorf("HIT %s does not exist", hitID))
	}
	h.Expiration = expireAt
	return nil
}

func (f *Fake) CreateAdditionalAssignments(ctx context.Context, hitID string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateAdditionalAssignmentsForHIT", hitID, count); err != nil {
		return err
	}
	h, ok := f.hits[hitID]
	if !ok {
		return errors.NewNetworkError("CreateAdditionalAssignmentsForHIT", fmt.Errorf("HIT %s does not exist", hitID))
	}
	h.MaxAssignments += count
	h.NumberAvailable += count
	return nil
}

func (f *Fake) ListOwnQualificationTypes(ctx context.Context) ([]domain.QualificationType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListQualificationTypes", "", 0); err != nil {
		return nil, err
	}
	return append([]domain.QualificationType(nil), f.QualificationTypes...), nil
}

func (f *Fake) GetAccountBalance(ctx context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetAccountBalance", "", 0); err != nil {
		return decimal.Zero, err
	}
	return f.Balance, nil
}
