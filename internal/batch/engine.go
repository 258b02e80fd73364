package batch

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

// Marketplace is the subset of marketplace calls the engine issues
type Marketplace interface {
	CreateHITType(ctx context.Context, params domain.HITTypeParams) (string, error)
	CreateHIT(ctx context.Context, params domain.HITParams) (*domain.HIT, error)
	CreateHITWithHITType(ctx context.Context, hitTypeID string, maxAssignments int, lifetime time.Duration, question string) (*domain.HIT, error)
	GetHIT(ctx context.Context, hitID string) (*domain.HIT, error)
	UpdateExpiration(ctx context.Context, hitID string, expireAt time.Time) error
	CreateAdditionalAssignments(ctx context.Context, hitID string, count int) error
}

// Store persists one batch set per environment
type Store interface {
	Load(ctx context.Context, env domain.Environment) (*domain.BatchSet, error)
	Save(ctx context.Context, env domain.Environment, set *domain.BatchSet) error
}

// Engine executes allocation plans against the marketplace one call at a time.
// Whatever completed before a failure is saved before the error is returned.
type Engine struct {
	client Marketplace
	store  Store
	pacer  *Pacer
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithPacer replaces the default 500ms pacer
func WithPacer(p *Pacer) Option {
	return func(e *Engine) { e.pacer = p }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine
func NewEngine(client Marketplace, store Store, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		store:  store,
		pacer:  NewPacer(DefaultCallDelay, nil),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateBatch registers one HIT type and creates members sized by Plan(total)
func (e *Engine) CreateBatch(ctx context.Context, env domain.Environment, params domain.HITTypeParams, total int, lifetime time.Duration, question string) (*domain.BatchSet, error) {
	typeID, err := e.client.CreateHITType(ctx, params)
	if err != nil {
		e.logger.Error("failed to create HIT type", zap.Error(err))
		return nil, err
	}
	e.logger.Debug("created HIT type", zap.String("hit_type_id", typeID))

	set := domain.NewBatchSet(nil)
	for _, size := range Plan(total) {
		hit, err := e.createMember(ctx, typeID, size, lifetime, question)
		if err != nil {
			return set, e.saveAfterFailure(ctx, env, set, err)
		}
		set.HITs = append(set.HITs, *hit)
	}
	return set, e.store.Save(ctx, env, set)
}

// CreateSingle creates one uncapped HIT holding every assignment
func (e *Engine) CreateSingle(ctx context.Context, env domain.Environment, params domain.HITParams) (*domain.BatchSet, error) {
	hit, err := e.client.CreateHIT(ctx, params)
	if err != nil {
		e.logger.Error("failed to create HIT", zap.Error(err))
		return nil, err
	}
	e.logger.Info("created HIT",
		zap.String("hit_id", hit.ID),
		zap.Int("max_assignments", hit.MaxAssignments),
	)
	set := domain.NewSingleSet(*hit)
	return set, e.store.Save(ctx, env, set)
}

// GrowthReport describes what Grow did, including on partial failure
type GrowthReport struct {
	Plan    GrowthPlan
	TopUp   *domain.HIT
	Created []domain.HIT
	Set     *domain.BatchSet
}

// Grow adds assignments to the set stored for env
func (e *Engine) Grow(ctx context.Context, env domain.Environment, additional int) (*GrowthReport, error) {
	set, err := e.store.Load(ctx, env)
	if err != nil {
		return nil, err
	}
	if !set.Batch {
		return e.growSingle(ctx, env, set, additional)
	}

	plan := PlanGrowth(set, additional, e.now())
	report := &GrowthReport{Plan: plan, Set: set}

	touched := map[string]bool{}
	var updated []domain.HIT
	finish := func() *domain.BatchSet {
		result := domain.NewBatchSet(nil)
		for _, h := range set.HITs {
			if !touched[h.ID] {
				result.HITs = append(result.HITs, h)
			}
		}
		result.HITs = append(result.HITs, updated...)
		report.Set = result
		return result
	}

	if plan.TopUp != nil {
		hit, err := e.topUp(ctx, set, *plan.TopUp)
		if hit != nil {
			touched[hit.ID] = true
			updated = append(updated, *hit)
			report.TopUp = hit
		}
		if err != nil {
			return report, e.saveAfterFailure(ctx, env, finish(), err)
		}
	}

	if len(plan.NewSizes) > 0 {
		e.logger.Info("creating new batches",
			zap.Ints("sizes", plan.NewSizes),
			zap.Duration("lifetime", plan.Lifetime),
			zap.Bool("inherited_lifetime", plan.Inherited),
		)
	}
	for _, size := range plan.NewSizes {
		hit, err := e.createMember(ctx, plan.Template.HITTypeID, size, plan.Lifetime, plan.Template.Question)
		if err != nil {
			return report, e.saveAfterFailure(ctx, env, finish(), err)
		}
		updated = append(updated, *hit)
		report.Created = append(report.Created, *hit)
	}

	return report, e.store.Save(ctx, env, finish())
}

func (e *Engine) growSingle(ctx context.Context, env domain.Environment, set *domain.BatchSet, additional int) (*GrowthReport, error) {
	target := set.HITs[0]
	report := &GrowthReport{
		Plan: GrowthPlan{TopUp: &TopUp{HITID: target.ID, Amount: additional}, Template: target},
		Set:  set,
	}
	hit, err := e.topUp(ctx, set, TopUp{HITID: target.ID, Amount: additional})
	if hit != nil {
		set.Replace(*hit)
		report.TopUp = hit
	}
	if err != nil {
		if hit == nil {
			return report, err
		}
		return report, e.saveAfterFailure(ctx, env, set, err)
	}
	return report, e.store.Save(ctx, env, set)
}

// topUp raises one member's cap and re-fetches it. When only the re-fetch fails the
// returned copy carries the raised cap so the record still matches the marketplace.
func (e *Engine) topUp(ctx context.Context, set *domain.BatchSet, t TopUp) (*domain.HIT, error) {
	if err := e.client.CreateAdditionalAssignments(ctx, t.HITID, t.Amount); err != nil {
		e.logger.Error("failed to add assignments", zap.String("hit_id", t.HITID), zap.Error(err))
		return nil, err
	}
	e.logger.Info("added assignments", zap.String("hit_id", t.HITID), zap.Int("count", t.Amount))

	local := findHIT(set, t.HITID)
	local.MaxAssignments += t.Amount
	local.NumberAvailable += t.Amount

	if err := e.pacer.Wait(ctx); err != nil {
		return &local, err
	}
	hit, err := e.client.GetHIT(ctx, t.HITID)
	if err != nil {
		e.logger.Error("failed to refresh HIT", zap.String("hit_id", t.HITID), zap.Error(err))
		return &local, err
	}
	return hit, nil
}

// ExtensionReport lists the extensions that were applied
type ExtensionReport struct {
	Applied []Extension
	Set     *domain.BatchSet
}

// Extend pushes back the expiration of every in-progress member by delta.
// A single-mode HIT is extended regardless of progress.
func (e *Engine) Extend(ctx context.Context, env domain.Environment, delta time.Duration) (*ExtensionReport, error) {
	set, err := e.store.Load(ctx, env)
	if err != nil {
		return nil, err
	}
	report := &ExtensionReport{Set: set}

	refreshed := make([]domain.HIT, 0, len(set.HITs))
	for _, h := range set.HITs {
		hit, err := e.client.GetHIT(ctx, h.ID)
		if err != nil {
			e.logger.Error("failed to refresh HIT", zap.String("hit_id", h.ID), zap.Error(err))
			return report, err
		}
		refreshed = append(refreshed, *hit)
	}
	set.Replace(refreshed...)

	now := e.now()
	var exts []Extension
	if set.Batch {
		exts = PlanExtensions(refreshed, now, delta)
	} else {
		exts = []Extension{{
			HITID:         refreshed[0].ID,
			OldExpiration: refreshed[0].Expiration,
			NewExpiration: NewExpiration(now, refreshed[0].Expiration, delta),
		}}
	}

	for _, ext := range exts {
		if err := e.client.UpdateExpiration(ctx, ext.HITID, ext.NewExpiration); err != nil {
			e.logger.Error("failed to extend HIT", zap.String("hit_id", ext.HITID), zap.Error(err))
			return report, e.saveAfterFailure(ctx, env, set, err)
		}
		setExpiration(set, ext.HITID, ext.NewExpiration)
		report.Applied = append(report.Applied, ext)
		e.logger.Info("extended HIT", zap.String("hit_id", ext.HITID), zap.Time("expiration", ext.NewExpiration))
	}
	return report, e.store.Save(ctx, env, set)
}

// Expire sets every member's expiration to now so no new worker can accept it
func (e *Engine) Expire(ctx context.Context, env domain.Environment) (*domain.BatchSet, error) {
	set, err := e.store.Load(ctx, env)
	if err != nil {
		return nil, err
	}
	now := e.now()
	for _, h := range set.HITs {
		if err := e.client.UpdateExpiration(ctx, h.ID, now); err != nil {
			e.logger.Error("failed to expire HIT", zap.String("hit_id", h.ID), zap.Error(err))
			return set, e.saveAfterFailure(ctx, env, set, err)
		}
		setExpiration(set, h.ID, now)
		e.logger.Info("expired HIT", zap.String("hit_id", h.ID))
	}
	return set, e.store.Save(ctx, env, set)
}

// Refresh re-fetches every member and saves the current records
func (e *Engine) Refresh(ctx context.Context, env domain.Environment) (*domain.BatchSet, error) {
	set, err := e.store.Load(ctx, env)
	if err != nil {
		return nil, err
	}
	for _, h := range set.HITs {
		hit, err := e.client.GetHIT(ctx, h.ID)
		if err != nil {
			e.logger.Error("failed to refresh HIT", zap.String("hit_id", h.ID), zap.Error(err))
			return set, e.saveAfterFailure(ctx, env, set, err)
		}
		set.Replace(*hit)
	}
	return set, e.store.Save(ctx, env, set)
}

func (e *Engine) createMember(ctx context.Context, typeID string, size int, lifetime time.Duration, question string) (*domain.HIT, error) {
	if err := e.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	hit, err := e.client.CreateHITWithHITType(ctx, typeID, size, lifetime, question)
	if err != nil {
		e.logger.Error("failed to create batch member", zap.Int("size", size), zap.Error(err))
		return nil, err
	}
	if hit.Question == "" {
		hit.Question = question
	}
	e.logger.Info("created batch member",
		zap.String("hit_id", hit.ID),
		zap.Int("max_assignments", hit.MaxAssignments),
	)
	return hit, nil
}

// saveAfterFailure keeps the record in step with the calls that did complete
func (e *Engine) saveAfterFailure(ctx context.Context, env domain.Environment, set *domain.BatchSet, cause error) error {
	if len(set.HITs) == 0 {
		return cause
	}
	if err := e.store.Save(context.WithoutCancel(ctx), env, set); err != nil {
		e.logger.Error("failed to save partial result", zap.Error(err))
		return stderrors.Join(cause, err)
	}
	return cause
}

func findHIT(set *domain.BatchSet, id string) domain.HIT {
	for _, h := range set.HITs {
		if h.ID == id {
			return h
		}
	}
	return domain.HIT{ID: id}
}

func setExpiration(set *domain.BatchSet, id string, at time.Time) {
	for i := range set.HITs {
		if set.HITs[i].ID == id {
			set.HITs[i].Expiration = at
			return
		}
	}
}
