// Package service runs the operator workflows: upload, grow, extend, expire and report.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kurihiro0119/hitbatch/internal/aggregator"
	"github.com/kurihiro0119/hitbatch/internal/batch"
	"github.com/kurihiro0119/hitbatch/internal/config"
	"github.com/kurihiro0119/hitbatch/internal/cost"
	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/marketplace"
	"github.com/kurihiro0119/hitbatch/internal/qual"
	"github.com/kurihiro0119/hitbatch/internal/storage"
)

// Service runs workflows against one environment
type Service struct {
	env      domain.Environment
	client   marketplace.Client
	store    storage.Repository
	engine   *batch.Engine
	resolver *qual.Resolver
	premium  []string
	report   func(Quote)
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service
type Option func(*options)

type options struct {
	pacer  *batch.Pacer
	report func(Quote)
	now    func() time.Time
	logger *zap.Logger
}

// WithPacer sets the delay between creation calls
func WithPacer(p *batch.Pacer) Option {
	return func(o *options) { o.pacer = p }
}

// WithQuoteReporter sets a callback that receives every quote as soon as it is
// priced, before the balance check and before any mutating marketplace call
func WithQuoteReporter(report func(Quote)) Option {
	return func(o *options) { o.report = report }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a service for env
func New(env domain.Environment, client marketplace.Client, store storage.Repository, catalog *qual.Catalog, opts ...Option) *Service {
	o := options{
		pacer:  batch.NewPacer(batch.DefaultCallDelay, nil),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With(zap.String("environment", env.String()))
	return &Service{
		env:    env,
		client: client,
		store:  store,
		engine: batch.NewEngine(client, store,
			batch.WithPacer(o.pacer),
			batch.WithClock(o.now),
			batch.WithLogger(logger),
		),
		resolver: qual.NewResolver(catalog, client),
		premium:  catalog.Names(),
		report:   o.report,
		now:      o.now,
		logger:   logger,
	}
}

// Environment returns the environment the service runs against
func (s *Service) Environment() domain.Environment {
	return s.env
}

// Quote is the cost check made before any mutating call
type Quote struct {
	Assignments  int
	Cost         decimal.Decimal
	Balance      decimal.Decimal
	Requirements []domain.ResolvedRequirement
}

// UploadResult is what Upload created
type UploadResult struct {
	Quote       Quote
	Set         *domain.BatchSet
	PreviewURLs []string
}

// Upload creates the HITs for a task that has not been uploaded to this environment yet
func (s *Service) Upload(ctx context.Context, settings *config.Settings, assignments int, lifetime time.Duration) (*UploadResult, error) {
	if assignments < 1 {
		return nil, errors.NewValidationError("assignments must be at least 1")
	}
	if lifetime < time.Second {
		return nil, errors.NewValidationError("lifetime must be at least one second")
	}
	if _, err := s.store.Load(ctx, s.env); err == nil {
		return nil, errors.NewAlreadyUploadedError(s.env.String())
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	quote, err := s.quote(ctx, settings, assignments)
	if err != nil {
		return nil, err
	}
	result := &UploadResult{Quote: *quote}

	typeParams, question, err := s.hitParams(settings, quote.Requirements)
	if err != nil {
		return nil, err
	}

	var set *domain.BatchSet
	if settings.Batch {
		set, err = s.engine.CreateBatch(ctx, s.env, typeParams, assignments, lifetime, question)
	} else {
		set, err = s.engine.CreateSingle(ctx, s.env, domain.HITParams{
			HITTypeParams:  typeParams,
			MaxAssignments: assignments,
			Lifetime:       lifetime,
			Question:       question,
		})
	}
	if set != nil {
		result.Set = set
		result.PreviewURLs = s.previewURLs(set)
	}
	return result, err
}

// GrowthResult is what AddAssignments changed
type GrowthResult struct {
	Quote  Quote
	Report *batch.GrowthReport
}

// AddAssignments adds n assignments to the uploaded set
func (s *Service) AddAssignments(ctx context.Context, settings *config.Settings, n int) (*GrowthResult, error) {
	if n < 1 {
		return nil, errors.NewValidationError("assignments must be at least 1")
	}
	set, err := s.store.Load(ctx, s.env)
	if err != nil {
		return nil, err
	}

	quote, err := s.quoteFor(ctx, settings, n, set.Batch)
	if err != nil {
		return nil, err
	}
	report, err := s.engine.Grow(ctx, s.env, n)
	return &GrowthResult{Quote: *quote, Report: report}, err
}

// AddTime extends every in-progress HIT by d
func (s *Service) AddTime(ctx context.Context, d time.Duration) (*batch.ExtensionReport, error) {
	if d <= 0 {
		return nil, errors.NewValidationError("time to add must be positive")
	}
	return s.engine.Extend(ctx, s.env, d)
}

// Expire stops every HIT from accepting new workers
func (s *Service) Expire(ctx context.Context) (*domain.BatchSet, error) {
	return s.engine.Expire(ctx, s.env)
}

// Status refreshes every HIT from the marketplace and summarizes the set
func (s *Service) Status(ctx context.Context) (*aggregator.Summary, error) {
	set, err := s.engine.Refresh(ctx, s.env)
	if err != nil {
		return nil, err
	}
	summary := aggregator.Summarize(set, s.now())
	summary.Environment = s.env
	return summary, nil
}

// Balance returns the available account balance
func (s *Service) Balance(ctx context.Context) (decimal.Decimal, error) {
	return s.client.GetAccountBalance(ctx)
}

// CustomQualifications lists the qualification types the account owns
func (s *Service) CustomQualifications(ctx context.Context) ([]domain.QualificationType, error) {
	return s.client.ListOwnQualificationTypes(ctx)
}

// PreviewURLs returns one worker preview link per HIT group in the stored set
func (s *Service) PreviewURLs(ctx context.Context) ([]string, error) {
	set, err := s.store.Load(ctx, s.env)
	if err != nil {
		return nil, err
	}
	return s.previewURLs(set), nil
}

func (s *Service) quote(ctx context.Context, settings *config.Settings, assignments int) (*Quote, error) {
	return s.quoteFor(ctx, settings, assignments, settings.Batch)
}

// quoteFor compiles and resolves the settings' qualifications, prices the
// assignments and fails before any mutation when the balance cannot cover them.
func (s *Service) quoteFor(ctx context.Context, settings *config.Settings, assignments int, batchMode bool) (*Quote, error) {
	reqs, err := CompileFormulae(settings.Qualifications, s.premium, s.logger)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolver.ResolveAll(ctx, s.env, reqs)
	if err != nil {
		return nil, err
	}
	reward, err := settings.RewardAmount()
	if err != nil {
		return nil, err
	}

	total := cost.Estimate(reward, assignments, batchMode, resolved)
	balance, err := s.client.GetAccountBalance(ctx)
	if err != nil {
		return nil, err
	}
	quote := &Quote{Assignments: assignments, Cost: total, Balance: balance, Requirements: resolved}
	s.logger.Info("cost estimated",
		zap.Int("assignments", assignments),
		zap.String("cost", cost.Format(total)),
		zap.String("balance", cost.Format(balance)),
	)
	if s.report != nil {
		s.report(*quote)
	}
	if err := cost.CheckBalance(total, balance); err != nil {
		return quote, err
	}
	return quote, nil
}

func (s *Service) hitParams(settings *config.Settings, reqs []domain.ResolvedRequirement) (domain.HITTypeParams, string, error) {
	url, err := config.NormalizeURL(settings.URL)
	if err != nil {
		return domain.HITTypeParams{}, "", err
	}
	question, err := ExternalQuestion(url, settings.FrameHeight)
	if err != nil {
		return domain.HITTypeParams{}, "", err
	}
	reward, err := settings.RewardAmount()
	if err != nil {
		return domain.HITTypeParams{}, "", err
	}
	assignmentDuration, err := settings.AssignmentDurationValue()
	if err != nil {
		return domain.HITTypeParams{}, "", err
	}
	autoApproval, err := settings.AutoApprovalDelayValue()
	if err != nil {
		return domain.HITTypeParams{}, "", err
	}
	return domain.HITTypeParams{
		Title:                     settings.Title,
		Description:               settings.Description,
		Keywords:                  settings.Keywords,
		Reward:                    reward.StringFixed(2),
		AssignmentDuration:        assignmentDuration,
		AutoApprovalDelay:         autoApproval,
		QualificationRequirements: reqs,
	}, question, nil
}

func (s *Service) previewURLs(set *domain.BatchSet) []string {
	seen := map[string]bool{}
	var urls []string
	for _, h := range set.HITs {
		if h.GroupID == "" || seen[h.GroupID] {
			continue
		}
		seen[h.GroupID] = true
		urls = append(urls, s.env.PreviewURL(h.GroupID))
	}
	return urls
}

// CompileFormulae compiles settings formula lines, naming the line that failed.
// known holds the premium names, which skip the typo check like system names.
func CompileFormulae(lines []string, known []string, logger *zap.Logger) ([]domain.QualificationRequirement, error) {
	compiler := qual.NewCompiler(qual.WithLogger(logger), qual.WithKnownNames(known...))
	reqs := make([]domain.QualificationRequirement, 0, len(lines))
	for _, line := range lines {
		req, err := compiler.Compile(line)
		if err != nil {
			return nil, fmt.Errorf("qualification %q: %w", line, err)
		}
		compiler.Learn(req.Name)
		reqs = append(reqs, *req)
	}
	return reqs, nil
}
