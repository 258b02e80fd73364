package qual

import (
	"context"
	"fmt"
	"strings"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	apperrors "github.com/kurihiro0119/hitbatch/internal/errors"
)

// QualificationLister lists the caller's own custom qualification types
type QualificationLister interface {
	ListOwnQualificationTypes(ctx context.Context) ([]domain.QualificationType, error)
}

// strategy resolves names belonging to one tier
type strategy interface {
	resolve(ctx context.Context, env domain.Environment, req domain.QualificationRequirement) (domain.ResolvedRequirement, error)
}

// Resolver maps requirement names to type IDs through the system, premium and custom tiers
type Resolver struct {
	catalog    *Catalog
	strategies map[domain.QualificationTier]strategy
}

// NewResolver creates a resolver; lister is only called for custom names
func NewResolver(catalog *Catalog, lister QualificationLister) *Resolver {
	return &Resolver{
		catalog: catalog,
		strategies: map[domain.QualificationTier]strategy{
			domain.TierSystem:  systemStrategy{},
			domain.TierPremium: premiumStrategy{catalog: catalog},
			domain.TierCustom:  customStrategy{lister: lister},
		},
	}
}

// Tier classifies a name without any network access
func (r *Resolver) Tier(name string) domain.QualificationTier {
	if _, ok := SystemTypeID(domain.EnvironmentProduction, name); ok {
		return domain.TierSystem
	}
	if r.catalog != nil {
		if _, ok := r.catalog.Lookup(name); ok {
			return domain.TierPremium
		}
	}
	return domain.TierCustom
}

// Resolve resolves one requirement on env
func (r *Resolver) Resolve(ctx context.Context, env domain.Environment, req domain.QualificationRequirement) (domain.ResolvedRequirement, error) {
	s, ok := r.strategies[r.Tier(req.Name)]
	if !ok {
		return domain.ResolvedRequirement{}, apperrors.NewInternalError("no resolution strategy for "+req.Name, nil)
	}
	return s.resolve(ctx, env, req)
}

// ResolveAll resolves requirements in order, stopping at the first failure
func (r *Resolver) ResolveAll(ctx context.Context, env domain.Environment, reqs []domain.QualificationRequirement) ([]domain.ResolvedRequirement, error) {
	resolved := make([]domain.ResolvedRequirement, 0, len(reqs))
	for _, req := range reqs {
		rr, err := r.Resolve(ctx, env, req)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, rr)
	}
	return resolved, nil
}

type systemStrategy struct{}

func (systemStrategy) resolve(_ context.Context, env domain.Environment, req domain.QualificationRequirement) (domain.ResolvedRequirement, error) {
	id, ok := SystemTypeID(env, req.Name)
	if !ok {
		return domain.ResolvedRequirement{}, apperrors.NewNameResolutionError(
			fmt.Sprintf("no system qualification %s on %s", req.Name, env))
	}
	return domain.ResolvedRequirement{QualificationRequirement: req, TypeID: id, Tier: domain.TierSystem}, nil
}

type premiumStrategy struct {
	catalog *Catalog
}

func (s premiumStrategy) resolve(_ context.Context, env domain.Environment, req domain.QualificationRequirement) (domain.ResolvedRequirement, error) {
	entry, _ := s.catalog.Lookup(req.Name)
	offer, ok := entry.Offers[env]
	if !ok {
		return domain.ResolvedRequirement{}, apperrors.NewNameResolutionError(
			fmt.Sprintf("premium qualification %s is not offered on %s", req.Name, env))
	}
	return domain.ResolvedRequirement{
		QualificationRequirement: req,
		TypeID:                   offer.ID,
		Tier:                     domain.TierPremium,
		Fee:                      offer.Fee,
	}, nil
}

type customStrategy struct {
	lister QualificationLister
}

// resolve lists the owner's types on every call; the operator's list is short.
func (s customStrategy) resolve(ctx context.Context, env domain.Environment, req domain.QualificationRequirement) (domain.ResolvedRequirement, error) {
	if s.lister == nil {
		return domain.ResolvedRequirement{}, apperrors.NewNameResolutionError(
			fmt.Sprintf("cannot look up custom qualification %s without a marketplace client", req.Name))
	}
	types, err := s.lister.ListOwnQualificationTypes(ctx)
	if err != nil {
		return domain.ResolvedRequirement{}, err
	}

	names := make([]string, 0, len(types))
	for _, t := range types {
		if t.Name == req.Name {
			return domain.ResolvedRequirement{QualificationRequirement: req, TypeID: t.ID, Tier: domain.TierCustom}, nil
		}
		names = append(names, t.Name)
	}
	return domain.ResolvedRequirement{}, apperrors.NewNameResolutionError(
		fmt.Sprintf("no custom qualification with name %s found on %s (names found on server: %s)",
			req.Name, env, strings.Join(names, ", ")))
}
