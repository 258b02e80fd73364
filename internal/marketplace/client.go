// Package marketplace talks to the crowd-work marketplace that hosts HITs.
package marketplace

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

// Client is the set of marketplace calls hitbatch makes.
// Implementations return errors wrapped as NetworkError AppErrors.
type Client interface {
	CreateHITType(ctx context.Context, params domain.HITTypeParams) (string, error)
	CreateHIT(ctx context.Context, params domain.HITParams) (*domain.HIT, error)
	CreateHITWithHITType(ctx context.Context, hitTypeID string, maxAssignments int, lifetime time.Duration, question string) (*domain.HIT, error)
	GetHIT(ctx context.Context, hitID string) (*domain.HIT, error)
	UpdateExpiration(ctx context.Context, hitID string, expireAt time.Time) error
	CreateAdditionalAssignments(ctx context.Context, hitID string, count int) error
	ListOwnQualificationTypes(ctx context.Context) ([]domain.QualificationType, error)
	GetAccountBalance(ctx context.Context) (decimal.Decimal, error)
}
