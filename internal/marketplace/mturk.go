package marketplace

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
)

// listPageSize is the largest page ListQualificationTypes accepts
const listPageSize = 100

// mturkAPI is the subset of the SDK client used here
type mturkAPI interface {
	CreateHITType(ctx context.Context, in *mturk.CreateHITTypeInput, optFns ...func(*mturk.Options)) (*mturk.CreateHITTypeOutput, error)
	CreateHIT(ctx context.Context, in *mturk.CreateHITInput, optFns ...func(*mturk.Options)) (*mturk.CreateHITOutput, error)
	CreateHITWithHITType(ctx context.Context, in *mturk.CreateHITWithHITTypeInput, optFns ...func(*mturk.Options)) (*mturk.CreateHITWithHITTypeOutput, error)
	GetHIT(ctx context.Context, in *mturk.GetHITInput, optFns ...func(*mturk.Options)) (*mturk.GetHITOutput, error)
	UpdateExpirationForHIT(ctx context.Context, in *mturk.UpdateExpirationForHITInput, optFns ...func(*mturk.Options)) (*mturk.UpdateExpirationForHITOutput, error)
	CreateAdditionalAssignmentsForHIT(ctx context.Context, in *mturk.CreateAdditionalAssignmentsForHITInput, optFns ...func(*mturk.Options)) (*mturk.CreateAdditionalAssignmentsForHITOutput, error)
	ListQualificationTypes(ctx context.Context, in *mturk.ListQualificationTypesInput, optFns ...func(*mturk.Options)) (*mturk.ListQualificationTypesOutput, error)
	GetAccountBalance(ctx context.Context, in *mturk.GetAccountBalanceInput, optFns ...func(*mturk.Options)) (*mturk.GetAccountBalanceOutput, error)
}

// MTurkClient implements Client over the AWS SDK
type MTurkClient struct {
	api    mturkAPI
	env    domain.Environment
	logger *zap.Logger
}

// NewMTurkClient creates a client for env using the default AWS credential chain
func NewMTurkClient(ctx context.Context, env domain.Environment, region string, logger *zap.Logger) (*MTurkClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.NewInternalError("failed to load AWS configuration", err)
	}
	api := mturk.NewFromConfig(cfg, func(o *mturk.Options) {
		o.BaseEndpoint = aws.String(env.Endpoint())
	})
	return &MTurkClient{api: api, env: env, logger: logger.With(zap.String("environment", env.String()))}, nil
}

// CreateHITType registers the shared properties and returns the type ID
func (c *MTurkClient) CreateHITType(ctx context.Context, params domain.HITTypeParams) (string, error) {
	out, err := c.api.CreateHITType(ctx, &mturk.CreateHITTypeInput{
		Title:                       aws.String(params.Title),
		Description:                 aws.String(params.Description),
		Keywords:                    aws.String(params.Keywords),
		Reward:                      aws.String(params.Reward),
		AssignmentDurationInSeconds: aws.Int64(seconds(params.AssignmentDuration)),
		AutoApprovalDelayInSeconds:  aws.Int64(seconds(params.AutoApprovalDelay)),
		QualificationRequirements:   toRequirements(params.QualificationRequirements),
	})
	if err != nil {
		return "", c.fail("CreateHITType", err)
	}
	return aws.ToString(out.HITTypeId), nil
}

// CreateHIT creates a standalone HIT carrying its own type properties
func (c *MTurkClient) CreateHIT(ctx context.Context, params domain.HITParams) (*domain.HIT, error) {
	out, err := c.api.CreateHIT(ctx, &mturk.CreateHITInput{
		Title:                       aws.String(params.Title),
		Description:                 aws.String(params.Description),
		Keywords:                    aws.String(params.Keywords),
		Reward:                      aws.String(params.Reward),
		AssignmentDurationInSeconds: aws.Int64(seconds(params.AssignmentDuration)),
		AutoApprovalDelayInSeconds:  aws.Int64(seconds(params.AutoApprovalDelay)),
		QualificationRequirements:   toRequirements(params.QualificationRequirements),
		MaxAssignments:              aws.Int32(int32(params.MaxAssignments)),
		LifetimeInSeconds:           aws.Int64(seconds(params.Lifetime)),
		Question:                    aws.String(params.Question),
		UniqueRequestToken:          aws.String(uuid.NewString()),
	})
	if err != nil {
		return nil, c.fail("CreateHIT", err)
	}
	return toHIT(out.HIT), nil
}

// CreateHITWithHITType creates one member of a batch under an existing type
func (c *MTurkClient) CreateHITWithHITType(ctx context.Context, hitTypeID string, maxAssignments int, lifetime time.Duration, question string) (*domain.HIT, error) {
	out, err := c.api.CreateHITWithHITType(ctx, &mturk.CreateHITWithHITTypeInput{
		HITTypeId:          aws.String(hitTypeID),
		MaxAssignments:     aws.Int32(int32(maxAssignments)),
		LifetimeInSeconds:  aws.Int64(seconds(lifetime)),
		Question:           aws.String(question),
		UniqueRequestToken: aws.String(uuid.NewString()),
	})
	if err != nil {
		return nil, c.fail("CreateHITWithHITType", err)
	}
	return toHIT(out.HIT), nil
}

// GetHIT fetches the current record of a HIT
func (c *MTurkClient) GetHIT(ctx context.Context, hitID string) (*domain.HIT, error) {
	out, err := c.api.GetHIT(ctx, &mturk.GetHITInput{HITId: aws.String(hitID)})
	if err != nil {
		return nil, c.fail("GetHIT", err)
	}
	return toHIT(out.HIT), nil
}

// UpdateExpiration moves a HIT's expiration; a time in the past expires it immediately
func (c *MTurkClient) UpdateExpiration(ctx context.Context, hitID string, expireAt time.Time) error {
	_, err := c.api.UpdateExpirationForHIT(ctx, &mturk.UpdateExpirationForHITInput{
		HITId:    aws.String(hitID),
		ExpireAt: aws.Time(expireAt),
	})
	if err != nil {
		return c.fail("UpdateExpirationForHIT", err)
	}
	return nil
}

// CreateAdditionalAssignments raises a HIT's MaxAssignments by count
func (c *MTurkClient) CreateAdditionalAssignments(ctx context.Context, hitID string, count int) error {
	_, err := c.api.CreateAdditionalAssignmentsForHIT(ctx, &mturk.CreateAdditionalAssignmentsForHITInput{
		HITId:                         aws.String(hitID),
		NumberOfAdditionalAssignments: aws.Int32(int32(count)),
		UniqueRequestToken:            aws.String(uuid.NewString()),
	})
	if err != nil {
		return c.fail("CreateAdditionalAssignmentsForHIT", err)
	}
	return nil
}

// ListOwnQualificationTypes returns every qualification type owned by the caller,
// including types workers cannot request and are only granted by the requester
func (c *MTurkClient) ListOwnQualificationTypes(ctx context.Context) ([]domain.QualificationType, error) {
	var (
		result []domain.QualificationType
		token  *string
	)
	for {
		out, err := c.api.ListQualificationTypes(ctx, &mturk.ListQualificationTypesInput{
			MustBeRequestable:   aws.Bool(false),
			MustBeOwnedByCaller: aws.Bool(true),
			MaxResults:          aws.Int32(listPageSize),
			NextToken:           token,
		})
		if err != nil {
			return nil, c.fail("ListQualificationTypes", err)
		}
		for _, qt := range out.QualificationTypes {
			result = append(result, domain.QualificationType{
				ID:   aws.ToString(qt.QualificationTypeId),
				Name: aws.ToString(qt.Name),
			})
		}
		if aws.ToString(out.NextToken) == "" {
			return result, nil
		}
		token = out.NextToken
	}
}

// GetAccountBalance returns the available prepaid balance
func (c *MTurkClient) GetAccountBalance(ctx context.Context) (decimal.Decimal, error) {
	out, err := c.api.GetAccountBalance(ctx, &mturk.GetAccountBalanceInput{})
	if err != nil {
		return decimal.Zero, c.fail("GetAccountBalance", err)
	}
	balance, err := decimal.NewFromString(aws.ToString(out.AvailableBalance))
	if err != nil {
		return decimal.Zero, errors.NewInternalError("unreadable account balance", err)
	}
	return balance, nil
}

func (c *MTurkClient) fail(operation string, err error) error {
	c.logger.Error("marketplace call failed", zap.String("operation", operation), zap.Error(err))
	return errors.NewNetworkError(operation, err)
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func toRequirements(reqs []domain.ResolvedRequirement) []types.QualificationRequirement {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]types.QualificationRequirement, 0, len(reqs))
	for _, r := range reqs {
		qr := types.QualificationRequirement{
			QualificationTypeId: aws.String(r.TypeID),
			Comparator:          types.Comparator(r.Comparator),
			IntegerValues:       r.IntegerValues,
		}
		for _, lv := range r.LocaleValues {
			loc := types.Locale{Country: aws.String(lv.Country)}
			if lv.Subdivision != "" {
				loc.Subdivision = aws.String(lv.Subdivision)
			}
			qr.LocaleValues = append(qr.LocaleValues, loc)
		}
		out = append(out, qr)
	}
	return out
}

func toHIT(h *types.HIT) *domain.HIT {
	if h == nil {
		return nil
	}
	return &domain.HIT{
		ID:              aws.ToString(h.HITId),
		HITTypeID:       aws.ToString(h.HITTypeId),
		GroupID:         aws.ToString(h.HITGroupId),
		MaxAssignments:  int(aws.ToInt32(h.MaxAssignments)),
		Expiration:      aws.ToTime(h.Expiration),
		Question:        aws.ToString(h.Question),
		NumberCompleted: int(aws.ToInt32(h.NumberOfAssignmentsCompleted)),
		NumberAvailable: int(aws.ToInt32(h.NumberOfAssignmentsAvailable)),
		NumberPending:   int(aws.ToInt32(h.NumberOfAssignmentsPending)),
		CreatedAt:       aws.ToTime(h.CreationTime),
	}
}
