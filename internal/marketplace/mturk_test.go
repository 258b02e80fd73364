package marketplace

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
)

// stubAPI answers only the calls a test overrides
type stubAPI struct {
	mturkAPI
	pages      []*mturk.ListQualificationTypesOutput
	listInputs []*mturk.ListQualificationTypesInput
	balance    string
	withType   *mturk.CreateHITWithHITTypeInput
	err        error
}

func (s *stubAPI) ListQualificationTypes(ctx context.Context, in *mturk.ListQualificationTypesInput, optFns ...func(*mturk.Options)) (*mturk.ListQualificationTypesOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.listInputs = append(s.listInputs, in)
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page, nil
}

func (s *stubAPI) GetAccountBalance(ctx context.Context, in *mturk.GetAccountBalanceInput, optFns ...func(*mturk.Options)) (*mturk.GetAccountBalanceOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &mturk.GetAccountBalanceOutput{AvailableBalance: aws.String(s.balance)}, nil
}

func (s *stubAPI) CreateHITWithHITType(ctx context.Context, in *mturk.CreateHITWithHITTypeInput, optFns ...func(*mturk.Options)) (*mturk.CreateHITWithHITTypeOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.withType = in
	return &mturk.CreateHITWithHITTypeOutput{HIT: &types.HIT{
		HITId:          aws.String("H1"),
		HITTypeId:      in.HITTypeId,
		MaxAssignments: in.MaxAssignments,
		Question:       in.Question,
	}}, nil
}

func newTestClient(api mturkAPI) *MTurkClient {
	return &MTurkClient{api: api, env: domain.EnvironmentSandbox, logger: zap.NewNop()}
}

func TestListOwnQualificationTypesFollowsPages(t *testing.T) {
	api := &stubAPI{pages: []*mturk.ListQualificationTypesOutput{
		{
			QualificationTypes: []types.QualificationType{{QualificationTypeId: aws.String("Q1"), Name: aws.String("Alpha")}},
			NextToken:          aws.String("next"),
		},
		{
			QualificationTypes: []types.QualificationType{{QualificationTypeId: aws.String("Q2"), Name: aws.String("Beta")}},
		},
	}}

	got, err := newTestClient(api).ListOwnQualificationTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.QualificationType{{ID: "Q1", Name: "Alpha"}, {ID: "Q2", Name: "Beta"}}, got)

	require.Len(t, api.listInputs, 2)
	assert.Nil(t, api.listInputs[0].NextToken)
	assert.Equal(t, "next", aws.ToString(api.listInputs[1].NextToken))
	assert.True(t, aws.ToBool(api.listInputs[0].MustBeOwnedByCaller))
	for _, in := range api.listInputs {
		require.NotNil(t, in.MustBeRequestable)
		assert.False(t, *in.MustBeRequestable, "granted-only types must be listed too")
	}
}

func TestGetAccountBalance(t *testing.T) {
	got, err := newTestClient(&stubAPI{balance: "123.45"}).GetAccountBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("123.45").Equal(got))
}

func TestFailuresAreNetworkErrors(t *testing.T) {
	_, err := newTestClient(&stubAPI{err: stderrors.New("throttled")}).GetAccountBalance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
	assert.Contains(t, err.Error(), "throttled")
}

func TestCreateHITWithHITTypeSendsIdempotencyToken(t *testing.T) {
	api := &stubAPI{}
	hit, err := newTestClient(api).CreateHITWithHITType(context.Background(), "T1", 9, 90*time.Minute, "<q/>")
	require.NoError(t, err)

	assert.Equal(t, "H1", hit.ID)
	assert.Equal(t, 9, hit.MaxAssignments)
	assert.Equal(t, int64(5400), aws.ToInt64(api.withType.LifetimeInSeconds))
	assert.Len(t, aws.ToString(api.withType.UniqueRequestToken), 36)
}

func TestToRequirements(t *testing.T) {
	reqs := []domain.ResolvedRequirement{
		{
			QualificationRequirement: domain.QualificationRequirement{
				Name:         domain.QualLocale,
				Comparator:   domain.ComparatorIn,
				LocaleValues: []domain.LocaleValue{{Country: "US", Subdivision: "NY"}, {Country: "CA"}},
			},
			TypeID: "00000000000000000071",
		},
		{
			QualificationRequirement: domain.QualificationRequirement{
				Name:          domain.QualAdult,
				Comparator:    domain.ComparatorEqualTo,
				IntegerValues: []int32{1},
			},
			TypeID: "00000000000000000060",
		},
	}

	got := toRequirements(reqs)
	require.Len(t, got, 2)
	assert.Equal(t, types.Comparator("In"), got[0].Comparator)
	require.Len(t, got[0].LocaleValues, 2)
	assert.Equal(t, "NY", aws.ToString(got[0].LocaleValues[0].Subdivision))
	assert.Nil(t, got[0].LocaleValues[1].Subdivision)
	assert.Equal(t, []int32{1}, got[1].IntegerValues)
	assert.Nil(t, toRequirements(nil))
}
