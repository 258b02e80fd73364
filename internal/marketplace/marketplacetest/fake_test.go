package marketplacetest

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/hitbatch/internal/errors"
)

func TestFakeFailsOnNthCall(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(now)
	f.FailOn("CreateHITWithHITType", 2, stderrors.New("throttled"))
	ctx := context.Background()

	h, err := f.CreateHITWithHITType(ctx, "T", 9, time.Hour, "q")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), h.Expiration)

	_, err = f.CreateHITWithHITType(ctx, "T", 9, time.Hour, "q")
	assert.True(t, errors.IsNetwork(err))

	require.NoError(t, f.CreateAdditionalAssignments(ctx, h.ID, 3))
	got, ok := f.HIT(h.ID)
	require.True(t, ok)
	assert.Equal(t, 12, got.MaxAssignments)
	assert.Equal(t, []string{"CreateHITWithHITType", "CreateHITWithHITType", "CreateAdditionalAssignmentsForHIT"}, f.Operations())
}
