package batch

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		total int
		want  []int
	}{
		{0, nil},
		{1, []int{1}},
		{9, []int{9}},
		{10, []int{9, 1}},
		{18, []int{9, 9}},
		{20, []int{9, 9, 2}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Plan(tt.total), "Plan(%d)", tt.total)
	}
}

func TestPlanBounds(t *testing.T) {
	for total := 1; total <= 100; total++ {
		sizes := Plan(total)
		sum := 0
		for i, s := range sizes {
			assert.True(t, s >= 1 && s <= domain.MaxBatchAssignments)
			if i < len(sizes)-1 {
				assert.Equal(t, domain.MaxBatchAssignments, s)
			}
			sum += s
		}
		assert.Equal(t, total, sum)
		assert.Len(t, sizes, (total+domain.MaxBatchAssignments-1)/domain.MaxBatchAssignments)
	}
}

func TestPlanGrowth(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	convey.Convey("Given a batch set with one member below the cap", t, func() {
		set := domain.NewBatchSet([]domain.HIT{
			{ID: "A", HITTypeID: "T", Question: "q", MaxAssignments: 9, Expiration: now.Add(-time.Hour)},
			{ID: "B", HITTypeID: "T", Question: "q", MaxAssignments: 5, Expiration: now.Add(1000 * time.Second)},
		})

		convey.Convey("When adding 10 assignments", func() {
			plan := PlanGrowth(set, 10, now)

			convey.Convey("Then the member is topped up to the cap first", func() {
				convey.So(plan.TopUp, convey.ShouldNotBeNil)
				convey.So(plan.TopUp.HITID, convey.ShouldEqual, "B")
				convey.So(plan.TopUp.Amount, convey.ShouldEqual, 4)
			})

			convey.Convey("And the remainder becomes a new batch expiring with the latest member", func() {
				convey.So(plan.NewSizes, convey.ShouldResemble, []int{6})
				convey.So(plan.Lifetime, convey.ShouldEqual, 1000*time.Second)
				convey.So(plan.Inherited, convey.ShouldBeTrue)
				convey.So(plan.Template.HITTypeID, convey.ShouldEqual, "T")
			})
		})

		convey.Convey("When adding fewer assignments than the free room", func() {
			plan := PlanGrowth(set, 2, now)

			convey.Convey("Then only the top-up is planned", func() {
				convey.So(plan.TopUp.Amount, convey.ShouldEqual, 2)
				convey.So(plan.NewSizes, convey.ShouldBeEmpty)
			})
		})
	})

	convey.Convey("Given a full batch set that has expired", t, func() {
		set := domain.NewBatchSet([]domain.HIT{
			{ID: "A", MaxAssignments: 9, Expiration: now.Add(-2 * time.Hour)},
			{ID: "B", MaxAssignments: 9, Expiration: now.Add(-time.Hour)},
		})

		convey.Convey("When adding 20 assignments", func() {
			plan := PlanGrowth(set, 20, now)

			convey.Convey("Then new batches run for the default four days", func() {
				convey.So(plan.TopUp, convey.ShouldBeNil)
				convey.So(plan.NewSizes, convey.ShouldResemble, []int{9, 9, 2})
				convey.So(plan.Lifetime, convey.ShouldEqual, 345600*time.Second)
				convey.So(plan.Inherited, convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given a batch set whose last member closes in a few seconds", t, func() {
		set := domain.NewBatchSet([]domain.HIT{
			{ID: "A", MaxAssignments: 9, Expiration: now.Add(-time.Hour)},
			{ID: "B", MaxAssignments: 9, Expiration: now.Add(1500 * time.Millisecond)},
		})

		convey.Convey("When adding 4 assignments", func() {
			plan := PlanGrowth(set, 4, now)

			convey.Convey("Then the new batch runs for the default four days", func() {
				convey.So(plan.NewSizes, convey.ShouldResemble, []int{4})
				convey.So(plan.Lifetime, convey.ShouldEqual, DefaultLifetime)
				convey.So(plan.Inherited, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When exactly the minimum window remains", func() {
			set.HITs[1].Expiration = now.Add(MinInheritedLifetime)
			plan := PlanGrowth(set, 4, now)

			convey.Convey("Then the window is inherited", func() {
				convey.So(plan.Lifetime, convey.ShouldEqual, MinInheritedLifetime)
				convey.So(plan.Inherited, convey.ShouldBeTrue)
			})
		})
	})
}

func TestPlanGrowthTopsUpFirstUnderCapMemberOnly(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	set := domain.NewBatchSet([]domain.HIT{
		{ID: "A", MaxAssignments: 3, Expiration: now.Add(time.Hour)},
		{ID: "B", MaxAssignments: 2, Expiration: now.Add(time.Hour)},
	})

	plan := PlanGrowth(set, 8, now)
	assert.Equal(t, &TopUp{HITID: "A", Amount: 6}, plan.TopUp)
	assert.Equal(t, []int{2}, plan.NewSizes)

	// the resulting capacity equals the old capacity plus what was added
	added := plan.TopUp.Amount
	for _, s := range plan.NewSizes {
		added += s
	}
	assert.Equal(t, 8, added)
}
