package batch

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/marketplace/marketplacetest"
)

type memStore struct {
	mu   sync.Mutex
	sets map[domain.Environment]*domain.BatchSet
	n    int
}

func newMemStore() *memStore {
	return &memStore{sets: map[domain.Environment]*domain.BatchSet{}}
}

func (s *memStore) Load(ctx context.Context, env domain.Environment) (*domain.BatchSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[env]
	if !ok {
		return nil, errors.NewNotFoundError("HITs for " + env.String())
	}
	return &domain.BatchSet{Batch: set.Batch, HITs: append([]domain.HIT(nil), set.HITs...)}, nil
}

func (s *memStore) Save(ctx context.Context, env domain.Environment, set *domain.BatchSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	s.sets[env] = &domain.BatchSet{Batch: set.Batch, HITs: append([]domain.HIT(nil), set.HITs...)}
	return nil
}

func (s *memStore) ids(env domain.Environment) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, h := range s.sets[env].HITs {
		ids = append(ids, h.ID)
	}
	return ids
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

const env = domain.EnvironmentSandbox

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *marketplacetest.Fake, *memStore, *recordingSleeper) {
	fake := marketplacetest.NewFake(testNow)
	store := newMemStore()
	sleeper := &recordingSleeper{}
	e := NewEngine(fake, store,
		WithPacer(NewPacer(DefaultCallDelay, sleeper)),
		WithClock(func() time.Time { return testNow }),
		WithLogger(zaptest.NewLogger(t)),
	)
	return e, fake, store, sleeper
}

func seed(fake *marketplacetest.Fake, store *memStore, batch bool, hits ...domain.HIT) {
	fake.Seed(hits...)
	store.sets[env] = &domain.BatchSet{Batch: batch, HITs: hits}
}

func TestCreateBatch(t *testing.T) {
	convey.Convey("Given an engine with a fresh environment", t, func() {
		e, fake, store, sleeper := newTestEngine(t)
		ctx := context.Background()

		convey.Convey("When 20 assignments are uploaded in batch mode", func() {
			set, err := e.CreateBatch(ctx, env, domain.HITTypeParams{Title: "t"}, 20, time.Hour, "<q/>")

			convey.Convey("Then three capped members are created under one type", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(set.Batch, convey.ShouldBeTrue)
				convey.So(len(set.HITs), convey.ShouldEqual, 3)
				convey.So(set.Capacity(), convey.ShouldEqual, 20)
				convey.So(fake.Operations(), convey.ShouldResemble, []string{
					"CreateHITType", "CreateHITWithHITType", "CreateHITWithHITType", "CreateHITWithHITType",
				})
			})

			convey.Convey("And each creation is preceded by the fixed delay", func() {
				convey.So(sleeper.waits, convey.ShouldResemble, []time.Duration{DefaultCallDelay, DefaultCallDelay, DefaultCallDelay})
			})

			convey.Convey("And the set is persisted", func() {
				convey.So(store.ids(env), convey.ShouldResemble, []string{"HIT1", "HIT2", "HIT3"})
			})
		})

		convey.Convey("When the second member fails", func() {
			fake.FailOn("CreateHITWithHITType", 2, stderrors.New("service unavailable"))
			_, err := e.CreateBatch(ctx, env, domain.HITTypeParams{Title: "t"}, 20, time.Hour, "<q/>")

			convey.Convey("Then the error is returned and no further calls are made", func() {
				convey.So(errors.IsNetwork(err), convey.ShouldBeTrue)
				convey.So(len(fake.Operations()), convey.ShouldEqual, 3)
			})

			convey.Convey("And the member that was created is persisted", func() {
				convey.So(store.ids(env), convey.ShouldResemble, []string{"HIT1"})
			})
		})
	})
}

func TestCreateSingle(t *testing.T) {
	e, fake, store, sleeper := newTestEngine(t)

	set, err := e.CreateSingle(context.Background(), env, domain.HITParams{MaxAssignments: 25, Lifetime: time.Hour})
	require.NoError(t, err)
	assert.False(t, set.Batch)
	assert.Equal(t, 25, set.HITs[0].MaxAssignments)
	assert.Equal(t, []string{"CreateHIT"}, fake.Operations())
	assert.Empty(t, sleeper.waits)
	assert.Equal(t, []string{"HIT1"}, store.ids(env))
}

func TestGrow(t *testing.T) {
	convey.Convey("Given a stored batch with a full member and a partial member", t, func() {
		e, fake, store, _ := newTestEngine(t)
		ctx := context.Background()
		seed(fake, store, true,
			domain.HIT{ID: "A", HITTypeID: "T", Question: "q", MaxAssignments: 9, Expiration: testNow.Add(500 * time.Second)},
			domain.HIT{ID: "B", HITTypeID: "T", Question: "q", MaxAssignments: 5, Expiration: testNow.Add(1000 * time.Second)},
		)

		convey.Convey("When 10 assignments are added", func() {
			report, err := e.Grow(ctx, env, 10)

			convey.Convey("Then the partial member is topped up and re-fetched before new members are created", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(fake.Operations(), convey.ShouldResemble, []string{
					"CreateAdditionalAssignmentsForHIT", "GetHIT", "CreateHITWithHITType",
				})
				convey.So(report.TopUp.MaxAssignments, convey.ShouldEqual, 9)
			})

			convey.Convey("And new members inherit the type, question and latest expiration", func() {
				created := report.Created[0]
				convey.So(created.MaxAssignments, convey.ShouldEqual, 6)
				convey.So(created.HITTypeID, convey.ShouldEqual, "T")
				convey.So(created.Question, convey.ShouldEqual, "q")
				convey.So(created.Expiration, convey.ShouldEqual, testNow.Add(1000*time.Second))
			})

			convey.Convey("And untouched members come first in the saved set", func() {
				convey.So(store.ids(env), convey.ShouldResemble, []string{"A", "B", "HIT1"})
				convey.So(store.sets[env].Capacity(), convey.ShouldEqual, 24)
			})
		})

		convey.Convey("When creating the new member fails", func() {
			fake.FailOn("CreateHITWithHITType", 1, stderrors.New("throttled"))
			_, err := e.Grow(ctx, env, 10)

			convey.Convey("Then the completed top-up is still persisted", func() {
				convey.So(errors.IsNetwork(err), convey.ShouldBeTrue)
				convey.So(store.ids(env), convey.ShouldResemble, []string{"A", "B"})
				convey.So(store.sets[env].HITs[1].MaxAssignments, convey.ShouldEqual, 9)
			})
		})

		convey.Convey("When the re-fetch after the top-up fails", func() {
			fake.FailOn("GetHIT", 1, stderrors.New("timeout"))
			_, err := e.Grow(ctx, env, 10)

			convey.Convey("Then the record carries the raised cap and nothing else is created", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(store.sets[env].HITs[1].MaxAssignments, convey.ShouldEqual, 9)
				convey.So(fake.Operations(), convey.ShouldNotContain, "CreateHITWithHITType")
			})
		})
	})
}

func TestGrowSingle(t *testing.T) {
	e, fake, store, _ := newTestEngine(t)
	seed(fake, store, false, domain.HIT{ID: "S", MaxAssignments: 20, Expiration: testNow.Add(time.Hour)})

	report, err := e.Grow(context.Background(), env, 15)
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateAdditionalAssignmentsForHIT", "GetHIT"}, fake.Operations())
	assert.Equal(t, 35, report.Set.HITs[0].MaxAssignments)
	assert.False(t, store.sets[env].Batch)
	assert.Equal(t, 35, store.sets[env].HITs[0].MaxAssignments)
}

func TestGrowWithoutUploadIsNotFound(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	_, err := e.Grow(context.Background(), env, 3)
	assert.True(t, errors.IsNotFound(err))
}

func TestExtend(t *testing.T) {
	convey.Convey("Given a batch with one finished and one running member", t, func() {
		e, fake, store, _ := newTestEngine(t)
		seed(fake, store, true,
			domain.HIT{ID: "A", MaxAssignments: 9, NumberCompleted: 9, Expiration: testNow.Add(-time.Hour)},
			domain.HIT{ID: "B", MaxAssignments: 9, NumberCompleted: 2, Expiration: testNow.Add(-500 * time.Second)},
		)

		convey.Convey("When an hour is added", func() {
			report, err := e.Extend(context.Background(), env, time.Hour)

			convey.Convey("Then only the running member is updated, counted from now", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(report.Applied), convey.ShouldEqual, 1)
				convey.So(report.Applied[0].HITID, convey.ShouldEqual, "B")
				convey.So(report.Applied[0].NewExpiration, convey.ShouldEqual, testNow.Add(time.Hour))
				convey.So(fake.Operations(), convey.ShouldResemble, []string{
					"GetHIT", "GetHIT", "UpdateExpirationForHIT",
				})
			})

			convey.Convey("And the refreshed records are written back", func() {
				saved := store.sets[env]
				convey.So(saved.HITs[0].Expiration, convey.ShouldEqual, testNow.Add(-time.Hour))
				convey.So(saved.HITs[1].Expiration, convey.ShouldEqual, testNow.Add(time.Hour))
			})
		})
	})
}

func TestExtendSingleIgnoresProgress(t *testing.T) {
	e, fake, store, _ := newTestEngine(t)
	seed(fake, store, false, domain.HIT{ID: "S", MaxAssignments: 3, NumberCompleted: 3, Expiration: testNow.Add(time.Hour)})

	report, err := e.Extend(context.Background(), env, time.Hour)
	require.NoError(t, err)
	require.Len(t, report.Applied, 1)
	assert.Equal(t, testNow.Add(2*time.Hour), report.Applied[0].NewExpiration)
}

func TestExpire(t *testing.T) {
	e, fake, store, _ := newTestEngine(t)
	seed(fake, store, true,
		domain.HIT{ID: "A", MaxAssignments: 9, Expiration: testNow.Add(time.Hour)},
		domain.HIT{ID: "B", MaxAssignments: 1, Expiration: testNow.Add(2 * time.Hour)},
	)

	set, err := e.Expire(context.Background(), env)
	require.NoError(t, err)
	for _, h := range set.HITs {
		assert.Equal(t, testNow, h.Expiration)
		remote, _ := fake.HIT(h.ID)
		assert.Equal(t, testNow, remote.Expiration)
	}
	assert.Empty(t, cmp.Diff(set.HITs, store.sets[env].HITs))
}

func TestExpireIsIdempotentOnRecords(t *testing.T) {
	e, fake, store, _ := newTestEngine(t)
	seed(fake, store, true, domain.HIT{ID: "A", MaxAssignments: 9, Expiration: testNow.Add(time.Hour)})

	first, err := e.Expire(context.Background(), env)
	require.NoError(t, err)
	second, err := e.Expire(context.Background(), env)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(first, second))
}

func TestRefresh(t *testing.T) {
	e, fake, store, _ := newTestEngine(t)
	seed(fake, store, true, domain.HIT{ID: "A", MaxAssignments: 9})
	fake.Seed(domain.HIT{ID: "A", MaxAssignments: 9, NumberCompleted: 4, NumberPending: 2})

	set, err := e.Refresh(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, 4, set.HITs[0].NumberCompleted)
	assert.Equal(t, 4, store.sets[env].HITs[0].NumberCompleted)
}
