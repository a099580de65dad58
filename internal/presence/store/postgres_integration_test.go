//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatewarden/internal/presence"
	"gatewarden/internal/presence/store"
	id "gatewarden/pkg/domain"
	"gatewarden/pkg/testutil/containers"
)

type PostgresPresenceSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresPresenceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresPresenceSuite))
}

func (s *PostgresPresenceSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresPresenceSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "presence_states"))
}

func (s *PostgresPresenceSuite) TestMissingRowReadsOut() {
	state, err := s.store.Get(context.Background(), id.NewIdentityID())
	s.Require().NoError(err)
	s.Equal(presence.StatusOut, state.Status)
	s.True(state.LastTransitionAt.IsZero())
}

func (s *PostgresPresenceSuite) TestFlipAlternates() {
	ctx := context.Background()
	identityID := id.NewIdentityID()
	now := time.Now().UTC().Truncate(time.Microsecond)

	state, err := s.store.Flip(ctx, identityID, presence.StatusOut, now)
	s.Require().NoError(err)
	s.Equal(presence.StatusIn, state.Status)

	state, err = s.store.Flip(ctx, identityID, presence.StatusIn, now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(presence.StatusOut, state.Status)

	// A stale expectation must not flip.
	_, err = s.store.Flip(ctx, identityID, presence.StatusIn, now.Add(2*time.Minute))
	s.ErrorIs(err, store.ErrStaleState)

	count, err := s.store.CountIn(ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *PostgresPresenceSuite) TestConcurrentFlipSingleWinner() {
	ctx := context.Background()
	identityID := id.NewIdentityID()

	const goroutines = 20
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Flip(ctx, identityID, presence.StatusOut, time.Now().UTC())
			if err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "only one OUT->IN flip may win")

	count, err := s.store.CountIn(ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}
