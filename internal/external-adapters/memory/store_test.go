package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

var now = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(q repositories.Queries) error {
		if _, err := q.GetOrCreateProject(ctx, "ABC", now); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.FindProjectByAcronym(ctx, "ABC")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestWithTxCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewStore().WithTx(ctx, func(repositories.Queries) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegisterArtifactConverges(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	c := entities.Coordinate{Group: "com.x", Name: "libA", Version: "1.0"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[int64]bool{}
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, isNew, err := s.RegisterArtifact(ctx, c, now)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			ids[a.ID] = true
			if isNew {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, created)
}

func TestApprovalReferencesMustExist(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, err := s.AddAllowed(ctx, &entities.AllowedArtifact{ProjectID: 1, ArtifactID: 1})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestReturnedRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p, err := s.GetOrCreateProject(ctx, "ABC", now)
	require.NoError(t, err)

	p.Acronym = "MUTATED"
	again, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC", again.Acronym)
}
