package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
	"github.com/ochairo/enforcer/internal/external-adapters/memory"
)

func TestApprovalGrantSelectsPartition(t *testing.T) {
	f := newFixture(t)
	svc := NewApprovalService(f.store, nil)
	ctx := context.Background()
	open := f.artifact(t, coord("com.x", "open", "1.0"), entities.StatusLimited, false)
	vendor := f.artifact(t, coord("com.v", "paid", "1.0"), entities.StatusLimited, true)

	require.NoError(t, svc.Grant(ctx, Grant{Acronym: "ABC", Coordinate: open.Coordinate, Architect: "arch"}))
	require.NoError(t, svc.Grant(ctx, Grant{
		Acronym: "ABC", Coordinate: vendor.Coordinate, Architect: "arch", Vendor: "Acme", Contract: "C-42",
	}))

	approvals, err := svc.List(ctx, "ABC")
	require.NoError(t, err)
	require.Len(t, approvals.Allowed, 1)
	require.Len(t, approvals.Licensed, 1)
	assert.Equal(t, open.ID, approvals.Allowed[0].ArtifactID)
	assert.Equal(t, "Acme", approvals.Licensed[0].Vendor)
	assert.Equal(t, "C-42", approvals.Licensed[0].Contract)
	assert.NotNil(t, approvals.Licensed[0].ApprovalTS)

	resolver := NewUsageResolver(f.store, nil)
	for _, c := range []entities.Coordinate{open.Coordinate, vendor.Coordinate} {
		decision, err := resolver.Resolve(ctx, f.project.ID, c)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, c.String())
	}
}

func TestApprovalGrantErrors(t *testing.T) {
	f := newFixture(t)
	svc := NewApprovalService(f.store, nil)
	ctx := context.Background()
	open := f.artifact(t, coord("com.x", "open", "1.0"), entities.StatusLimited, false)

	tests := []struct {
		name    string
		grant   Grant
		wantErr error
	}{
		{"missing acronym", Grant{Coordinate: open.Coordinate, Architect: "arch"}, ErrMissingAcronym},
		{"unknown project", Grant{Acronym: "NOPE", Coordinate: open.Coordinate, Architect: "arch"}, ErrProjectNotFound},
		{"unknown artifact", Grant{Acronym: "ABC", Coordinate: coord("com.x", "nope", "1.0"), Architect: "arch"}, ErrArtifactNotFound},
		{"vendor details on open artifact", Grant{Acronym: "ABC", Coordinate: open.Coordinate, Architect: "arch", Vendor: "Acme"}, ErrWrongPartition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.Grant(ctx, tt.grant), tt.wantErr)
		})
	}

	assert.Error(t, svc.Grant(ctx, Grant{Acronym: "ABC", Coordinate: open.Coordinate}), "architect is required")
}

// txStore fails the test when approvals are written outside a transaction
// and records which artifacts were locked inside one
type txStore struct {
	*memory.Store
	t      *testing.T
	locked []int64
}

func (s *txStore) AddAllowed(ctx context.Context, a *entities.AllowedArtifact) (int64, error) {
	s.t.Error("AddAllowed called outside a transaction")
	return s.Store.AddAllowed(ctx, a)
}

func (s *txStore) AddLicensed(ctx context.Context, l *entities.LicensedArtifact) (int64, error) {
	s.t.Error("AddLicensed called outside a transaction")
	return s.Store.AddLicensed(ctx, l)
}

func (s *txStore) WithTx(ctx context.Context, fn func(q repositories.Queries) error) error {
	return s.Store.WithTx(ctx, func(q repositories.Queries) error {
		return fn(&lockingQueries{Queries: q, store: s})
	})
}

type lockingQueries struct {
	repositories.Queries
	store *txStore
}

func (q *lockingQueries) GetArtifactForUpdate(ctx context.Context, id int64) (*entities.Artifact, error) {
	q.store.locked = append(q.store.locked, id)
	return q.Queries.GetArtifactForUpdate(ctx, id)
}

func TestApprovalGrantLocksArtifactInTransaction(t *testing.T) {
	f := newFixture(t)
	store := &txStore{Store: f.store, t: t}
	svc := NewApprovalService(store, nil)
	ctx := context.Background()
	open := f.artifact(t, coord("com.x", "open", "1.0"), entities.StatusLimited, false)
	vendor := f.artifact(t, coord("com.v", "paid", "1.0"), entities.StatusLimited, true)

	require.NoError(t, svc.Grant(ctx, Grant{Acronym: "ABC", Coordinate: open.Coordinate, Architect: "arch"}))
	require.NoError(t, svc.Grant(ctx, Grant{Acronym: "ABC", Coordinate: vendor.Coordinate, Architect: "arch", Vendor: "Acme"}))
	assert.Equal(t, []int64{open.ID, vendor.ID}, store.locked)

	ok, err := f.store.HasAllowed(ctx, f.project.ID, open.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.store.HasLicensed(ctx, f.project.ID, vendor.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	err = svc.Grant(ctx, Grant{Acronym: "ABC", Coordinate: open.Coordinate, Architect: "arch", Contract: "C-9"})
	assert.ErrorIs(t, err, ErrWrongPartition)
	approvals, err := svc.List(ctx, "ABC")
	require.NoError(t, err)
	assert.Len(t, approvals.Allowed, 1, "a rejected grant writes nothing")
}

func TestApprovalRevoke(t *testing.T) {
	f := newFixture(t)
	svc := NewApprovalService(f.store, nil)
	ctx := context.Background()
	a := f.artifact(t, coord("com.x", "lib", "1.0"), entities.StatusLimited, false)
	f.allow(t, f.project.ID, a.ID)
	f.allow(t, f.project.ID, a.ID)
	f.license(t, f.project.ID, a.ID)
	f.allow(t, f.other.ID, a.ID)

	removed, err := svc.Revoke(ctx, "ABC", a.Coordinate)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	ok, err := f.store.HasAllowed(ctx, f.project.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.store.HasAllowed(ctx, f.other.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ok, "other projects keep their approvals")
}
