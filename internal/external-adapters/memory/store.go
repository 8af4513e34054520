// Package memory provides an in-memory PolicyStore for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

// Store is an in-memory PolicyStore. Transactions run against a copy of the
// data that replaces the original only when the callback succeeds.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

var _ repositories.PolicyStore = (*Store)(nil)

// NewStore returns an empty in-memory store
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// WithTx implements repositories.PolicyStore
func (s *Store) WithTx(ctx context.Context, fn func(q repositories.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	working := s.data.clone()
	if err := fn(working); err != nil {
		return err
	}
	s.data = working
	return nil
}

// Close implements repositories.PolicyStore
func (s *Store) Close() error { return nil }

func (s *Store) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// FindProjectByAcronym implements repositories.Queries
func (s *Store) FindProjectByAcronym(ctx context.Context, acronym string) (*entities.Project, error) {
	defer s.lock()()
	return s.data.FindProjectByAcronym(ctx, acronym)
}

// GetProject implements repositories.Queries
func (s *Store) GetProject(ctx context.Context, id int64) (*entities.Project, error) {
	defer s.lock()()
	return s.data.GetProject(ctx, id)
}

// GetComponent implements repositories.Queries
func (s *Store) GetComponent(ctx context.Context, id int64) (*entities.Component, error) {
	defer s.lock()()
	return s.data.GetComponent(ctx, id)
}

// GetOrCreateProject implements repositories.Queries
func (s *Store) GetOrCreateProject(ctx context.Context, acronym string, begin time.Time) (*entities.Project, error) {
	defer s.lock()()
	return s.data.GetOrCreateProject(ctx, acronym, begin)
}

// GetOrCreateComponent implements repositories.Queries
func (s *Store) GetOrCreateComponent(ctx context.Context, projectID int64, name string) (*entities.Component, error) {
	defer s.lock()()
	return s.data.GetOrCreateComponent(ctx, projectID, name)
}

// FindComponent implements repositories.Queries
func (s *Store) FindComponent(ctx context.Context, projectID int64, name string) (*entities.Component, error) {
	defer s.lock()()
	return s.data.FindComponent(ctx, projectID, name)
}

// ListProjects implements repositories.Queries
func (s *Store) ListProjects(ctx context.Context) ([]*entities.Project, error) {
	defer s.lock()()
	return s.data.ListProjects(ctx)
}

// ListComponents implements repositories.Queries
func (s *Store) ListComponents(ctx context.Context, projectID int64) ([]*entities.Component, error) {
	defer s.lock()()
	return s.data.ListComponents(ctx, projectID)
}

// DeleteComponentsByProject implements repositories.Queries
func (s *Store) DeleteComponentsByProject(ctx context.Context, projectID int64) (int64, error) {
	defer s.lock()()
	return s.data.DeleteComponentsByProject(ctx, projectID)
}

// DeleteProject implements repositories.Queries
func (s *Store) DeleteProject(ctx context.Context, projectID int64) error {
	defer s.lock()()
	return s.data.DeleteProject(ctx, projectID)
}

// FindArtifact implements repositories.Queries
func (s *Store) FindArtifact(ctx context.Context, c entities.Coordinate) (*entities.Artifact, error) {
	defer s.lock()()
	return s.data.FindArtifact(ctx, c)
}

// GetArtifact implements repositories.Queries
func (s *Store) GetArtifact(ctx context.Context, id int64) (*entities.Artifact, error) {
	defer s.lock()()
	return s.data.GetArtifact(ctx, id)
}

// GetArtifactForUpdate implements repositories.Queries
func (s *Store) GetArtifactForUpdate(ctx context.Context, id int64) (*entities.Artifact, error) {
	defer s.lock()()
	return s.data.GetArtifactForUpdate(ctx, id)
}

// RegisterArtifact implements repositories.Queries
func (s *Store) RegisterArtifact(ctx context.Context, c entities.Coordinate, created time.Time) (*entities.Artifact, bool, error) {
	defer s.lock()()
	return s.data.RegisterArtifact(ctx, c, created)
}

// CreateArtifact implements repositories.Queries
func (s *Store) CreateArtifact(ctx context.Context, a *entities.Artifact) (int64, error) {
	defer s.lock()()
	return s.data.CreateArtifact(ctx, a)
}

// SaveArtifact implements repositories.Queries
func (s *Store) SaveArtifact(ctx context.Context, a *entities.Artifact) error {
	defer s.lock()()
	return s.data.SaveArtifact(ctx, a)
}

// DeleteArtifact implements repositories.Queries
func (s *Store) DeleteArtifact(ctx context.Context, id int64) error {
	defer s.lock()()
	return s.data.DeleteArtifact(ctx, id)
}

// ListArtifacts implements repositories.Queries
func (s *Store) ListArtifacts(ctx context.Context, filter repositories.ArtifactFilter) ([]*entities.Artifact, error) {
	defer s.lock()()
	return s.data.ListArtifacts(ctx, filter)
}

// HasAllowed implements repositories.Queries
func (s *Store) HasAllowed(ctx context.Context, projectID, artifactID int64) (bool, error) {
	defer s.lock()()
	return s.data.HasAllowed(ctx, projectID, artifactID)
}

// HasLicensed implements repositories.Queries
func (s *Store) HasLicensed(ctx context.Context, projectID, artifactID int64) (bool, error) {
	defer s.lock()()
	return s.data.HasLicensed(ctx, projectID, artifactID)
}

// AddAllowed implements repositories.Queries
func (s *Store) AddAllowed(ctx context.Context, a *entities.AllowedArtifact) (int64, error) {
	defer s.lock()()
	return s.data.AddAllowed(ctx, a)
}

// AddLicensed implements repositories.Queries
func (s *Store) AddLicensed(ctx context.Context, l *entities.LicensedArtifact) (int64, error) {
	defer s.lock()()
	return s.data.AddLicensed(ctx, l)
}

// ListAllowed implements repositories.Queries
func (s *Store) ListAllowed(ctx context.Context, filter repositories.ApprovalFilter) ([]*entities.AllowedArtifact, error) {
	defer s.lock()()
	return s.data.ListAllowed(ctx, filter)
}

// ListLicensed implements repositories.Queries
func (s *Store) ListLicensed(ctx context.Context, filter repositories.ApprovalFilter) ([]*entities.LicensedArtifact, error) {
	defer s.lock()()
	return s.data.ListLicensed(ctx, filter)
}

// DeleteAllowed implements repositories.Queries
func (s *Store) DeleteAllowed(ctx context.Context, filter repositories.ApprovalFilter) (int64, error) {
	defer s.lock()()
	return s.data.DeleteAllowed(ctx, filter)
}

// DeleteLicensed implements repositories.Queries
func (s *Store) DeleteLicensed(ctx context.Context, filter repositories.ApprovalFilter) (int64, error) {
	defer s.lock()()
	return s.data.DeleteLicensed(ctx, filter)
}

// CopyAllowedToLicensed implements repositories.Queries
func (s *Store) CopyAllowedToLicensed(ctx context.Context, artifactID int64) (int64, error) {
	defer s.lock()()
	return s.data.CopyAllowedToLicensed(ctx, artifactID)
}

// CopyLicensedToAllowed implements repositories.Queries
func (s *Store) CopyLicensedToAllowed(ctx context.Context, artifactID int64) (int64, error) {
	defer s.lock()()
	return s.data.CopyLicensedToAllowed(ctx, artifactID)
}

// CreateBuild implements repositories.Queries
func (s *Store) CreateBuild(ctx context.Context, b *entities.Build) (int64, error) {
	defer s.lock()()
	return s.data.CreateBuild(ctx, b)
}

// AddBuildItem implements repositories.Queries
func (s *Store) AddBuildItem(ctx context.Context, item *entities.BuildItem) (int64, error) {
	defer s.lock()()
	return s.data.AddBuildItem(ctx, item)
}

// GetBuild implements repositories.Queries
func (s *Store) GetBuild(ctx context.Context, id int64) (*entities.Build, error) {
	defer s.lock()()
	return s.data.GetBuild(ctx, id)
}

// ListBuilds implements repositories.Queries
func (s *Store) ListBuilds(ctx context.Context, filter repositories.BuildFilter) ([]*entities.Build, error) {
	defer s.lock()()
	return s.data.ListBuilds(ctx, filter)
}

// ListBuildItems implements repositories.Queries
func (s *Store) ListBuildItems(ctx context.Context, buildID int64) ([]*entities.BuildItem, error) {
	defer s.lock()()
	return s.data.ListBuildItems(ctx, buildID)
}

// DeleteBuildsByProject implements repositories.Queries
func (s *Store) DeleteBuildsByProject(ctx context.Context, projectID int64) (int64, error) {
	defer s.lock()()
	return s.data.DeleteBuildsByProject(ctx, projectID)
}
