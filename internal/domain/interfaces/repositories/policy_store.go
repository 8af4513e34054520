// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/ochairo/enforcer/internal/domain/entities"
)

// Errors shared by every PolicyStore implementation
var (
	// ErrNotFound is returned by point lookups that match no row
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert collides with a natural key
	ErrConflict = errors.New("already exists")
)

// ArtifactFilter narrows ListArtifacts. Zero-valued fields are ignored.
type ArtifactFilter struct {
	Status       entities.Status
	Approver     string
	Group        string
	Name         string
	ApprovedFrom *time.Time // inclusive
	ApprovedTo   *time.Time // exclusive
	ProjectID    int64      // artifacts approved for the project in either partition
}

// ApprovalFilter selects approval rows by project, artifact or both.
// At least one field must be set for deletes.
type ApprovalFilter struct {
	ProjectID  int64
	ArtifactID int64
}

// BuildFilter narrows ListBuilds
type BuildFilter struct {
	ProjectID   int64
	ComponentID int64
}

// Queries is the set of row-level operations against the policy store.
// Every call is atomic on its own; multi-row sequences go through PolicyStore.WithTx.
type Queries interface {
	// Projects and components
	FindProjectByAcronym(ctx context.Context, acronym string) (*entities.Project, error)
	GetProject(ctx context.Context, id int64) (*entities.Project, error)
	GetComponent(ctx context.Context, id int64) (*entities.Component, error)
	GetOrCreateProject(ctx context.Context, acronym string, begin time.Time) (*entities.Project, error)
	GetOrCreateComponent(ctx context.Context, projectID int64, name string) (*entities.Component, error)
	FindComponent(ctx context.Context, projectID int64, name string) (*entities.Component, error)
	ListProjects(ctx context.Context) ([]*entities.Project, error)
	ListComponents(ctx context.Context, projectID int64) ([]*entities.Component, error)
	DeleteComponentsByProject(ctx context.Context, projectID int64) (int64, error)
	DeleteProject(ctx context.Context, projectID int64) error

	// Artifacts
	FindArtifact(ctx context.Context, c entities.Coordinate) (*entities.Artifact, error)
	GetArtifact(ctx context.Context, id int64) (*entities.Artifact, error)
	GetArtifactForUpdate(ctx context.Context, id int64) (*entities.Artifact, error)
	// RegisterArtifact inserts a CREATED artifact unless the coordinate already exists.
	// It reports whether this call created the row.
	RegisterArtifact(ctx context.Context, c entities.Coordinate, created time.Time) (*entities.Artifact, bool, error)
	CreateArtifact(ctx context.Context, a *entities.Artifact) (int64, error)
	SaveArtifact(ctx context.Context, a *entities.Artifact) error
	DeleteArtifact(ctx context.Context, id int64) error
	ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]*entities.Artifact, error)

	// Approval partitions
	HasAllowed(ctx context.Context, projectID, artifactID int64) (bool, error)
	HasLicensed(ctx context.Context, projectID, artifactID int64) (bool, error)
	AddAllowed(ctx context.Context, a *entities.AllowedArtifact) (int64, error)
	AddLicensed(ctx context.Context, l *entities.LicensedArtifact) (int64, error)
	ListAllowed(ctx context.Context, filter ApprovalFilter) ([]*entities.AllowedArtifact, error)
	ListLicensed(ctx context.Context, filter ApprovalFilter) ([]*entities.LicensedArtifact, error)
	DeleteAllowed(ctx context.Context, filter ApprovalFilter) (int64, error)
	DeleteLicensed(ctx context.Context, filter ApprovalFilter) (int64, error)
	// CopyAllowedToLicensed copies approver and timestamp; vendor and contract stay empty.
	CopyAllowedToLicensed(ctx context.Context, artifactID int64) (int64, error)
	// CopyLicensedToAllowed copies approver and timestamp; vendor and contract are dropped.
	CopyLicensedToAllowed(ctx context.Context, artifactID int64) (int64, error)

	// Builds
	CreateBuild(ctx context.Context, b *entities.Build) (int64, error)
	AddBuildItem(ctx context.Context, item *entities.BuildItem) (int64, error)
	GetBuild(ctx context.Context, id int64) (*entities.Build, error)
	ListBuilds(ctx context.Context, filter BuildFilter) ([]*entities.Build, error)
	ListBuildItems(ctx context.Context, buildID int64) ([]*entities.BuildItem, error)
	DeleteBuildsByProject(ctx context.Context, projectID int64) (int64, error)
}

// PolicyStore is the transactional relational store behind the engine
type PolicyStore interface {
	Queries

	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(q Queries) error) error

	// Close releases the underlying connections
	Close() error
}
