package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

// Grant names the project, artifact and approver of an approval record.
// Vendor and Contract only apply to vendor-licensed artifacts.
type Grant struct {
	Acronym    string
	Coordinate entities.Coordinate
	Architect  string
	Vendor     string
	Contract   string
}

// Approvals lists both approval partitions of a project
type Approvals struct {
	Project  *entities.Project
	Allowed  []*entities.AllowedArtifact
	Licensed []*entities.LicensedArtifact
}

// ApprovalService grants and revokes project approvals
type ApprovalService struct {
	store  repositories.PolicyStore
	logger interfaces.Logger
	now    func() time.Time
}

// NewApprovalService creates an approval service
func NewApprovalService(store repositories.PolicyStore, logger interfaces.Logger) *ApprovalService {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ApprovalService{store: store, logger: logger, now: time.Now}
}

// Grant records an approval in the partition matching the artifact's vendor flag.
// The flag is read under a row lock in the same transaction as the insert.
func (s *ApprovalService) Grant(ctx context.Context, g Grant) error {
	if g.Architect == "" {
		return errors.New("approving architect is required")
	}
	if err := g.Coordinate.Validate(); err != nil {
		return err
	}
	ts := s.now()

	var project *entities.Project
	var artifact *entities.Artifact
	err := s.store.WithTx(ctx, func(q repositories.Queries) error {
		var err error
		project, artifact, err = resolveIn(ctx, q, g.Acronym, g.Coordinate)
		if err != nil {
			return err
		}
		artifact, err = q.GetArtifactForUpdate(ctx, artifact.ID)
		if err != nil {
			return fmt.Errorf("lock artifact %s: %w", g.Coordinate, err)
		}

		if artifact.VendorLicensed {
			_, err = q.AddLicensed(ctx, &entities.LicensedArtifact{
				ArtifactID:        artifact.ID,
				ProjectID:         project.ID,
				Vendor:            g.Vendor,
				Contract:          g.Contract,
				ApprovalArchitect: g.Architect,
				ApprovalTS:        &ts,
			})
		} else {
			if g.Vendor != "" || g.Contract != "" {
				return fmt.Errorf("%w: %s is not vendor licensed", ErrWrongPartition, artifact.Coordinate)
			}
			_, err = q.AddAllowed(ctx, &entities.AllowedArtifact{
				ArtifactID:        artifact.ID,
				ProjectID:         project.ID,
				ApprovalArchitect: g.Architect,
				ApprovalTS:        &ts,
			})
		}
		if err != nil {
			return fmt.Errorf("grant %s to %s: %w", artifact.Coordinate, project.Acronym, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("approval granted",
		interfaces.F("acronym", project.Acronym),
		interfaces.F("coordinate", artifact.Coordinate.String()),
		interfaces.F("vendor_licensed", artifact.VendorLicensed),
		interfaces.F("architect", g.Architect))
	return nil
}

// Revoke deletes every approval the project holds for the artifact, in both
// partitions, and returns how many rows were removed
func (s *ApprovalService) Revoke(ctx context.Context, acronym string, c entities.Coordinate) (int64, error) {
	project, artifact, err := s.resolve(ctx, acronym, c)
	if err != nil {
		return 0, err
	}
	filter := repositories.ApprovalFilter{ProjectID: project.ID, ArtifactID: artifact.ID}

	var removed int64
	err = s.store.WithTx(ctx, func(q repositories.Queries) error {
		n, err := q.DeleteAllowed(ctx, filter)
		if err != nil {
			return fmt.Errorf("revoke allowed: %w", err)
		}
		m, err := q.DeleteLicensed(ctx, filter)
		if err != nil {
			return fmt.Errorf("revoke licensed: %w", err)
		}
		removed = n + m
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("approval revoked",
		interfaces.F("acronym", project.Acronym),
		interfaces.F("coordinate", artifact.Coordinate.String()),
		interfaces.F("removed", removed))
	return removed, nil
}

// List returns the approvals a project holds
func (s *ApprovalService) List(ctx context.Context, acronym string) (*Approvals, error) {
	project, err := findProject(ctx, s.store, acronym)
	if err != nil {
		return nil, err
	}
	filter := repositories.ApprovalFilter{ProjectID: project.ID}

	allowed, err := s.store.ListAllowed(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list allowed: %w", err)
	}
	licensed, err := s.store.ListLicensed(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list licensed: %w", err)
	}
	return &Approvals{Project: project, Allowed: allowed, Licensed: licensed}, nil
}

func (s *ApprovalService) resolve(ctx context.Context, acronym string, c entities.Coordinate) (*entities.Project, *entities.Artifact, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	return resolveIn(ctx, s.store, acronym, c)
}

func resolveIn(ctx context.Context, q repositories.Queries, acronym string, c entities.Coordinate) (*entities.Project, *entities.Artifact, error) {
	project, err := findProject(ctx, q, acronym)
	if err != nil {
		return nil, nil, err
	}
	artifact, err := q.FindArtifact(ctx, c)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, c)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find artifact %s: %w", c, err)
	}
	return project, artifact, nil
}

func findProject(ctx context.Context, q repositories.Queries, acronym string) (*entities.Project, error) {
	if acronym == "" {
		return nil, ErrMissingAcronym
	}
	project, err := q.FindProjectByAcronym(ctx, acronym)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, acronym)
	}
	if err != nil {
		return nil, fmt.Errorf("find project %s: %w", acronym, err)
	}
	return project, nil
}
