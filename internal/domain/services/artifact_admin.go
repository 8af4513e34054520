package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

// ArtifactService is the administrative path for artifacts. Status changes go
// through the lifecycle state machine and vendor flag changes through the
// reclassifier, each inside one transaction with the artifact save.
type ArtifactService struct {
	store        repositories.PolicyStore
	lifecycle    *Lifecycle
	reclassifier *Reclassifier
	logger       interfaces.Logger
	now          func() time.Time
}

// NewArtifactService creates an artifact service
func NewArtifactService(store repositories.PolicyStore, lifecycle *Lifecycle, logger interfaces.Logger) *ArtifactService {
	if lifecycle == nil {
		lifecycle = NewLifecycle(LifecycleConfig{})
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ArtifactService{
		store:        store,
		lifecycle:    lifecycle,
		reclassifier: NewReclassifier(),
		logger:       logger,
		now:          lifecycle.now,
	}
}

// GetArtifact returns one artifact by id
func (s *ArtifactService) GetArtifact(ctx context.Context, id int64) (*entities.Artifact, error) {
	a, err := s.store.GetArtifact(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrArtifactNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %d: %w", id, err)
	}
	return a, nil
}

// FindArtifact returns the artifact at a coordinate
func (s *ArtifactService) FindArtifact(ctx context.Context, c entities.Coordinate) (*entities.Artifact, error) {
	a, err := s.store.FindArtifact(ctx, c)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, c)
	}
	if err != nil {
		return nil, fmt.Errorf("find artifact %s: %w", c, err)
	}
	return a, nil
}

// ListArtifacts returns artifacts matching filter
func (s *ArtifactService) ListArtifacts(ctx context.Context, filter repositories.ArtifactFilter) ([]*entities.Artifact, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown artifact status %q", filter.Status)
	}
	artifacts, err := s.store.ListArtifacts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return artifacts, nil
}

// ListVersions returns every known version of group:name, newest first.
// Versions that are not semantic versions sort after the others, lexically.
func (s *ArtifactService) ListVersions(ctx context.Context, group, name string) ([]*entities.Artifact, error) {
	artifacts, err := s.ListArtifacts(ctx, repositories.ArtifactFilter{Group: group, Name: name})
	if err != nil {
		return nil, err
	}
	SortByVersion(artifacts)
	return artifacts, nil
}

// SortByVersion orders artifacts by descending semantic version
func SortByVersion(artifacts []*entities.Artifact) {
	parsed := make(map[string]*semver.Version, len(artifacts))
	for _, a := range artifacts {
		if v, err := semver.NewVersion(a.Version); err == nil {
			parsed[a.Version] = v
		}
	}
	sort.SliceStable(artifacts, func(i, j int) bool {
		vi, iok := parsed[artifacts[i].Version]
		vj, jok := parsed[artifacts[j].Version]
		switch {
		case iok && jok:
			return vi.GreaterThan(vj)
		case iok != jok:
			return iok
		default:
			return artifacts[i].Version > artifacts[j].Version
		}
	})
}

// CreateArtifact registers a new artifact. An initial status other than
// CREATED must be reachable from CREATED and carry its authorization.
func (s *ArtifactService) CreateArtifact(ctx context.Context, a *entities.Artifact) (*entities.Artifact, error) {
	if err := a.Coordinate.Validate(); err != nil {
		return nil, err
	}
	created := *a
	if created.Status == "" {
		created.Status = entities.StatusCreated
	}
	created.CreatedDate = s.now()

	if created.Status != entities.StatusCreated {
		origin := &entities.Artifact{Coordinate: created.Coordinate, Status: entities.StatusCreated}
		if err := s.lifecycle.Apply(origin, &created); err != nil {
			return nil, err
		}
	}

	id, err := s.store.CreateArtifact(ctx, &created)
	if err != nil {
		s.logger.Error("artifact create failed",
			interfaces.F("coordinate", created.Coordinate.String()),
			interfaces.Err(err))
		return nil, fmt.Errorf("create artifact %s: %w", created.Coordinate, err)
	}
	created.ID = id

	s.logger.Info("artifact created",
		interfaces.F("coordinate", created.Coordinate.String()),
		interfaces.F("status", string(created.Status)))
	return &created, nil
}

// UpdateArtifact applies an administrative edit. The stored row is locked,
// the lifecycle transition validated and stamped, approvals migrated when the
// vendor flag flips, and the artifact saved, all in one transaction.
func (s *ArtifactService) UpdateArtifact(ctx context.Context, next *entities.Artifact) (*entities.Artifact, error) {
	var saved *entities.Artifact

	err := s.store.WithTx(ctx, func(q repositories.Queries) error {
		previous, err := q.GetArtifactForUpdate(ctx, next.ID)
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrArtifactNotFound, next.ID)
		}
		if err != nil {
			return fmt.Errorf("lock artifact %d: %w", next.ID, err)
		}

		updated := *next
		updated.CreatedDate = previous.CreatedDate
		if updated.Coordinate == (entities.Coordinate{}) {
			updated.Coordinate = previous.Coordinate
		}
		if err := updated.Coordinate.Validate(); err != nil {
			return err
		}

		if err := s.lifecycle.Apply(previous, &updated); err != nil {
			return err
		}

		if previous.VendorLicensed != updated.VendorLicensed {
			moved, err := s.reclassifier.Migrate(ctx, q, updated.ID, updated.VendorLicensed)
			if err != nil {
				return fmt.Errorf("reclassify artifact %s: %w", updated.Coordinate, err)
			}
			s.logger.Warn("approvals reclassified, vendor and contract details are not carried over",
				interfaces.F("coordinate", updated.Coordinate.String()),
				interfaces.F("vendor_licensed", updated.VendorLicensed),
				interfaces.F("moved", moved))
		}

		if err := q.SaveArtifact(ctx, &updated); err != nil {
			return fmt.Errorf("save artifact %s: %w", updated.Coordinate, err)
		}
		saved = &updated
		return nil
	})
	if err != nil {
		var te *TransitionError
		if !errors.As(err, &te) && !errors.Is(err, ErrArtifactNotFound) {
			s.logger.Error("artifact update failed",
				interfaces.F("artifact_id", next.ID),
				interfaces.Err(err))
		}
		return nil, err
	}

	s.logger.Info("artifact updated",
		interfaces.F("coordinate", saved.Coordinate.String()),
		interfaces.F("status", string(saved.Status)))
	return saved, nil
}

// DeleteArtifact removes an artifact together with its approvals
func (s *ArtifactService) DeleteArtifact(ctx context.Context, id int64) error {
	err := s.store.WithTx(ctx, func(q repositories.Queries) error {
		if _, err := q.GetArtifactForUpdate(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrArtifactNotFound, id)
			}
			return fmt.Errorf("lock artifact %d: %w", id, err)
		}
		filter := repositories.ApprovalFilter{ArtifactID: id}
		if _, err := q.DeleteAllowed(ctx, filter); err != nil {
			return fmt.Errorf("delete allowed approvals: %w", err)
		}
		if _, err := q.DeleteLicensed(ctx, filter); err != nil {
			return fmt.Errorf("delete licensed approvals: %w", err)
		}
		if err := q.DeleteArtifact(ctx, id); err != nil {
			return fmt.Errorf("delete artifact %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("artifact deleted", interfaces.F("artifact_id", id))
	return nil
}
