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

// UsageDecision is the verdict for one project/artifact pair
type UsageDecision struct {
	Artifact       *entities.Artifact
	Allowed        bool
	StatusSnapshot entities.Status
	// Registered is set when this lookup created the artifact
	Registered bool
}

// UsageResolver decides whether a project may consume an artifact.
// Artifacts are denied until approved for the project or promoted to GA.
type UsageResolver struct {
	queries repositories.Queries
	logger  interfaces.Logger
	now     func() time.Time
}

// NewUsageResolver creates a usage resolver reading through queries
func NewUsageResolver(queries repositories.Queries, logger interfaces.Logger) *UsageResolver {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &UsageResolver{queries: queries, logger: logger, now: time.Now}
}

// Resolve looks up the artifact at coordinate c and decides whether the
// project may use it. Unknown coordinates are registered as CREATED and denied.
func (r *UsageResolver) Resolve(ctx context.Context, projectID int64, c entities.Coordinate) (*UsageDecision, error) {
	artifact, err := r.queries.FindArtifact(ctx, c)
	if errors.Is(err, repositories.ErrNotFound) {
		registered, created, regErr := r.queries.RegisterArtifact(ctx, c, r.now())
		if regErr != nil {
			r.logger.Error("artifact registration failed",
				interfaces.F("coordinate", c.String()),
				interfaces.Err(regErr))
			return nil, fmt.Errorf("register artifact %s: %w", c, regErr)
		}
		if created {
			r.logger.Warn("created placeholder artifact that must be approved",
				interfaces.F("coordinate", c.String()),
				interfaces.F("artifact_id", registered.ID))
			return &UsageDecision{
				Artifact:       registered,
				Allowed:        false,
				StatusSnapshot: entities.StatusCreated,
				Registered:     true,
			}, nil
		}
		// Another build registered it first; judge the row it wrote.
		artifact = registered
	} else if err != nil {
		r.logger.Error("artifact lookup failed",
			interfaces.F("coordinate", c.String()),
			interfaces.Err(err))
		return nil, fmt.Errorf("find artifact %s: %w", c, err)
	}

	allowed, err := r.decide(ctx, projectID, artifact)
	if err != nil {
		return nil, err
	}

	return &UsageDecision{
		Artifact:       artifact,
		Allowed:        allowed,
		StatusSnapshot: artifact.Status,
	}, nil
}

func (r *UsageResolver) decide(ctx context.Context, projectID int64, artifact *entities.Artifact) (bool, error) {
	switch artifact.Status {
	case entities.StatusGA, entities.StatusDeprecated:
		return true, nil
	case entities.StatusRetired, entities.StatusCreated:
		return false, nil
	case entities.StatusLimited, entities.StatusLimitedDeprecated:
		var (
			ok  bool
			err error
		)
		if artifact.VendorLicensed {
			ok, err = r.queries.HasLicensed(ctx, projectID, artifact.ID)
		} else {
			ok, err = r.queries.HasAllowed(ctx, projectID, artifact.ID)
		}
		if err != nil {
			return false, fmt.Errorf("check approval for %s: %w", artifact.Coordinate, err)
		}
		return ok, nil
	default:
		r.logger.Warn("artifact has unknown status, denying",
			interfaces.F("coordinate", artifact.Coordinate.String()),
			interfaces.F("status", string(artifact.Status)))
		return false, nil
	}
}
