package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

// BuildReport is a persisted build with its BOM rows and owners
type BuildReport struct {
	Project   *entities.Project
	Component *entities.Component
	Build     *entities.Build
	Items     []*entities.BuildItem
}

// ProjectService reads build history and removes projects
type ProjectService struct {
	store  repositories.PolicyStore
	logger interfaces.Logger
}

// NewProjectService creates a project service
func NewProjectService(store repositories.PolicyStore, logger interfaces.Logger) *ProjectService {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ProjectService{store: store, logger: logger}
}

// ListProjects returns every project ordered by acronym
func (s *ProjectService) ListProjects(ctx context.Context) ([]*entities.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListComponents returns the components of a project
func (s *ProjectService) ListComponents(ctx context.Context, acronym string) ([]*entities.Component, error) {
	project, err := findProject(ctx, s.store, acronym)
	if err != nil {
		return nil, err
	}
	components, err := s.store.ListComponents(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list components of %s: %w", acronym, err)
	}
	return components, nil
}

// ListBuilds returns a project's builds, newest first. A non-empty component
// narrows the list to that component.
func (s *ProjectService) ListBuilds(ctx context.Context, acronym, component string) ([]*entities.Build, error) {
	project, err := findProject(ctx, s.store, acronym)
	if err != nil {
		return nil, err
	}
	filter := repositories.BuildFilter{ProjectID: project.ID}

	if component != "" {
		c, err := s.store.FindComponent(ctx, project.ID, component)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find component %s: %w", component, err)
		}
		filter.ComponentID = c.ID
	}

	builds, err := s.store.ListBuilds(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list builds of %s: %w", acronym, err)
	}
	return builds, nil
}

// GetBuild returns one build and its items ordered by group and name
func (s *ProjectService) GetBuild(ctx context.Context, id int64) (*BuildReport, error) {
	build, err := s.store.GetBuild(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrBuildNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get build %d: %w", id, err)
	}
	project, err := s.store.GetProject(ctx, build.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project of build %d: %w", id, err)
	}
	component, err := s.store.GetComponent(ctx, build.ComponentID)
	if err != nil {
		return nil, fmt.Errorf("get component of build %d: %w", id, err)
	}
	items, err := s.store.ListBuildItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list items of build %d: %w", id, err)
	}
	return &BuildReport{Project: project, Component: component, Build: build, Items: items}, nil
}

// DeleteProject removes a project with its builds, components and approvals
func (s *ProjectService) DeleteProject(ctx context.Context, acronym string) error {
	project, err := findProject(ctx, s.store, acronym)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(q repositories.Queries) error {
		builds, err := q.DeleteBuildsByProject(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("delete builds: %w", err)
		}
		components, err := q.DeleteComponentsByProject(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("delete components: %w", err)
		}
		filter := repositories.ApprovalFilter{ProjectID: project.ID}
		if _, err := q.DeleteAllowed(ctx, filter); err != nil {
			return fmt.Errorf("delete allowed approvals: %w", err)
		}
		if _, err := q.DeleteLicensed(ctx, filter); err != nil {
			return fmt.Errorf("delete licensed approvals: %w", err)
		}
		if err := q.DeleteProject(ctx, project.ID); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		s.logger.Info("project deleted",
			interfaces.F("acronym", acronym),
			interfaces.F("builds", builds),
			interfaces.F("components", components))
		return nil
	})
	if err != nil {
		s.logger.Error("project delete failed",
			interfaces.F("acronym", acronym),
			interfaces.Err(err))
		return err
	}
	return nil
}
