// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
	"github.com/ochairo/enforcer/internal/domain/services"
)

// ErrMissingComponent is returned when a build request names no component
var ErrMissingComponent = errors.New("missing governance required property: 'component'")

// BuildRequest is one build invocation as reported by a build-tool integration.
// Dependencies holds the direct dependencies only, in build order.
type BuildRequest struct {
	Acronym          string
	Component        string
	ComponentVersion string
	Dependencies     []entities.Coordinate
	Source           entities.BuildSource
}

// Validate checks the request before any store access
func (r *BuildRequest) Validate() error {
	if strings.TrimSpace(r.Acronym) == "" {
		return services.ErrMissingAcronym
	}
	if strings.TrimSpace(r.Component) == "" {
		return ErrMissingComponent
	}
	for _, dep := range r.Dependencies {
		if err := dep.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EnforcementResult is the outcome of one build invocation.
// A denied dependency is a normal outcome reported through Failed.
type EnforcementResult struct {
	Request     *BuildRequest
	Build       *entities.Build
	Items       []*entities.BuildItem
	Denied      []entities.Coordinate
	Registered  []entities.Coordinate
	Infractions string
	Failed      bool
	Duration    time.Duration
}

// Err returns a *BuildFailure when the build must be aborted, nil otherwise
func (r *EnforcementResult) Err() error {
	if !r.Failed {
		return nil
	}
	failure := &BuildFailure{Infractions: r.Infractions}
	if r.Request != nil {
		failure.Acronym = r.Request.Acronym
		failure.Component = r.Request.Component
	}
	if r.Build != nil {
		failure.BuildID = r.Build.ID
	}
	return failure
}

// Summary returns a human-readable summary of the build verdict
func (r *EnforcementResult) Summary() string {
	allowed := len(r.Items) - len(r.Denied)
	if !r.Failed {
		return fmt.Sprintf("Governance passed: %d dependencies allowed", allowed)
	}
	return fmt.Sprintf("Governance failed: %d of %d dependencies denied\n%s",
		len(r.Denied), len(r.Items), r.Infractions)
}

// BuildFailure aborts the host build. Its message is the infractions text.
type BuildFailure struct {
	Acronym     string
	Component   string
	BuildID     int64
	Infractions string
}

func (e *BuildFailure) Error() string {
	return e.Infractions
}

// InfractionLine formats the infraction recorded for one denied dependency
func InfractionLine(c entities.Coordinate) string {
	return "\tUnauthorized Library Usage: " + c.String() + "\n"
}

// EnforcementOrchestratorConfig holds configuration for the orchestrator
type EnforcementOrchestratorConfig struct {
	Now func() time.Time
}

// EnforcementOrchestrator drives one build through usage resolution and
// records its bill of materials. Maven and Gradle integrations share it.
type EnforcementOrchestrator struct {
	store    repositories.PolicyStore
	resolver *services.UsageResolver
	logger   interfaces.Logger
	now      func() time.Time
}

// NewEnforcementOrchestrator creates a new enforcement orchestrator
func NewEnforcementOrchestrator(
	store repositories.PolicyStore,
	resolver *services.UsageResolver,
	logger interfaces.Logger,
	config EnforcementOrchestratorConfig,
) *EnforcementOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if resolver == nil {
		resolver = services.NewUsageResolver(store, logger)
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &EnforcementOrchestrator{store: store, resolver: resolver, logger: logger, now: now}
}

// Enforce evaluates every direct dependency of the build, persists the Build
// and its BuildItems in one transaction and reports the verdict. Store errors
// abort the invocation; denials are reported through the result.
func (o *EnforcementOrchestrator) Enforce(ctx context.Context, req *BuildRequest) (*EnforcementResult, error) {
	startTime := time.Now()
	result := &EnforcementResult{Request: req}

	// Step 1: Reject incomplete requests before touching the store
	if err := req.Validate(); err != nil {
		return result, err
	}

	// Step 2: Resolve project and component
	project, err := o.store.GetOrCreateProject(ctx, req.Acronym, o.now())
	if err != nil {
		o.logger.Error("project lookup failed", interfaces.F("acronym", req.Acronym), interfaces.Err(err))
		return result, fmt.Errorf("resolve project %s: %w", req.Acronym, err)
	}
	component, err := o.store.GetOrCreateComponent(ctx, project.ID, req.Component)
	if err != nil {
		o.logger.Error("component lookup failed",
			interfaces.F("acronym", req.Acronym),
			interfaces.F("component", req.Component),
			interfaces.Err(err))
		return result, fmt.Errorf("resolve component %s: %w", req.Component, err)
	}

	// Step 3: Decide every direct dependency, accumulating infractions and BOM rows
	var infractions strings.Builder
	for _, dep := range req.Dependencies {
		o.logger.Debug("validating dependency", interfaces.F("coordinate", dep.String()))

		decision, err := o.resolver.Resolve(ctx, project.ID, dep)
		if err != nil {
			return result, err
		}
		if decision.Registered {
			result.Registered = append(result.Registered, dep)
		}
		if !decision.Allowed {
			result.Denied = append(result.Denied, dep)
			infractions.WriteString(InfractionLine(dep))
		}
		result.Items = append(result.Items, &entities.BuildItem{
			Coordinate:     dep,
			StatusSnapshot: decision.StatusSnapshot,
			Allowed:        decision.Allowed,
		})
	}
	result.Infractions = infractions.String()
	result.Failed = len(result.Denied) > 0

	// Step 4: Persist the build and its bill of materials atomically
	build := &entities.Build{
		ProjectID:        project.ID,
		ComponentID:      component.ID,
		ComponentVersion: req.ComponentVersion,
		Timestamp:        o.now(),
		Infractions:      result.Infractions,
		Source:           req.Source,
	}
	err = o.store.WithTx(ctx, func(q repositories.Queries) error {
		id, err := q.CreateBuild(ctx, build)
		if err != nil {
			return fmt.Errorf("create build: %w", err)
		}
		build.ID = id
		for _, item := range result.Items {
			item.BuildID = id
			itemID, err := q.AddBuildItem(ctx, item)
			if err != nil {
				return fmt.Errorf("add build item %s: %w", item.Coordinate, err)
			}
			item.ID = itemID
		}
		return nil
	})
	if err != nil {
		o.logger.Error("failed to record build",
			interfaces.F("acronym", req.Acronym),
			interfaces.F("component", req.Component),
			interfaces.Err(err))
		return result, fmt.Errorf("record build: %w", err)
	}
	result.Build = build
	result.Duration = time.Since(startTime)

	// Step 5: Report the verdict
	if result.Failed {
		o.logger.Warn("governance failed",
			interfaces.F("acronym", req.Acronym),
			interfaces.F("component", req.Component),
			interfaces.F("build_id", build.ID),
			interfaces.F("denied", len(result.Denied)))
	} else {
		o.logger.Info("governance passed",
			interfaces.F("acronym", req.Acronym),
			interfaces.F("component", req.Component),
			interfaces.F("build_id", build.ID),
			interfaces.F("dependencies", len(result.Items)))
	}
	return result, nil
}
