package orchestrators

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ochairo/enforcer/internal/domain/interfaces"
)

// DefaultReactorParallelism bounds concurrent module enforcement
const DefaultReactorParallelism = 4

// ReactorResult collects the per-module outcomes of a multi-module build
type ReactorResult struct {
	Modules []*EnforcementResult
}

// Failed reports whether any module was denied
func (r *ReactorResult) Failed() bool {
	for _, m := range r.Modules {
		if m.Failed {
			return true
		}
	}
	return false
}

// Err merges every module failure into one *BuildFailure
func (r *ReactorResult) Err() error {
	if !r.Failed() {
		return nil
	}
	var b strings.Builder
	merged := &BuildFailure{}
	for _, m := range r.Modules {
		if !m.Failed {
			continue
		}
		if merged.Acronym == "" && m.Request != nil {
			merged.Acronym = m.Request.Acronym
		}
		b.WriteString(m.Infractions)
	}
	merged.Infractions = b.String()
	return merged
}

// ValidateRequests checks every module request without touching the store
func ValidateRequests(reqs []*BuildRequest) error {
	for _, req := range reqs {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("module %s: %w", req.Component, err)
		}
	}
	return nil
}

// ReactorOrchestrator enforces every module of a reactor build as its own
// build invocation, running a bounded number of modules at once
type ReactorOrchestrator struct {
	enforcer    *EnforcementOrchestrator
	logger      interfaces.Logger
	parallelism int
}

// NewReactorOrchestrator creates a reactor orchestrator. A parallelism of zero
// or less uses DefaultReactorParallelism.
func NewReactorOrchestrator(enforcer *EnforcementOrchestrator, logger interfaces.Logger, parallelism int) *ReactorOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if parallelism <= 0 {
		parallelism = DefaultReactorParallelism
	}
	return &ReactorOrchestrator{enforcer: enforcer, logger: logger, parallelism: parallelism}
}

// EnforceAll runs Enforce for each request. Results keep the request order.
// The first store error cancels the modules still waiting to run.
func (o *ReactorOrchestrator) EnforceAll(ctx context.Context, reqs []*BuildRequest) (*ReactorResult, error) {
	if err := ValidateRequests(reqs); err != nil {
		return nil, err
	}

	results := make([]*EnforcementResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)

	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := o.enforcer.Enforce(gctx, req)
			if err != nil {
				return fmt.Errorf("module %s: %w", req.Component, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.logger.Info("reactor enforcement complete", interfaces.F("modules", len(reqs)))
	return &ReactorResult{Modules: results}, nil
}
