package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ochairo/enforcer/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/enforcer/internal/domain-orchestrators"
	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/services"
)

// enforceFlags are shared by the maven and gradle commands
type enforceFlags struct {
	acronym     string
	component   string
	version     string
	file        string
	parallelism int
}

func (f *enforceFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.acronym, "acronym", "", "Project acronym the build belongs to (required)")
	fs.StringVar(&f.component, "component", "", "Component name (defaults to the module name in the report)")
	fs.StringVar(&f.version, "version", "", "Component version (defaults to the module version in the report)")
	fs.StringVarP(&f.file, "file", "f", "-", "Dependency report to read, - for stdin")
	fs.IntVar(&f.parallelism, "parallel", orchestrators.DefaultReactorParallelism, "Modules enforced concurrently")
}

// collector turns a build tool report into modules
type collector interface {
	Collect(r io.Reader) ([]*gateways.CollectedModule, error)
}

func newMavenCmd(a *app) *cobra.Command {
	var flags enforceFlags
	cmd := &cobra.Command{
		Use:   "maven",
		Short: "Enforce governance on a Maven dependency:tree report",
		Long: "Reads `mvn dependency:tree` output and enforces every module of the reactor\n" +
			"as its own build. Only direct dependencies are evaluated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.enforce(cmd, &flags, gateways.NewMavenCollector(), entities.SourceMaven)
		},
	}
	flags.register(cmd)
	return cmd
}

func newGradleCmd(a *app) *cobra.Command {
	var (
		flags         enforceFlags
		configuration string
	)
	cmd := &cobra.Command{
		Use:   "gradle",
		Short: "Enforce governance on a Gradle dependencies report",
		Long: "Reads `gradle dependencies` output and enforces the dependencies declared\n" +
			"directly in one configuration of every project in the report.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.enforce(cmd, &flags, gateways.NewGradleCollector(configuration), entities.SourceGradle)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&configuration, "configuration", gateways.DefaultGradleConfiguration, "Gradle configuration to enforce")
	// gradle dependencies does not report the project version
	cmd.Flags().Lookup("version").Usage = "Component version"
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func (a *app) enforce(cmd *cobra.Command, flags *enforceFlags, c collector, source entities.BuildSource) error {
	ctx := cmd.Context()
	if strings.TrimSpace(flags.acronym) == "" {
		return services.ErrMissingAcronym
	}

	r := a.in
	if flags.file != "" && flags.file != "-" {
		//nolint:gosec // G304: report path is supplied by the build
		f, err := os.Open(flags.file)
		if err != nil {
			return fmt.Errorf("open dependency report: %w", err)
		}
		//nolint:errcheck // Defer close
		defer f.Close()
		r = f
	}

	modules, err := c.Collect(r)
	if err != nil {
		return err
	}

	reqs := make([]*orchestrators.BuildRequest, 0, len(modules))
	for _, m := range modules {
		req := &orchestrators.BuildRequest{
			Acronym:          flags.acronym,
			Component:        m.Name,
			ComponentVersion: m.Version,
			Dependencies:     m.Dependencies,
			Source:           source,
		}
		if flags.component != "" && len(modules) == 1 {
			req.Component = flags.component
		}
		if flags.version != "" {
			req.ComponentVersion = flags.version
		}
		reqs = append(reqs, req)
	}

	// the store is opened only for well-formed requests
	if err := orchestrators.ValidateRequests(reqs); err != nil {
		return err
	}
	reactor, err := a.reactor(ctx, flags.parallelism)
	if err != nil {
		return err
	}
	result, err := reactor.EnforceAll(ctx, reqs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range result.Modules {
		fmt.Fprintf(out, "[%s] %s\n", m.Request.Component, firstLine(m.Summary()))
		for _, c := range m.Registered {
			fmt.Fprintf(out, "[%s] registered %s for review\n", m.Request.Component, c)
		}
	}
	return result.Err()
}
