package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/enforcer/internal/domain-orchestrators"
	"github.com/ochairo/enforcer/internal/domain/interfaces"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
	"github.com/ochairo/enforcer/internal/domain/services"
	"github.com/ochairo/enforcer/internal/external-adapters/awssecrets"
	"github.com/ochairo/enforcer/internal/external-adapters/logging"
	"github.com/ochairo/enforcer/internal/external-adapters/sqlstore"
	yamlconfig "github.com/ochairo/enforcer/internal/external-adapters/yaml"
)

// storeOpener opens the policy store described by the resolved configuration
type storeOpener func(ctx context.Context, cfg *yamlconfig.Config, logger interfaces.Logger) (repositories.PolicyStore, error)

// app carries the process-wide state shared by every command
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	getenv func(string) string

	flags struct {
		config   string
		driver   string
		dsn      string
		logLevel string
	}

	cfg       *yamlconfig.Config
	logger    interfaces.Logger
	store     repositories.PolicyStore
	openStore storeOpener
	now       func() time.Time
}

func newApp(in io.Reader, out, errOut io.Writer, getenv func(string) string) *app {
	return &app{
		in:        in,
		out:       out,
		errOut:    errOut,
		getenv:    getenv,
		logger:    &interfaces.NoOpLogger{},
		openStore: openSQLStore,
		now:       time.Now,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "enforcer",
		Short: "Library governance decisions and build enforcement",
		Long: "enforcer keeps a governed catalogue of third-party libraries, decides whether a\n" +
			"project may use each dependency of a build and records every build's bill of materials.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.configure()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.config, "config", "", "Path to configuration file (default "+yamlconfig.DefaultConfigFile+")")
	f.StringVar(&a.flags.driver, "driver", "", "Database driver: sqlite, mysql or postgres")
	f.StringVar(&a.flags.dsn, "dsn", "", "Database connection string")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(newMavenCmd(a))
	root.AddCommand(newGradleCmd(a))
	root.AddCommand(newArtifactCmd(a))
	root.AddCommand(newApprovalCmd(a))
	root.AddCommand(newProjectCmd(a))
	root.AddCommand(newBuildCmd(a))
	root.AddCommand(newDBCmd(a))
	return root
}

// configure loads the configuration file, applies flag overrides and sets up logging
func (a *app) configure() error {
	cfg, err := yamlconfig.NewConfigParserWithEnv(a.getenv).Load(a.flags.config)
	if err != nil {
		return err
	}
	if a.flags.driver != "" {
		cfg.Database.Driver = a.flags.driver
	}
	if a.flags.dsn != "" {
		cfg.Database.DSN = a.flags.dsn
		cfg.Database.DSNSecret = ""
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(level, cfg.Log.Format, a.errOut).With("enforcer")
	return nil
}

// policyStore opens the store on first use
func (a *app) policyStore(ctx context.Context) (repositories.PolicyStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := a.openStore(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close policy store", interfaces.Err(err))
	}
	a.store = nil
}

func (a *app) lifecycle() *services.Lifecycle {
	return services.NewLifecycle(services.LifecycleConfig{
		DeprecationWindowMonths: a.cfg.Lifecycle.DeprecationWindowMonths,
		Now:                     a.now,
	})
}

func (a *app) artifactService(ctx context.Context) (*services.ArtifactService, error) {
	store, err := a.policyStore(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewArtifactService(store, a.lifecycle(), a.logger), nil
}

func (a *app) approvalService(ctx context.Context) (*services.ApprovalService, error) {
	store, err := a.policyStore(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewApprovalService(store, a.logger), nil
}

func (a *app) projectService(ctx context.Context) (*services.ProjectService, error) {
	store, err := a.policyStore(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewProjectService(store, a.logger), nil
}

func (a *app) reactor(ctx context.Context, parallelism int) (*orchestrators.ReactorOrchestrator, error) {
	store, err := a.policyStore(ctx)
	if err != nil {
		return nil, err
	}
	enforcer := orchestrators.NewEnforcementOrchestrator(store, nil, a.logger,
		orchestrators.EnforcementOrchestratorConfig{Now: a.now})
	return orchestrators.NewReactorOrchestrator(enforcer, a.logger, parallelism), nil
}

// openSQLStore resolves the DSN, from Secrets Manager when configured, and opens the SQL store
func openSQLStore(ctx context.Context, cfg *yamlconfig.Config, logger interfaces.Logger) (repositories.PolicyStore, error) {
	dsn := cfg.Database.DSN
	if cfg.Database.DSNSecret != "" {
		resolver, err := awssecrets.NewDSNResolver(ctx, logger)
		if err != nil {
			return nil, err
		}
		if dsn, err = resolver.Resolve(ctx, cfg.Database.DSNSecret); err != nil {
			return nil, fmt.Errorf("resolve database dsn: %w", err)
		}
	}
	return sqlstore.Open(ctx, sqlstore.Config{
		Driver:       cfg.Database.Driver,
		DSN:          dsn,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, logger)
}
