// Package cli defines the ekaya-patch command line: the HTTP server plus
// offline commands that list queries and generate patch files.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-patch/pkg/artifact"
	"github.com/ekaya-inc/ekaya-patch/pkg/audit"
	"github.com/ekaya-inc/ekaya-patch/pkg/config"
	"github.com/ekaya-inc/ekaya-patch/pkg/logging"
	"github.com/ekaya-inc/ekaya-patch/pkg/retry"
	"github.com/ekaya-inc/ekaya-patch/pkg/services"
	"github.com/ekaya-inc/ekaya-patch/pkg/storage"
)

// Env holds the components shared by every command.
type Env struct {
	Config   *config.Config
	Logger   *zap.Logger
	FS       afero.Fs
	Registry *services.QueryRegistry
	Store    storage.ArtifactStore
	Service  services.PatchService
}

// NewEnv loads the query templates, opens the output directory and builds
// the patch service.
func NewEnv(fs afero.Fs, cfg *config.Config, logger *zap.Logger) (*Env, error) {
	registry, err := services.LoadQueryRegistry(fs, cfg.Templates.Dir, logger)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewFileStore(fs, cfg.Output.Dir, logger)
	if err != nil {
		return nil, err
	}

	writeRetry := retry.DefaultConfig()
	writeRetry.MaxRetries = cfg.Output.WriteRetries

	service := services.NewPatchService(registry, artifact.NewAssembler(), store, audit.NewSecurityAuditor(logger), services.PatchServiceConfig{
		EnforceRequired: cfg.Generation.EnforceRequired,
		RejectInjection: cfg.Generation.RejectInjection,
		WriteRetry:      writeRetry,
	}, logger)

	return &Env{
		Config:   cfg,
		Logger:   logger,
		FS:       fs,
		Registry: registry,
		Store:    store,
		Service:  service,
	}, nil
}

// ServeFunc runs the HTTP server until ctx is done.
type ServeFunc func(ctx context.Context, env *Env) error

// Options configures the root command.
type Options struct {
	Version string
	// FS backs templates, output files and --values / --mass-file inputs.
	FS    afero.Fs
	Serve ServeFunc
}

// NewRootCommand builds the command tree. Without a subcommand the server runs.
func NewRootCommand(opts Options) *cobra.Command {
	var (
		configFile string
		env        *Env
	)

	root := &cobra.Command{
		Use:   "ekaya-patch",
		Short: "Generate SQL patch files from annotated query templates",
		Long: `ekaya-patch turns annotated SQL templates into patch files.

Templates declare their id, name and parameters in "-- @key: value" comments.
Patches are generated in unitary mode (large IN lists are split into batches
of 999 values) or in mass mode (one statement per line of a CSV file).

Run without arguments to start the HTTP server.`,
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configFile, opts.Version)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}

			env, err = NewEnv(opts.FS, cfg, logger)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if env != nil {
				_ = env.Logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.Serve(cmd.Context(), env)
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFile, "path to the YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.Serve(cmd.Context(), env)
			},
		},
		newListCommand(func() *Env { return env }),
		newGenerateCommand(func() *Env { return env }),
	)

	return root
}
