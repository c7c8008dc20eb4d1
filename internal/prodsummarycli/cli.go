package prodsummarycli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phillip-england/prodsummary/internal/archive"
	"github.com/phillip-england/prodsummary/internal/config"
	"github.com/phillip-england/prodsummary/internal/envutil"
	"github.com/phillip-england/prodsummary/internal/logging"
	"github.com/phillip-england/prodsummary/internal/pipeline"
	"github.com/phillip-england/prodsummary/internal/report"
	"github.com/phillip-england/prodsummary/internal/table"
)

var (
	ErrUsage = errors.New("usage")
	// ErrRunProblems is returned by run --fail-on-error when an archive failed or was blank.
	ErrRunProblems = errors.New("run finished with problems")
)

func Execute(args []string) error {
	return ExecuteWith(context.Background(), args, os.Stdout, os.Stderr)
}

func ExecuteWith(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: prodsummary setup --root-dir <dir> [--env-file .env] [--force]")
	fmt.Fprintln(w, "       prodsummary run [--config file.yaml] [--root-dir <dir>] [--fail-on-error]")
	fmt.Fprintln(w, "       prodsummary inspect <archive>")
}

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "prodsummary",
		Short:         "Turn POS archive exports into per-employee production summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageError()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})
	root.AddCommand(newSetupCommand(), newRunCommand(), newInspectCommand())
	return root
}

func usageError() error {
	return fmt.Errorf("%w: prodsummary <setup|run|inspect> [...]", ErrUsage)
}

// settings are the flags shared by every command that reads config.
type settings struct {
	configPath  string
	envFile     string
	rootDir     string
	outputDir   string
	workDir     string
	errorLog    string
	logLevel    string
	logFormat   string
	logoPath    string
	unknownName string
	failOnError bool
}

func (s *settings) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.envFile, "env-file", ".env", "path to .env file")
	f.StringVar(&s.rootDir, "root-dir", "", "directory holding the archives")
	f.StringVar(&s.outputDir, "output-dir", "", "directory for summary workbooks (default: root dir)")
	f.StringVar(&s.workDir, "work-dir", "", "scratch directory for extracted tables (default: <root>/.work)")
	f.StringVar(&s.errorLog, "error-log", "", "error log path (default: <root>/errorlog.txt)")
	f.StringVar(&s.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&s.logFormat, "log-format", "", "console or json")
	f.StringVar(&s.logoPath, "logo", "", "png, jpeg or webp logo for the report header")
	f.StringVar(&s.unknownName, "unknown-name", "", "name shown for employees missing from the employee table")
}

// apply overlays the flags the user actually set.
func (s *settings) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	set := func(name string, dst *string, value string) {
		if f.Changed(name) {
			*dst = value
		}
	}
	set("root-dir", &cfg.RootDir, s.rootDir)
	set("output-dir", &cfg.OutputDir, s.outputDir)
	set("work-dir", &cfg.WorkDir, s.workDir)
	set("error-log", &cfg.ErrorLog, s.errorLog)
	set("log-level", &cfg.Logging.Level, s.logLevel)
	set("log-format", &cfg.Logging.Format, s.logFormat)
	set("logo", &cfg.Report.LogoPath, s.logoPath)
	set("unknown-name", &cfg.Report.UnknownName, s.unknownName)
	if f.Lookup("fail-on-error") != nil && f.Changed("fail-on-error") {
		cfg.FailOnError = s.failOnError
	}
}

func (s *settings) load(cmd *cobra.Command) (*config.Config, error) {
	if err := envutil.LoadDotEnv(s.envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", s.envFile, err)
	}
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, err
	}
	s.apply(cmd, cfg)
	return cfg, nil
}

func newSetupCommand() *cobra.Command {
	var (
		s           settings
		force       bool
		writeConfig string
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a .env file for later runs",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.rootDir == "" {
				return fmt.Errorf("%w: --root-dir is required", ErrUsage)
			}
			cfg := config.DefaultConfig()
			s.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			values := map[string]string{
				config.EnvRootDir:   cfg.RootDir,
				config.EnvOutputDir: cfg.OutputDir,
				config.EnvWorkDir:   cfg.WorkDir,
				config.EnvErrorLog:  cfg.ErrorLog,
				config.EnvLogLevel:  cfg.Logging.Level,
				config.EnvLogFormat: cfg.Logging.Format,
			}
			if cfg.Report.LogoPath != "" {
				values[config.EnvLogoPath] = cfg.Report.LogoPath
			}
			if cmd.Flags().Changed("unknown-name") {
				values[config.EnvUnknownName] = cfg.Report.UnknownName
			}
			if err := envutil.WriteDotEnv(s.envFile, values, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", s.envFile)

			if writeConfig != "" {
				if err := cfg.Save(writeConfig); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", writeConfig)
			}
			return nil
		},
	}
	s.bind(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing env file")
	cmd.Flags().StringVar(&writeConfig, "write-config", "", "also write the settings as a YAML config file")
	return cmd
}

func newRunCommand() *cobra.Command {
	var s settings
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every archive in the root directory",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runID := uuid.NewString()
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			logger = logger.With(zap.String("run_id", runID))
			defer func() { _ = logger.Sync() }()

			orch, err := newOrchestrator(cfg, runID, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			summary, err := orch.Run(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if cfg.FailOnError && summary.HasProblems() {
				return fmt.Errorf("%w: %s", ErrRunProblems, summary)
			}
			return nil
		},
	}
	s.bind(cmd)
	cmd.Flags().StringVar(&s.configPath, "config", "", "YAML config file")
	cmd.Flags().BoolVar(&s.failOnError, "fail-on-error", false, "exit non-zero when any archive fails or is blank")
	return cmd
}

func newInspectCommand() *cobra.Command {
	var s settings
	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show what an archive would produce without writing or deleting anything",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: prodsummary inspect <archive>", ErrUsage)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.load(cmd)
			if err != nil {
				return err
			}
			name := filepath.Base(args[0])
			if dir := filepath.Dir(args[0]); dir != "." || cfg.RootDir == "" {
				cfg.RootDir = dir
			}
			if !archive.IsArchive(name) {
				return fmt.Errorf("%s: %w", name, archive.ErrUnsupportedArchive)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			// Inspect shares the work dir layout but must not collide with a live run.
			cfg.WorkDir = filepath.Join(cfg.WorkDir, "inspect-"+uuid.NewString())
			defer os.RemoveAll(cfg.WorkDir)

			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			orch, err := newOrchestrator(cfg, "", logger, io.Discard)
			if err != nil {
				return err
			}
			in, err := orch.Inspect(name)
			if err != nil {
				return err
			}
			return printInspection(cmd.OutOrStdout(), name, in, report.Options{UnknownName: cfg.Report.UnknownName})
		},
	}
	s.bind(cmd)
	cmd.Flags().StringVar(&s.configPath, "config", "", "YAML config file")
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%w: %s takes no arguments", ErrUsage, cmd.Name())
	}
	return nil
}

func newOrchestrator(cfg *config.Config, runID string, logger *zap.Logger, out io.Writer) (*pipeline.Orchestrator, error) {
	writer, err := report.NewWriter(report.Options{
		UnknownName: cfg.Report.UnknownName,
		LogoPath:    cfg.Report.LogoPath,
	})
	if err != nil {
		return nil, err
	}
	opts := pipeline.Options{
		RootDir:   cfg.RootDir,
		OutputDir: cfg.OutputDir,
		WorkDir:   cfg.WorkDir,
		RunID:     runID,
	}
	return pipeline.New(opts, archive.NewStore(), table.NewReader(), writer, pipeline.OSFileSystem{},
		pipeline.NewFileErrorLog(cfg.ErrorLog), logger, out), nil
}
