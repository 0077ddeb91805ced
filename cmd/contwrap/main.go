package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/clog/slag"
	charmlog "github.com/charmbracelet/log"
	"github.com/joshrwolf/contwrap/internal/config"
	"github.com/joshrwolf/contwrap/internal/generate"
	"github.com/joshrwolf/contwrap/internal/job"
	"github.com/joshrwolf/contwrap/internal/runtime"
	"github.com/joshrwolf/contwrap/internal/runtime/docker"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type options struct {
	logLevel   slag.Level
	configPath string

	runtime     string
	outputDir   string
	concurrency int

	cfg config.Config
}

// setupLogging configures logging for the command
func (o *options) setupLogging(ctx context.Context) context.Context {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           charmlog.Level(o.logLevel),
		ReportTimestamp: !isatty.IsTerminal(os.Stderr.Fd()),
	})
	ctx = clog.WithLogger(ctx, clog.New(l))
	slog.SetDefault(slog.New(l))
	return ctx
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		clog.FatalContextf(ctx, "error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "contwrap",
		Short:         "Generate PegasusLite snippets that run jobs in containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := opts.setupLogging(cmd.Context())
			cmd.SetContext(ctx)

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("runtime") {
				cfg.Runtime = opts.runtime
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Concurrency = opts.concurrency
			}
			opts.cfg = cfg
			clog.FromContext(ctx).Debug("loaded config", "runtime", cfg.Runtime, "concurrency", cfg.Concurrency)
			return nil
		},
	}

	rootCmd.PersistentFlags().Var(&opts.logLevel, "log-level", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/contwrap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.runtime, "runtime", "docker", "container runtime to wrap jobs with")

	generateCmd := &cobra.Command{
		Use:   "generate FILE...",
		Short: "Generate init, run and remove snippets for the jobs in FILE",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.generate(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
	generateCmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "write one <job>.sh per job into this directory")
	generateCmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 4, "jobs generated in parallel")

	preambleCmd := &cobra.Command{
		Use:   "preamble",
		Short: "Print the worker package preamble",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := opts.wrapper()
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), w.WorkerPackagePreamble())
			return err
		},
	}

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe the selected container runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := opts.wrapper()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (working directory %s)\n", w.Describe(), w.WorkingDirectory())
			return err
		},
	}

	rootCmd.AddCommand(generateCmd, preambleCmd, describeCmd)
	return rootCmd
}

// wrapper returns the initialized wrapper named by the configuration
func (o *options) wrapper() (runtime.Wrapper, error) {
	var w runtime.Wrapper
	switch o.cfg.Runtime {
	case "docker":
		w = docker.New()
	default:
		return nil, fmt.Errorf("unknown container runtime %q", o.cfg.Runtime)
	}

	w.Initialize(o.cfg.Session.Session())
	return w, nil
}

func (o *options) generate(ctx context.Context, out io.Writer, files []string) error {
	log := clog.FromContext(ctx)

	w, err := o.wrapper()
	if err != nil {
		return err
	}

	var jobs []*job.Job
	for _, path := range files {
		parsed, err := parseJobs(path)
		if err != nil {
			return err
		}
		log.Debug("parsed job file", "path", path, "jobs", len(parsed))
		jobs = append(jobs, parsed...)
	}

	frags, err := generate.Generate(ctx, w, jobs, generate.Options{Concurrency: o.cfg.Concurrency})
	if err != nil {
		return fmt.Errorf("generating snippets: %w", err)
	}
	log.Info("generated snippets", "jobs", len(frags), "runtime", w.Describe())

	if o.outputDir == "" {
		for _, f := range frags {
			if _, err := f.WriteTo(out); err != nil {
				return fmt.Errorf("writing job %s: %w", f.JobID, err)
			}
		}
		return nil
	}

	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	for _, f := range frags {
		if err := writeFragments(filepath.Join(o.outputDir, f.JobID+".sh"), f); err != nil {
			return err
		}
		log.Debug("wrote snippets", "job", f.JobID, "dir", o.outputDir)
	}
	return nil
}

func parseJobs(path string) ([]*job.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening job file: %w", err)
	}
	defer f.Close()

	jobs, err := job.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing job file %s: %w", path, err)
	}
	return jobs, nil
}

func writeFragments(path string, f generate.Fragments) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.WriteTo(file); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
