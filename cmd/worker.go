package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/application/service"
	"dgsync/internal/application/worker"
	"dgsync/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type workerOptions struct {
	once    bool
	targets []int64
}

func newWorkerCmd() *cobra.Command {
	var opts workerOptions

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the scheduled embedding sync",
		Long: `Run the embedding sync worker.

On every tick of worker.schedule the worker proposes the "embedding" sync
task for each configured space and, when it wins the lease, embeds the
space's content that has no embedding yet. Spaces whose lease is held by
another worker or that are not due are skipped.

Use --once to run a single pass and exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.once, "once", false, "Run one sync pass and exit")
	cmd.Flags().Int64SliceVar(&opts.targets, "target", nil, "Space id to sync; overrides worker.targets")
	return cmd
}

// workerID returns the configured id, or a host-derived unique id.
func workerID(cfg *config.Config) string {
	if cfg.Worker.ID != "" {
		return cfg.Worker.ID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	id := host + "-" + uuid.NewString()[:8]
	if len(id) > 100 {
		id = id[len(id)-100:]
	}
	return id
}

func runWorker(parent context.Context, cfg *config.Config, opts workerOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	if cfg.Worker.Function != service.EmbeddingSyncFunction {
		return fmt.Errorf("unsupported sync function %q", cfg.Worker.Function)
	}
	targets := cfg.Worker.Targets
	if len(opts.targets) > 0 {
		targets = opts.targets
	}
	if len(targets) == 0 {
		return fmt.Errorf("no sync targets: set worker.targets or pass --target")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := NewServiceFactory(cfg)
	defer factory.Close()

	id := workerID(cfg)
	services, err := factory.CreateServices(ctx, id)
	if err != nil {
		return err
	}

	syncWorker, err := worker.NewSyncWorker(services.EmbeddingSync, worker.SyncWorkerConfig{
		Schedule:    cfg.Worker.Schedule,
		Targets:     targets,
		Concurrency: cfg.Worker.Concurrency,
	})
	if err != nil {
		return err
	}

	if opts.once {
		summary := syncWorker.RunOnce(ctx)
		slogger.Info(ctx, "Sync pass finished", slogger.Fields3(
			"worker", id,
			"acquired", summary.Acquired(),
			"failed", summary.Failed(),
		))
		if summary.Failed() > 0 {
			return fmt.Errorf("%d of %d targets failed", summary.Failed(), len(summary.Results))
		}
		return nil
	}

	if err := syncWorker.Start(ctx); err != nil {
		return err
	}
	slogger.Info(ctx, "Sync worker started", slogger.Fields3(
		"worker", id,
		"schedule", cfg.Worker.Schedule,
		"targets", targets,
	))

	<-ctx.Done()
	syncWorker.Stop()
	slogger.InfoNoCtx("Sync worker stopped", slogger.Field("worker", id))
	return nil
}

func init() { //nolint:gochecknoinits // cobra command registration
	rootCmd.AddCommand(newWorkerCmd())
}
