package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/diewo77/invoice-pipeline/blob"
	"github.com/diewo77/invoice-pipeline/businessvalidate"
	"github.com/diewo77/invoice-pipeline/erp"
	"github.com/diewo77/invoice-pipeline/internal/assets"
	"github.com/diewo77/invoice-pipeline/internal/config"
	"github.com/diewo77/invoice-pipeline/internal/healthz"
	"github.com/diewo77/invoice-pipeline/internal/logging"
	"github.com/diewo77/invoice-pipeline/processor"
	"github.com/diewo77/invoice-pipeline/queue"
	"github.com/diewo77/invoice-pipeline/schematron"
	"github.com/diewo77/invoice-pipeline/store"
	"github.com/diewo77/invoice-pipeline/xsdvalidate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the worker pool and consume the invoice queue",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"}); err != nil {
		return err
	}
	log := logging.WithComponent("cmd.run")

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if err := assets.EnsureValidationAssets(cfg); err != nil {
		log.Error().Err(err).Msg("validation assets unavailable; continuing degraded")
	}

	hz := healthz.New(version)
	if cfg.HealthzAddr != "" {
		srv := &http.Server{Addr: cfg.HealthzAddr, Handler: hz}
		go func() {
			log.Info().Str("addr", cfg.HealthzAddr).Msg("healthz listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("healthz server stopped")
			}
		}()
	}

	metaDB, err := store.Connect(cfg.MetadataDSN)
	if err != nil {
		return err
	}
	erpDB, err := store.Connect(cfg.ERPDsn)
	if err != nil {
		return err
	}

	deps := buildDeps(cfg, metaDB, erpDB)
	driver := processor.New(deps)

	q := queue.NewMemQueue(queue.BackoffPolicy{
		Base:        cfg.RetryBaseDelay,
		Factor:      2,
		Cap:         cfg.RetryCapDelay,
		JitterFrac:  0.25,
		MaxAttempts: cfg.RetryMaxAttempts,
	}, cfg.WorkerConcurrency*4)

	hz.MarkReady()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	handler := func(taskCtx context.Context, task queue.Task) error {
		taskCtx, taskCancel := context.WithTimeout(taskCtx, cfg.TaskTimeout)
		defer taskCancel()
		return driver.Run(taskCtx, task.TransactionID)
	}

	// spec.md §6's worker-concurrency: WorkerConcurrency consumers race
	// on the same queue, each processing one task at a time — the same
	// bounded fan-out shape as pdf_splitter.go's errgroup.SetLimit, but
	// expressed as N long-lived Consume loops rather than N one-shot
	// tasks, since Consume itself is the long-running loop here.
	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		eg.Go(func() error {
			return q.Consume(egCtx, handler)
		})
	}

	log.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")
	err = eg.Wait()
	log.Info().Msg("worker shut down")
	if err != nil && ctx.Err() != nil {
		// Shutdown was requested; the consumers' context.Canceled
		// returns are expected, not a failure.
		return nil
	}
	return err
}

func buildDeps(cfg config.Config, metaDB, erpDB *gorm.DB) processor.Deps {
	erpAdapter := erp.New(erpDB)
	return processor.Deps{
		Metadata: store.NewMetadataStore(metaDB),
		// blob.NewMemStore is a per-process placeholder; a real
		// deployment wires cfg.BlobEndpoint to whichever object store
		// the environment provides — see DESIGN.md.
		Blob:        blob.NewMemStore(),
		XSD:         xsdvalidate.New(cfg.XSDSchemaDir),
		Schematron:  schematron.New(schematron.Config{JarPath: cfg.KositJarPath, ScenariosPath: cfg.KositScenariosPath, Timeout: cfg.KositTimeout}),
		Business:    businessvalidate.New(erpAdapter),
		Tolerance:   decimal.NewFromFloat(cfg.MonetaryTolerance),
		MaxAttempts: cfg.RetryMaxAttempts,
	}
}
