// Reconcile runner: drains the staging database into the content store, once
// or on an interval. Per-item failures are logged and swept, never fatal.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doclink/pkg/recon"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	maxItems := flag.Int("max-items", recon.DefaultMaxItems, "Maximum staged rows per run (docs + links)")
	interval := flag.Duration("interval", 0, "Run every interval (0 = run once and exit)")
	prod := flag.Bool("prod", false, "JSON production logging")
	flag.Parse()

	logger := mustLogger(*prod)
	defer logger.Sync()

	content := mustOpenDB(os.Getenv("DB_DSN"), "DB_DSN")
	stagingDSN := os.Getenv("STAGING_DB_DSN")
	if stagingDSN == "" {
		stagingDSN = os.Getenv("DB_DSN")
	}
	staging := mustOpenDB(stagingDSN, "STAGING_DB_DSN")

	engine := recon.NewEngine(content, staging, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOnce(ctx, engine, *maxItems, logger)
	if *interval <= 0 {
		return
	}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infow("shutting down")
			return
		case <-ticker.C:
			runOnce(ctx, engine, *maxItems, logger)
		}
	}
}

func runOnce(ctx context.Context, engine *recon.Engine, maxItems int, logger *zap.SugaredLogger) {
	res, err := engine.Reconcile(ctx, maxItems)
	if err != nil {
		logger.Errorw("reconcile run failed", "error", err)
		return
	}
	logger.Infow("reconcile run complete",
		"docs_merged", res.DocsMerged, "docs_failed", res.DocsFailed,
		"links_merged", res.LinksMerged, "links_failed", res.LinksFailed,
		"link_anomalies", res.LinkAnomalies,
		"file_paths_swept", res.FilePathsSwept, "docs_swept", res.DocsSwept, "links_swept", res.LinksSwept)
}

func mustLogger(prod bool) *zap.SugaredLogger {
	var l *zap.Logger
	var err error
	if prod {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	return l.Sugar()
}

func mustOpenDB(dsn, name string) *gorm.DB {
	if dsn == "" {
		log.Fatalf("%s must be set in environment to run this tool", name)
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}
