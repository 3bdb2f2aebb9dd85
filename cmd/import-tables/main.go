// Package main provides the table content importer: it validates a
// directory of YAML table definitions and upserts them into PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fable/internal/config"
	"github.com/cory-johannsen/fable/internal/engine/script"
	"github.com/cory-johannsen/fable/internal/engine/table"
	"github.com/cory-johannsen/fable/internal/observability"
	"github.com/cory-johannsen/fable/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	sourceDir := flag.String("source", "", "path to YAML table directory")
	scriptsDir := flag.String("scripts", "", "override for the generator scripts directory")
	flag.Parse()

	if *sourceDir == "" {
		fmt.Fprintln(os.Stderr, "usage: import-tables -source <dir> [-config <path>]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()

	// Generator-backed tables only validate against a loaded script set.
	if *scriptsDir != "" {
		cfg.Engine.ScriptsDir = *scriptsDir
	}
	scripts := script.NewManager(logger, cfg.Engine.ScriptInstructionLimit)
	defer scripts.Close()
	if cfg.Engine.ScriptsDir != "" {
		if err := scripts.LoadDirectory(cfg.Engine.ScriptsDir); err != nil {
			logger.Fatal("loading scripts", zap.Error(err))
		}
	}

	repo := postgres.NewTableRepository(pool.DB())
	start := time.Now()
	imported := 0

	entries, err := os.ReadDir(*sourceDir)
	if err != nil {
		logger.Fatal("reading source directory", zap.Error(err))
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(*sourceDir, name)

		// Validate before storing so the database never holds a
		// definition the loader would reject.
		tbl, err := table.LoadTableFromFile(path, scripts)
		if err != nil {
			logger.Fatal("invalid table file",
				zap.String("file", name),
				zap.Error(err),
			)
		}

		source, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal("reading table file", zap.String("file", name), zap.Error(err))
		}
		if _, err := repo.Upsert(ctx, tbl.Name, string(source), tbl.Enhanced()); err != nil {
			logger.Fatal("storing table",
				zap.String("table", tbl.Name),
				zap.Error(err),
			)
		}
		logger.Info("table imported",
			zap.String("table", tbl.Name),
			zap.Int("entries", len(tbl.Entries)),
			zap.Bool("enhanced", tbl.Enhanced()),
		)
		imported++
	}

	fmt.Printf("imported %d tables in %s\n", imported, time.Since(start).Round(time.Millisecond))
}
