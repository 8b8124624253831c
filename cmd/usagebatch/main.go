// Package main provides the batch report command: one pass over a
// filtered log produces a workbook sheet for every institution on the
// roster.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"usagestats/internal/config"
	"usagestats/internal/iptable"
	"usagestats/internal/logfilter"
	"usagestats/internal/logger"
	"usagestats/internal/manifest"
	"usagestats/internal/report"
	"usagestats/internal/runner"
	"usagestats/pkg/utils"
)

func main() {
	// 1. Define Command-Line Flags
	// ---------------------------
	configFile := flag.String("config", "", "Path to YAML configuration file")
	rosterPath := flag.String("roster", "", "Institution roster file (overrides config)")
	workers := flag.Int("workers", 0, "Concurrent institution passes (overrides config)")

	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: usagebatch [OPTIONS] <filtered log>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logsPath := flag.Arg(0)

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *rosterPath == "" {
		*rosterPath = cfg.Roster
	}

	if *workers == 0 {
		*workers = cfg.GetWorkers()
	}

	log := logger.NewLogger(cfg.Logging.Level)

	log.Info("🚀 Starting batch report")
	log.Info(fmt.Sprintf("📍 Source: %s", logsPath))
	log.Info(fmt.Sprintf("🎯 Roster: %s", *rosterPath))

	startTime := time.Now()

	// 2. Verify the artifact manifest when one exists
	// -----------------------------------------------
	runID := manifest.NewRunID()

	if m, err := manifest.Verify(logsPath); err == nil {
		runID = m.RunID
		log.Info(fmt.Sprintf("🔐 Manifest verified (run %s)", m.RunID))
	} else if !errors.Is(err, manifest.ErrNoManifest) {
		log.Error(fmt.Sprintf("❌ Manifest check failed: %v", err))
		os.Exit(1)
	}

	log = log.With("run", runID)

	// 3. Load the roster and IP table
	// -------------------------------
	log.Info("Phase 1: Loading roster and IP table...")

	roster, err := runner.LoadRoster(*rosterPath)
	if err != nil {
		log.Error(fmt.Sprintf("❌ Roster failed: %v", err))
		os.Exit(1)
	}

	table, err := iptable.Load(cfg.Table.Path, cfg.Table)
	if err != nil {
		log.Error(fmt.Sprintf("❌ IP table failed: %v", err))
		os.Exit(1)
	}

	log.Info(fmt.Sprintf("✅ %d roster entries, %d institutions in table", len(roster), table.Len()))

	// 4. Run every institution
	// ------------------------
	log.Info(fmt.Sprintf("Phase 2: Reporting with %d worker(s)...", *workers))

	r := &runner.Runner{
		Table:     table,
		Rules:     logfilter.RulesFromConfig(cfg.Logs),
		Output:    report.NewWorkbook(cfg.Report.Output),
		Frontends: cfg.Logs.FrontendLabels(),
		Workers:   *workers,
		Logger:    log,
	}

	results, err := r.Run(logsPath, roster)
	if err != nil {
		log.Error(fmt.Sprintf("❌ Batch failed: %v", err))
		os.Exit(1)
	}

	// 5. Final Report
	// ---------------
	failed := 0

	fmt.Println("\n------------------------------------------------")
	fmt.Printf("📊 Batch Summary\n")
	fmt.Println("------------------------------------------------")

	for _, res := range results {
		if res.Err != nil {
			failed++

			fmt.Printf("❌ %-40s %v\n", utils.TruncateRunes(res.Name, 40), res.Err)

			continue
		}

		fmt.Printf("✅ %-40s %5d views on %d day(s)\n",
			utils.TruncateRunes(res.Name, 40), res.Matched, len(res.Usage))
	}

	fmt.Println("------------------------------------------------")
	fmt.Printf("Institutions: %d (%d failed)\n", len(results), failed)
	fmt.Printf("Workbook: %s\n", cfg.Report.Output)
	fmt.Printf("Total Duration: %v\n", time.Since(startTime))

	if failed == len(results) {
		log.Error("❌ Every institution failed")
		os.Exit(1)
	}

	log.Info("✨ Batch Complete!")
}
