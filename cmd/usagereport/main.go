// Package main provides the usage report command for a single
// institution: it matches a filtered log against the institution's IP
// ranges and emits the spreadsheet, console, and JSON reports.
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
)

func main() {
	// 1. Define Command-Line Flags
	// ---------------------------
	configFile := flag.String("config", "", "Path to YAML configuration file")
	institution := flag.String("institution", "", "Institution name or abbreviation to report on")
	logsPath := flag.String("logs", "", "Path to a filtered log artifact")
	jsonPath := flag.String("json", "", "Write the JSON summary to this file (\"-\" for stdout)")
	query := flag.String("query", "", "jq expression to run against the JSON summary")

	flag.Parse()

	log := logger.NewLogger("info")

	if *institution == "" || *logsPath == "" {
		log.Error("Please provide -institution and -logs")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Error(fmt.Sprintf("❌ Config failed: %v", err))
		os.Exit(1)
	}

	log = logger.NewLogger(cfg.Logging.Level)

	log.Info("🚀 Starting usage report")
	log.Info(fmt.Sprintf("📍 Source: %s", *logsPath))
	log.Info(fmt.Sprintf("🎯 Institution: %s", *institution))

	startTime := time.Now()

	// 2. Verify the artifact manifest when one exists
	// -----------------------------------------------
	runID := verifyArtifact(log, *logsPath)

	// 3. Load the institution IP table
	// --------------------------------
	log.Info("Phase 1: Loading IP table...")

	table, err := iptable.Load(cfg.Table.Path, cfg.Table)
	if err != nil {
		log.Error(fmt.Sprintf("❌ IP table failed: %v", err))
		os.Exit(1)
	}

	log.Info(fmt.Sprintf("✅ Loaded %d institutions from %s", table.Len(), cfg.Table.Path))

	// 4. Match and aggregate
	// ----------------------
	log.Info("Phase 2: Matching entries...")

	frontends := cfg.Logs.FrontendLabels()

	r := &runner.Runner{
		Table:     table,
		Rules:     logfilter.RulesFromConfig(cfg.Logs),
		Output:    report.NewWorkbook(cfg.Report.Output),
		Frontends: frontends,
		Workers:   1,
		Logger:    log,
	}

	results, err := r.Run(*logsPath, []string{*institution})
	if err != nil {
		log.Error(fmt.Sprintf("❌ Matching failed: %v", err))
		os.Exit(1)
	}

	res := results[0]
	if res.Err != nil {
		log.Error(fmt.Sprintf("❌ Report failed: %v", res.Err))
		os.Exit(1)
	}

	log.Info(fmt.Sprintf("✅ Matched %d of %d entries in %v", res.Matched, res.Scanned, time.Since(startTime)))

	// 5. Emit reports
	// ---------------
	log.Info("Phase 3: Writing reports...")

	summary := report.NewSummary(runID, res.Institution, res.Usage, res.Scanned)

	if err := emitJSON(summary, *jsonPath); err != nil {
		log.Error(fmt.Sprintf("❌ JSON summary failed: %v", err))
		os.Exit(1)
	}

	if *query != "" {
		lines, err := report.ApplyQuery(summary, *query)
		if err != nil {
			log.Error(fmt.Sprintf("❌ Query failed: %v", err))
			os.Exit(1)
		}

		for _, line := range lines {
			fmt.Println(line)
		}
	}

	if cfg.Report.Console {
		fmt.Println("\n------------------------------------------------")
		fmt.Printf("📊 %s (%s)\n", res.Institution.Name, res.Institution.Abbreviation)
		fmt.Println("------------------------------------------------")
		fmt.Print(report.RenderTable(res.Usage, frontends))
		fmt.Println("------------------------------------------------")
	}

	log.Info("✨ Report Complete!")
	fmt.Printf("Sheet: %s\n", res.Institution.SheetName())
	fmt.Printf("Workbook: %s\n", cfg.Report.Output)
	fmt.Printf("Total Duration: %v\n", time.Since(startTime))
}

// verifyArtifact checks the filtered log against its manifest. A missing
// manifest is fine; a hash mismatch is not. Returns the run ID recorded
// by the filter stage, or a fresh one.
func verifyArtifact(log *logger.Logger, path string) string {
	m, err := manifest.Verify(path)

	switch {
	case err == nil:
		log.Info(fmt.Sprintf("🔐 Manifest verified (run %s)", m.RunID))
		return m.RunID
	case errors.Is(err, manifest.ErrNoManifest):
		log.Debug("No manifest alongside artifact, skipping verification")
		return manifest.NewRunID()
	default:
		log.Error(fmt.Sprintf("❌ Manifest check failed: %v", err))
		os.Exit(1)
		return ""
	}
}

// emitJSON writes the summary to the requested destination. An empty
// path writes nothing; "-" writes to stdout.
func emitJSON(summary report.Summary, path string) error {
	switch path {
	case "":
		return nil
	case "-":
		return report.WriteJSON(os.Stdout, summary)
	default:
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create summary file: %w", err)
		}
		defer f.Close()

		return report.WriteJSON(f, summary)
	}
}
