// Package main provides the log filter command-line tool for reducing
// raw access logs to page-view lines.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"usagestats/internal/config"
	"usagestats/internal/logfilter"
	"usagestats/internal/logger"
	"usagestats/internal/manifest"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file")
	date := flag.String("date", "", "Artifact date as YYYY-MM-DD (default: today)")
	outDir := flag.String("out-dir", "", "Artifact directory (overrides config)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Println("Usage: logfilter [OPTIONS] <log file or directory>...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Error loading config: %v\n", err)
	}

	if *outDir != "" {
		cfg.Logs.OutputDir = *outDir
	}

	day := time.Now()

	if *date != "" {
		day, err = time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatalf("Error parsing -date: %v\n", err)
		}
	}

	files, err := logfilter.DiscoverFiles(flag.Args())
	if err != nil {
		log.Fatalf("Error discovering log files: %v\n", err)
	}

	fmt.Printf("📂 Reading %d log file(s)\n", len(files))

	if cfg.Logs.Server != "" {
		fmt.Printf("ℹ️  Keeping only lines mentioning server %q\n", cfg.Logs.Server)
	}

	artifact := logfilter.OutputName(cfg.Logs.OutputDir, day)

	if mkdirErr := os.MkdirAll(filepath.Dir(artifact), 0755); mkdirErr != nil {
		log.Fatalf("Error creating output directory: %v\n", mkdirErr)
	}

	out, err := os.Create(artifact)
	if err != nil {
		log.Fatalf("Error creating output file: %v\n", err)
	}

	rules := logfilter.RulesFromConfig(cfg.Logs)
	logg := logger.NewLogger(cfg.Logging.Level)

	stats, err := logfilter.FilterFiles(files, out, rules, logg)
	if err != nil {
		out.Close()
		log.Fatalf("Error filtering logs: %v\n", err)
	}

	if err := out.Close(); err != nil {
		log.Fatalf("Error closing output file: %v\n", err)
	}

	for _, fe := range stats.FileErrors {
		fmt.Printf("⚠️  Skipped %s: %v\n", fe.Path, fe.Err)
	}

	if stats.Files == 0 {
		os.Remove(artifact)
		log.Fatalf("Error: no log files could be read\n")
	}

	if err := stampArtifact(artifact, files, stats); err != nil {
		log.Fatalf("Error writing manifest: %v\n", err)
	}

	fmt.Printf("📊 Scanned %d lines: kept %d, dropped %d, malformed %d\n",
		stats.Lines, stats.Kept, stats.Dropped, stats.Malformed)
	fmt.Printf("✅ Saved to: %s\n", artifact)
}

// stampArtifact writes the sidecar manifest recording where the artifact
// came from and what its filter pass saw.
func stampArtifact(artifact string, sources []string, stats logfilter.Stats) error {
	return manifest.Stamp(artifact, &manifest.Manifest{
		Sources:   sources,
		Lines:     stats.Lines,
		Kept:      stats.Kept,
		Dropped:   stats.Dropped,
		Malformed: stats.Malformed,
	})
}
