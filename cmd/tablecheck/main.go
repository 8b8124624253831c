// Package main provides the IP table checker: it parses the institution
// table the way the report commands will and reports what it found, so
// a bad table is caught before a report run.
package main

import (
	"flag"
	"fmt"
	"os"

	"usagestats/internal/config"
	"usagestats/internal/iptable"
	"usagestats/pkg/utils"
)

func main() {
	// Define command-line flags
	configFile := flag.String("config", "", "Path to YAML configuration file")
	institution := flag.String("institution", "", "Show the parsed ranges for one institution")
	help := flag.Bool("help", false, "Show usage information")

	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("❌ Config failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("⚙️  Checking IP table: %s\n", cfg.Table.Path)

	table, err := iptable.Load(cfg.Table.Path, cfg.Table)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	if *institution != "" {
		if err := printInstitution(table, *institution); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}

		return
	}

	fmt.Println()

	for _, inst := range table.Institutions() {
		fmt.Printf("  %-40s %-10s %3d range(s) %3d proxy(ies)  sheet %q\n",
			utils.TruncateRunes(inst.Name, 40),
			inst.Abbreviation,
			len(inst.Ranges),
			len(inst.Proxies),
			inst.SheetName())
	}

	fmt.Println("\n----------------------------------------------------------------")
	fmt.Printf("📈 %d institution(s) parsed cleanly\n", table.Len())
}

// printInstitution lists every parsed range and proxy for one entry.
func printInstitution(table *iptable.Table, name string) error {
	inst, err := table.Find(name)
	if err != nil {
		return err
	}

	fmt.Printf("\n%s (%s), sheet %q\n", inst.Name, inst.Abbreviation, inst.SheetName())

	fmt.Printf("\nRanges (%d):\n", len(inst.Ranges))

	for _, r := range inst.Ranges {
		fmt.Printf("  %s\n", r)
	}

	fmt.Printf("\nProxies (%d):\n", len(inst.Proxies))

	for _, p := range inst.Proxies {
		fmt.Printf("  %s\n", p)
	}

	return nil
}

func printUsage() {
	fmt.Println("Usage: ./bin/tablecheck [OPTIONS]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  ./bin/tablecheck -config usagestats.yaml")
	fmt.Println("  ./bin/tablecheck -institution \"Example University\"")
}
