package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/rdl2sv/internal/compiler"
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/facts"
)

var factsOpts struct {
	output    string
	deltaFrom string
	deltaOut  string
	modules   []string
}

var factsCmd = &cobra.Command{
	Use:   "facts [flags] <input.json>",
	Short: "Print the fact tables of a register map without writing RTL",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacts,
}

func init() {
	f := factsCmd.Flags()
	f.StringVarP(&factsOpts.output, "output", "o", "", "write facts JSON to file (default: stdout)")
	f.StringVar(&factsOpts.deltaFrom, "delta-from", "", "previous facts JSON to compute delta from")
	f.StringVar(&factsOpts.deltaOut, "delta-out", "", "write delta JSON to file (requires --delta-from)")
	f.StringSliceVarP(&factsOpts.modules, "module", "m", nil, "only keep rows of these modules")
	rootCmd.AddCommand(factsCmd)
}

func runFacts(cmd *cobra.Command, args []string) error {
	if (factsOpts.deltaFrom == "") != (factsOpts.deltaOut == "") {
		return fmt.Errorf("--delta-from and --delta-out must be used together")
	}
	if err := loadEnv(); err != nil {
		return err
	}

	path := args[0]
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	log, closeLog, err := diag.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.File, cfg.Log.FileLevel)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	tables, err := compiler.New(cfg, log).Facts(path)
	if err != nil {
		return err
	}
	if len(factsOpts.modules) > 0 {
		tables = facts.FilterByModule(tables, moduleSet(factsOpts.modules))
	}

	if factsOpts.output != "" {
		if err := writeJSON(factsOpts.output, tables); err != nil {
			return fmt.Errorf("writing facts: %w", err)
		}
	} else {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			return fmt.Errorf("encoding facts: %w", err)
		}
	}

	if factsOpts.deltaFrom == "" {
		return nil
	}
	prev, err := readTables(factsOpts.deltaFrom)
	if err != nil {
		return fmt.Errorf("reading delta-from: %w", err)
	}
	if len(factsOpts.modules) > 0 {
		prev = facts.FilterByModule(prev, moduleSet(factsOpts.modules))
	}
	delta := facts.ComputeDelta(prev, tables)
	if err := writeJSON(factsOpts.deltaOut, delta); err != nil {
		return fmt.Errorf("writing delta: %w", err)
	}
	return nil
}

func moduleSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
