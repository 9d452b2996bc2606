// =============================================================================
// rdl2sv - Main Entry Point
// =============================================================================
//
// rdl2sv lowers elaborated SystemRDL register maps into synthesizable
// SystemVerilog: one module per address-map, one enum package per scope and
// the shared bus interface package.
//
// THE PIPELINE:
//   1. The front-end elaborates RDL and hands over a JSON tree
//   2. CUE Validator enforces the input contract (crash on schema mismatch)
//   3. Lowering builds the component tree and its RTL fragments
//   4. Fact tables are checked against the facts contract
//   5. OPA evaluates register-map policies against the facts
//   6. Templates render the files, which are written atomically
//   7. The facts snapshot and the SQLite export record the run
//
// WHEN INVESTIGATING WRONG RTL:
//   Start at the beginning of the pipeline, not the end!
//   Input contract → Lowering decisions → Templates
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/robert-at-pretension-io/rdl2sv/internal/compiler"
	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
)

var rootCmd = &cobra.Command{
	Use:   "rdl2sv [flags] <input.json|dir|glob>...",
	Short: "Lower elaborated SystemRDL register maps into SystemVerilog",
	Long: `rdl2sv reads register maps elaborated by an RDL front-end (JSON) and writes
one SystemVerilog module per address-map, the enum packages and the bus
interface package into the output directory.

Configuration is looked up in:
  1. ./rdl2sv.json
  2. ./.rdl2sv.json
  3. rdl2sv.json next to the first input
  4. ~/.config/rdl2sv/config.json

RDL2SV_* environment variables (also read from .env) override the file,
command line flags override both.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCompile,
}

var opts struct {
	configFile string
	envFiles   []string
	jsonOut    bool
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "configuration file (skips the search)")
	pf.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")

	f := rootCmd.Flags()
	f.BoolVar(&opts.jsonOut, "json", false, "print a JSON summary of every run on stdout")

	f.StringP("output", "o", "", "output directory")
	f.String("bus", "", "bus widget: amba3ahblite or apb4")
	f.Int("address-width", 0, "bus address width in bits")
	f.Bool("no-enums", false, "do not turn encode properties into enum packages")
	f.Bool("no-byte-enable", false, "ignore bus byte strobes")
	f.Int("descriptions", 0, "bitfield of node kinds whose desc is emitted (addrmap=1 regfile=2 mem=4 reg=8 field=16)")
	f.Bool("external", false, "make every register external")
	f.Bool("disable-sanity", false, "suppress sanity warnings")
	f.Bool("illegal-address-error", false, "answer unmapped addresses with a bus error")
	f.Bool("no-policy", false, "skip the register-map policy checks")
	f.Bool("policy-errors", false, "make policy violations of severity error fatal")
	f.String("policy-dir", "", "directory of extra .rego policies")
	f.String("sqlite", "", `SQLite export database ("auto" picks a unique name)`)
	f.String("timing", "", "JSONL file receiving stage timings")
	f.StringP("log-level", "l", "", "console log level")
	f.String("log-file", "", "JSON log file")
	f.String("log-file-level", "", "log file level")

	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func runCompile(cmd *cobra.Command, args []string) error {
	if err := loadEnv(); err != nil {
		return err
	}

	inputs, err := config.ResolveInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no %s input found", config.InputExt)
	}

	cfg, err := loadConfig(inputs[0])
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	log, closeLog, err := diag.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.File, cfg.Log.FileLevel)
	if err != nil {
		return err
	}
	atexit.Register(func() { _ = closeLog() })

	c := compiler.New(cfg, log)
	defer c.Close()

	ctx := context.Background()
	var summaries []summary
	failed := 0
	for _, in := range inputs {
		res, err := c.Run(ctx, in)
		if err != nil {
			failed++
			if !compiler.IsFatal(err) {
				log.WithError(err).WithField("input", in).Error("run failed")
			}
			summaries = append(summaries, summary{Input: in, Error: err.Error()})
			continue
		}
		summaries = append(summaries, newSummary(in, res))
	}

	if opts.jsonOut {
		if err := writeSummary(cmd.OutOrStdout(), summaries); err != nil {
			return err
		}
	}
	if err := c.Close(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(inputs))
	}
	return nil
}

func loadEnv() error {
	return config.LoadDotEnv(opts.envFiles...)
}

func loadConfig(firstInput string) (*config.Config, error) {
	if opts.configFile != "" {
		cfg, err := config.LoadFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", opts.configFile, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(firstInput)
	if err != nil {
		logrus.WithError(err).Warn("could not load config, using defaults")
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

// applyFlags overrides cfg with every flag set on the command line
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	flag := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}
	num := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}

	str("output", &cfg.Output.Dir)
	str("bus", &cfg.Bus)
	num("address-width", &cfg.AddressWidth)
	num("descriptions", &cfg.Descriptions)
	flag("no-byte-enable", &cfg.NoByteEnable)
	flag("external", &cfg.External)
	flag("disable-sanity", &cfg.Checks.DisableSanity)
	flag("illegal-address-error", &cfg.Checks.IllegalAddressError)
	flag("policy-errors", &cfg.Policy.Errors)
	str("policy-dir", &cfg.Policy.Dir)
	str("sqlite", &cfg.Export.SQLite)
	str("timing", &cfg.Timing.Path)
	str("log-level", &cfg.Log.Level)
	str("log-file", &cfg.Log.File)
	str("log-file-level", &cfg.Log.FileLevel)

	if f.Changed("no-enums") {
		v, _ := f.GetBool("no-enums")
		enums := !v
		cfg.Enums = &enums
	}
	if f.Changed("no-policy") {
		v, _ := f.GetBool("no-policy")
		enabled := !v
		cfg.Policy.Enabled = &enabled
	}
	return cfg.Validate()
}

type summary struct {
	Input      string   `json:"input"`
	Error      string   `json:"error,omitempty"`
	Files      []string `json:"files,omitempty"`
	Modules    []string `json:"modules,omitempty"`
	Warnings   int      `json:"warnings"`
	Violations int      `json:"violations"`
	Changed    bool     `json:"changed"`
	Database   string   `json:"database,omitempty"`
	RunID      string   `json:"run_id,omitempty"`
}

func newSummary(input string, res *compiler.Result) summary {
	s := summary{
		Input:    input,
		Files:    res.Files,
		Warnings: res.Warnings,
		Changed:  !res.HasPrevious || !res.Delta.Empty(),
		Database: res.Database,
		RunID:    res.RunID,
	}
	for _, m := range res.Lowered.Modules {
		s.Modules = append(s.Modules, m.Module())
	}
	if res.Policy != nil {
		s.Violations = len(res.Policy.Violations)
	}
	return s
}

func writeSummary(w io.Writer, summaries []summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
