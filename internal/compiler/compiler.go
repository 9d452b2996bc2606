// Package compiler runs the rdl2sv pipeline: load, validate, lower,
// policy, render, write and export.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
	"github.com/robert-at-pretension-io/rdl2sv/internal/diag"
	"github.com/robert-at-pretension-io/rdl2sv/internal/export"
	"github.com/robert-at-pretension-io/rdl2sv/internal/facts"
	"github.com/robert-at-pretension-io/rdl2sv/internal/lower"
	"github.com/robert-at-pretension-io/rdl2sv/internal/policy"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rdl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/rtl"
	"github.com/robert-at-pretension-io/rdl2sv/internal/validator"
)

// Version is written into every file header
var Version = "dev"

// Compiler turns elaborated register maps into SystemVerilog
type Compiler struct {
	// Config is loaded from rdl2sv.json next to the input when nil
	Config *config.Config

	Log logrus.FieldLogger

	// Now stamps file headers
	Now func() time.Time

	db *export.Writer
}

// Result is the outcome of one run
type Result struct {
	// Files lists the written files in write order
	Files []string

	Lowered *lower.Result
	Tables  facts.Tables
	// Delta is the change against the previous snapshot; HasPrevious is
	// false on the first run into a directory
	Delta       facts.Delta
	HasPrevious bool

	Policy *policy.Result

	// Warnings counts every warning of the run, policy included
	Warnings int

	Database string
	RunID    string
}

// New creates a compiler for cfg
func New(cfg *config.Config, log logrus.FieldLogger) *Compiler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Compiler{Config: cfg, Log: log, Now: time.Now}
}

// Run compiles the elaborated JSON at inputPath. Fatal lowering conditions
// are returned as *diag.Error; no file is written in that case.
func (c *Compiler) Run(ctx context.Context, inputPath string) (*Result, error) {
	runStart := time.Now()

	if c.Config == nil {
		cfg, err := config.Load(inputPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		c.Config = cfg
	}
	cfg := c.Config
	log := c.Log.WithField("input", inputPath)

	timing := newTimingRecorder(runStart, c.resolveTimingPath())
	if err := timing.Err(); err != nil {
		log.WithError(err).Warn("timing output disabled")
	}
	defer timing.Close()

	rep := diag.NewReporter(log, cfg.Checks.DisableSanity)

	// 1-3. Load, lower and build the facts
	lowered, tables, err := c.analyze(inputPath, rep, timing, log)
	if err != nil {
		return nil, err
	}
	res := &Result{Lowered: lowered, Tables: tables}

	// 4. Policy
	if cfg.PolicyEnabled() {
		err = timing.Stage("policy", func() error {
			engine, err := policy.New(ctx, cfg.Policy.Dir)
			if err != nil {
				return err
			}
			if res.Policy, err = engine.Evaluate(ctx, res.Tables); err != nil {
				return err
			}
			return res.Policy.Report(rep, cfg.Policy.Errors)
		})
		if err != nil {
			return nil, err
		}
	}

	// 5. Render every file before writing any
	var outputs []output
	err = timing.Stage("render", func() error {
		var err error
		outputs, err = c.render(inputPath, res.Lowered)
		return err
	})
	if err != nil {
		return nil, err
	}

	// 6. Write
	dir := cfg.Output.Dir
	err = timing.Stage("write", func() error {
		for _, o := range outputs {
			start := time.Now()
			path := cfg.OutputPath(o.name)
			err := writeAtomic(path, []byte(strings.Join(o.lines, "\n")+"\n"))
			timing.RecordFile(path, status(err), start, time.Since(start))
			if err != nil {
				return err
			}
			res.Files = append(res.Files, path)
			log.WithField("file", path).Info("written")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 7. Snapshot delta and export
	err = timing.Stage("export", func() error {
		return c.export(inputPath, dir, res, log)
	})
	if err != nil {
		return nil, err
	}

	res.Warnings = rep.Warnings()
	timing.record(timingEvent{Stage: "total", Kind: "stage", Status: "ok"}, runStart, time.Since(runStart))
	log.WithFields(logrus.Fields{
		"modules":    len(res.Lowered.Modules),
		"files":      len(res.Files),
		"warnings":   res.Warnings,
		"suppressed": rep.Suppressed(),
	}).Info("done")
	return res, nil
}

// Facts loads and lowers the input and returns its fact tables without
// writing anything
func (c *Compiler) Facts(inputPath string) (facts.Tables, error) {
	if c.Config == nil {
		cfg, err := config.Load(inputPath)
		if err != nil {
			return facts.Tables{}, fmt.Errorf("load config: %w", err)
		}
		c.Config = cfg
	}
	log := c.Log.WithField("input", inputPath)
	rep := diag.NewReporter(log, c.Config.Checks.DisableSanity)
	_, tables, err := c.analyze(inputPath, rep, newTimingRecorder(time.Now(), ""), log)
	return tables, err
}

// analyze runs the load, lower and facts stages
func (c *Compiler) analyze(inputPath string, rep *diag.Reporter, timing *timingRecorder, log logrus.FieldLogger) (*lower.Result, facts.Tables, error) {
	var tree *rdl.Tree
	err := timing.Stage("load", func() error {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		v, err := validator.New()
		if err != nil {
			return err
		}
		if errs := v.ValidationErrors(data); len(errs) > 0 {
			return rep.At(inputPath).Fatal(diag.KindInput, "input does not match the register-map contract: %s",
				strings.Join(errs, "; "))
		}
		tree, err = rdl.Decode(data)
		if err != nil {
			return rep.At(inputPath).Fatal(diag.KindInput, "%v", err)
		}
		log.WithField("nodes", tree.Len()).Debug("input loaded")
		return nil
	})
	if err != nil {
		return nil, facts.Tables{}, err
	}

	var lowered *lower.Result
	err = timing.Stage("lower", func() error {
		var err error
		lowered, err = lower.Lower(tree, lower.OptionsFromConfig(c.Config), rep)
		return err
	})
	if err != nil {
		return nil, facts.Tables{}, err
	}

	var tables facts.Tables
	err = timing.Stage("facts", func() error {
		tables = facts.BuildTables(lowered)
		fv, err := validator.NewFactsValidator()
		if err != nil {
			return err
		}
		return fv.Validate(tables)
	})
	if err != nil {
		return nil, facts.Tables{}, err
	}
	return lowered, tables, nil
}

// Close flushes and closes the export database, if one was opened
func (c *Compiler) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

type output struct {
	name  string
	lines []string
}

// render produces every output file: one per module, one per enum
// package and the shared interface package
func (c *Compiler) render(inputPath string, lowered *lower.Result) ([]output, error) {
	engine := rtl.Default()
	opts := rtl.IndentOptions{TabWidth: c.Config.Output.TabWidth, RealTabs: c.Config.Output.RealTabs}
	header := headerParams(inputPath, c.Now())

	file := func(name string, frags []rtl.Fragment) (output, error) {
		p := rtl.P{"file": name}
		for k, v := range header {
			p[k] = v
		}
		all := append([]rtl.Fragment{rtl.F("file_header", p)}, frags...)
		lines, err := engine.Render(all)
		if err != nil {
			return output{}, fmt.Errorf("rendering %s: %w", name, err)
		}
		return output{name: name, lines: rtl.Indent(lines, opts)}, nil
	}

	var outs []output
	add := func(name string, frags []rtl.Fragment) error {
		o, err := file(name, frags)
		if err != nil {
			return err
		}
		outs = append(outs, o)
		return nil
	}

	if err := add(lower.InterfacePackageName+".sv", lowered.Interface()); err != nil {
		return nil, err
	}
	for _, pkg := range lowered.Packages() {
		if err := add(pkg.Name+".sv", pkg.Fragments()); err != nil {
			return nil, err
		}
	}
	for _, m := range lowered.Modules {
		if err := add(m.Module()+".sv", m.Fragments()); err != nil {
			return nil, err
		}
	}
	return outs, nil
}

func headerParams(inputPath string, now time.Time) rtl.P {
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return rtl.P{
		"version": Version,
		"input":   filepath.Base(inputPath),
		"user":    name,
		"host":    host,
		"time":    now.Format(time.RFC3339),
	}
}

// export logs the change against the previous snapshot, replaces the
// snapshot and writes the tables to the database when enabled
func (c *Compiler) export(inputPath, dir string, res *Result, log logrus.FieldLogger) error {
	prev, ok, err := loadSnapshot(dir)
	if err != nil {
		return err
	}
	if ok {
		res.HasPrevious = true
		res.Delta = facts.ComputeDelta(prev, res.Tables)
		for _, m := range res.Lowered.Modules {
			d := facts.FilterDeltaByModule(res.Delta, map[string]bool{m.Module(): true})
			if d.Empty() {
				continue
			}
			log.WithFields(logrus.Fields{
				"module":  m.Module(),
				"added":   d.Added.Len(),
				"removed": d.Removed.Len(),
			}).Info("register map changed")
		}
	}
	if err := saveSnapshot(dir, inputPath, res.Tables); err != nil {
		return err
	}

	name := c.Config.Export.SQLite
	if name == "" {
		return nil
	}
	if c.db == nil {
		if !filepath.IsAbs(name) && name != export.Auto {
			name = filepath.Join(dir, name)
		}
		c.db, err = export.Open(name, dir, log)
		if err != nil {
			return err
		}
	}
	res.Database = c.db.Path()
	res.RunID = c.db.Write(inputPath, res.Tables)
	return c.db.Flush()
}

// IsFatal reports whether err is a fatal register-map condition as
// opposed to an I/O or configuration failure
func IsFatal(err error) bool {
	var de *diag.Error
	return errors.As(err, &de)
}
