package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/moonc/compiler/internal"
	"github.com/xiaobogaga/moonc/compiler/internal/config"
)

// A moon compiler: compiles a .src file, or every .src file of a directory, to moon assembly and
// writes the intermediate artifacts next to it. Flags override the config file.

var (
	path        = flag.String("path", ".", "the path of the moon source file, or of a directory of .src files")
	configPath  = flag.String("config", "", "the yaml config file, defaults are used when empty")
	outDir      = flag.String("out", "", "the directory outputs are written to, the source directory by default")
	table       = flag.String("table", "", "the ll1 parse table csv, the built-in grammar when empty")
	firstFollow = flag.String("first-follow", "", "the first/follow sets csv going with -table")
	emitTable   = flag.String("emit-table", "", "write the grammar as ll1.csv and ll1ff.csv into that directory and exit")
	entry       = flag.String("entry", "", "the free function the program starts in")
	layout      = flag.String("layout", "", "the object layout: inherited-first or own-fields-only")
	run         = flag.Bool("run", false, "run every successfully compiled program on the moon machine")
	input       = flag.String("input", "", "the file getint reads from when running, stdin by default")
	verbose     = flag.Bool("v", false, "whether log every compilation stage")
)

func main() {
	flag.Parse()
	if err := compile(); err != nil {
		fmt.Printf("Error: %+v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.Dir = *outDir
		case "table":
			cfg.Grammar.Table = *table
		case "first-follow":
			cfg.Grammar.FirstFollow = *firstFollow
		case "entry":
			cfg.Entry = *entry
		case "layout":
			cfg.Layout = *layout
		case "run":
			cfg.Run.Enabled = *run
		case "input":
			cfg.Run.Input = *input
		}
	})
	return cfg, cfg.Validate()
}

func compile() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var logger *log.Logger
	if *verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
		logger.Printf("compiler: config\n%s", cfg)
	}
	c, err := internal.New(cfg, logger)
	if err != nil {
		return err
	}
	if *emitTable != "" {
		return writeTable(c, *emitTable)
	}
	results, err := c.CompilePath(*path)
	if err != nil {
		return err
	}
	failed := 0
	for _, result := range results {
		if !result.Success() {
			failed++
			fmt.Printf("[Compiler]: %s failed\n%s%s%s", result.Path, result.LexErrors(),
				result.Parse.ErrorsString(), result.Diagnostics().String())
			continue
		}
		fmt.Printf("[Compiler]: %s compiled\n", result.Path)
		if !cfg.Run.Enabled {
			continue
		}
		if err = execute(result, cfg.Run); err != nil {
			return err
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed to compile", failed, len(results))
	}
	return nil
}

func execute(result *internal.Result, run config.Run) error {
	var in io.Reader = os.Stdin
	if run.Input != "" {
		f, err := os.Open(run.Input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	steps, err := internal.Execute(result.Assembly(), run, in, os.Stdout)
	if err != nil {
		return err
	}
	if *verbose {
		log.Printf("[Moon]: %s halted after %d steps", result.Path, steps)
	}
	return nil
}

func writeTable(c *internal.Compiler, dir string) error {
	tf, err := os.Create(filepath.Join(dir, "ll1.csv"))
	if err != nil {
		return err
	}
	defer tf.Close()
	ff, err := os.Create(filepath.Join(dir, "ll1ff.csv"))
	if err != nil {
		return err
	}
	defer ff.Close()
	return c.Table().WriteCSV(tf, ff)
}
