package cfg

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/jessevdk/go-flags"
)

const (
	DefaultInputDir  = "data/defaultinput"
	DefaultOutputDir = "data/defaultoutput"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Processing configuration
	TaxonomyFile string `long:"taxonomy" env:"TAXONOMY_FILE" description:"YAML taxonomy mapping file names to resource types (built-in when empty)"`
	WorkerCount  int    `long:"workers" env:"WORKER_COUNT" description:"Number of files decoded in parallel (defaults to CPU count)"`
	Strict       bool   `long:"strict" env:"STRICT" description:"Exit non-zero when a file is skipped or a report is not written"`

	// Run artifacts
	LedgerPath  string `long:"ledger" env:"LEDGER_PATH" description:"SQLite database recording runs and file outcomes (optional)"`
	MetricsFile string `long:"metrics-file" env:"METRICS_FILE" description:"Write run metrics in Prometheus text format to this file (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for log timestamps (e.g., UTC, Asia/Shanghai)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Args struct {
		InputDir  string `positional-arg-name:"input_directory" description:"Directory holding *.xls review exports"`
		OutputDir string `positional-arg-name:"output_directory" description:"Directory receiving the merged reports"`
	} `positional-args:"yes"`
}

// Load parses command-line arguments and environment variables
func Load() (*Cfg, error) {
	return Parse(os.Args[1:], os.Stdout)
}

// Parse builds a Cfg from args; it returns nil, nil when help was requested
func Parse(args []string, out io.Writer) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] [input_directory output_directory]"

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Fprintln(out, flagsErr.Message)
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		InputDir:     DefaultInputDir,
		OutputDir:    DefaultOutputDir,
		TaxonomyFile: raw.TaxonomyFile,
		WorkerCount:  raw.WorkerCount,
		Strict:       raw.Strict,
		LedgerPath:   raw.LedgerPath,
		MetricsFile:  raw.MetricsFile,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	// Directories are only overridden as a pair
	if raw.Args.InputDir != "" && raw.Args.OutputDir != "" {
		cfg.InputDir = raw.Args.InputDir
		cfg.OutputDir = raw.Args.OutputDir
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}

	return cfg, nil
}

// ApplyTimezone sets the process-local timezone used for log timestamps
func ApplyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}

// UsesDefaultDirs reports whether positional directories were not supplied
func (c *Cfg) UsesDefaultDirs() bool {
	return c.InputDir == DefaultInputDir && c.OutputDir == DefaultOutputDir
}
