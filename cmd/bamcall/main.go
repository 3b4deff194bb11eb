// Package main provides the bamcall command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ConfigError reports invalid configuration detected before any input is
// processed.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Key, e.Message)
}

// usageError marks command-line parsing failures.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var uErr *usageError
	var cErr *ConfigError
	switch {
	case errors.As(err, &uErr), errors.As(err, &cErr):
		return ExitUsage
	case strings.HasPrefix(err.Error(), "unknown command"):
		return ExitUsage
	default:
		return ExitError
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		verbose     bool
		showVersion bool
		cfgFile     string
	)

	root := &cobra.Command{
		Use:   "bamcall",
		Short: "Consensus sequences and variant calls from BAM pileups",
		Long: `bamcall turns a coordinate-sorted BAM into a consensus FASTA or a
frequency-filtered VCF, and flattens annotated VCFs into TSV tables.`,
		Example: `  bamcall consensus -i sample.bam -o sample.fa --keepgap
  bamcall call -b sample.bam -r ref.fa -o sample.vcf --minaf 0.05 -c 4
  bamcall vcf2tsv -i sample.ann.vcf -o sample.tsv
  bamcall query --db calls.duckdb --chrom MN908947.3 --start 21563 --end 25384`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "bamcall version %s (%s) built %s\n", version, commit, date)
				return nil
			}
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.bamcall.yaml)")

	logger := func() *zap.Logger { return newLogger(stderr, verbose) }

	root.AddCommand(newConsensusCmd(logger))
	root.AddCommand(newCallCmd(logger))
	root.AddCommand(newVCF2TSVCmd(logger))
	root.AddCommand(newQueryCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// newLogger builds a console logger on w. Info and above by default, debug
// with verbose.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func setDefaults() {
	viper.SetDefault("consensus.mindepth", 1)
	viper.SetDefault("consensus.keepgap", false)
	viper.SetDefault("consensus.keepdel", false)
	viper.SetDefault("consensus.name", "")
	viper.SetDefault("consensus.strict", false)
	viper.SetDefault("call.mindepth", 10)
	viper.SetDefault("call.minaf", 0.01)
	viper.SetDefault("call.workers", 1)
	viper.SetDefault("call.strict", false)
	viper.SetDefault("call.db", "")
	viper.SetDefault("pileup.maxdepth", 8000)
}

// initConfig loads ~/.bamcall.yaml (or cfgFile) and BAMCALL_* environment
// overrides. A missing default config file is not an error.
func initConfig(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".bamcall")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BAMCALL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return &ConfigError{Key: "config", Message: err.Error()}
	}
	return nil
}

// bindFlags binds config keys to the flags of the running command. Keys
// shared between commands are bound only for the command being run.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// checkOutput verifies that the directory of an output path exists.
func checkOutput(key, path string) error {
	if path == "" || path == "-" {
		return nil
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &ConfigError{Key: key, Message: fmt.Sprintf("directory %s does not exist", dir)}
	}
	return nil
}

// openOutput returns stdout for "" or "-", otherwise creates path.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

// requireFile checks that a required input path was given and is readable.
func requireFile(key, path string) error {
	if path == "" {
		return &ConfigError{Key: key, Message: "path is required"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &ConfigError{Key: key, Message: err.Error()}
	}
	if info.IsDir() {
		return &ConfigError{Key: key, Message: fmt.Sprintf("%s is a directory", path)}
	}
	return nil
}
