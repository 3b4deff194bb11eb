package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/bamcall/internal/duckdb"
	"github.com/inodb/bamcall/internal/output"
	"github.com/inodb/bamcall/internal/reference"
	"github.com/inodb/bamcall/internal/variant"
)

func newCallCmd(logger func() *zap.Logger) *cobra.Command {
	var bamPath, refPath, outPath string

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Call frequency-filtered variants from a BAM pileup into VCF",
		Long: `Tally every pileup column against the reference and report each
alternate allele whose frequency reaches the minimum. Columns below the
minimum depth are not reported.`,
		Example: `  bamcall call -b sample.bam -r ref.fa -o sample.vcf
  bamcall call -b sample.bam -r ref.fa -o sample.vcf -d 20 --minaf 0.05 -c 8
  bamcall call -b sample.bam -r ref.fa -o sample.vcf --db calls.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{
				"call.workers":    "cores",
				"call.mindepth":   "mindepth",
				"call.minaf":      "minaf",
				"call.strict":     "strict",
				"call.db":         "db",
				"pileup.maxdepth": "maxdepth",
			}); err != nil {
				return err
			}
			return runCall(cmd, logger(), bamPath, refPath, outPath)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&bamPath, "bam", "b", "", "BAM file to turn into VCF")
	f.StringVarP(&refPath, "reference", "r", "", "Reference FASTA, must be the one the BAM was aligned to")
	f.StringVarP(&outPath, "out", "o", "", "Output VCF path (default stdout)")
	f.IntP("cores", "c", 1, "Number of workers; 0 uses all CPUs")
	f.IntP("mindepth", "d", 10, "Minimal depth at which to consider alternative alleles")
	f.Float64P("minaf", "a", 0.01, "Minimal allele frequency to output")
	f.Bool("strict", false, "Reject malformed pileup observations")
	f.String("db", "", "Also store calls in this DuckDB database")
	f.Int("maxdepth", 8000, "Maximum observations per pileup column")

	return cmd
}

func callOptions() (variant.Options, error) {
	opts := variant.Options{
		MinDepth: viper.GetInt("call.mindepth"),
		MinAF:    viper.GetFloat64("call.minaf"),
		Workers:  viper.GetInt("call.workers"),
		Strict:   viper.GetBool("call.strict"),
	}
	switch {
	case opts.MinDepth < 0:
		return opts, &ConfigError{Key: "call.mindepth", Message: "must not be negative"}
	case opts.MinAF < 0 || opts.MinAF > 1:
		return opts, &ConfigError{Key: "call.minaf", Message: "must be between 0 and 1"}
	case opts.Workers < 0:
		return opts, &ConfigError{Key: "call.workers", Message: "must not be negative"}
	}
	return opts, nil
}

func runCall(cmd *cobra.Command, logger *zap.Logger, bamPath, refPath, outPath string) error {
	defer logger.Sync()

	opts, err := callOptions()
	if err != nil {
		return err
	}
	if err := requireFile("reference", refPath); err != nil {
		return err
	}
	if err := checkOutput("out", outPath); err != nil {
		return err
	}
	dbPath := viper.GetString("call.db")
	if err := checkOutput("call.db", dbPath); err != nil {
		return err
	}

	reader, err := openPileup("bam", bamPath, logger)
	if err != nil {
		return err
	}
	defer reader.Close()

	refs, err := reference.Open(refPath)
	if err != nil {
		return &ConfigError{Key: "reference", Message: err.Error()}
	}
	defer refs.Close()
	refs.SetLogger(logger)

	if bad := refs.CheckLengths(reader.References()); bad > 0 {
		logger.Warn("reference does not match BAM header", zap.Int("sequences", bad))
	}

	caller := variant.NewCaller(opts)
	caller.SetLogger(logger)
	records, err := caller.Call(reader, refs)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(outPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	vw := output.NewVCFWriter(out, output.VCFHeader{
		Source:    strings.Join(append([]string{"bamcall"}, commandArgs(cmd)...), " "),
		Reference: refPath,
		Contigs:   reader.References(),
		MinAF:     opts.MinAF,
		MinDepth:  opts.MinDepth,
	})
	if err := variant.WriteAll(vw, records); err != nil {
		closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	if dbPath != "" {
		return storeCalls(logger, dbPath, bamPath, refPath, opts, records)
	}
	return nil
}

// commandArgs reconstructs the invocation for the ##source header.
func commandArgs(cmd *cobra.Command) []string {
	args := []string{cmd.Name()}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		args = append(args, "--"+f.Name, f.Value.String())
	})
	return args
}

func storeCalls(logger *zap.Logger, dbPath, bamPath, refPath string, opts variant.Options, records []variant.Record) error {
	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	fp, err := duckdb.StatFile(bamPath)
	if err != nil {
		return err
	}
	if prev, ok, err := store.FindRun(fp, opts.MinDepth, opts.MinAF); err != nil {
		return err
	} else if ok {
		logger.Info("replacing previous run", zap.Int64("run", prev))
		if err := store.DeleteRun(prev); err != nil {
			return err
		}
	}

	id, err := store.CreateRun(duckdb.Run{
		BAM:       fp,
		Reference: refPath,
		MinDepth:  opts.MinDepth,
		MinAF:     opts.MinAF,
	})
	if err != nil {
		return err
	}
	if err := store.WriteCalls(id, records); err != nil {
		return err
	}
	logger.Info("stored variant calls",
		zap.String("db", dbPath),
		zap.Int64("run", id),
		zap.Int("variants", len(records)))
	return nil
}
