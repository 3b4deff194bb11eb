package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/bamcall/internal/consensus"
	"github.com/inodb/bamcall/internal/output"
	"github.com/inodb/bamcall/internal/pileup"
)

func newConsensusCmd(logger func() *zap.Logger) *cobra.Command {
	var inPath, outPath string

	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Build a plurality consensus FASTA from a BAM pileup",
		Long: `Build one consensus sequence per reference from the most frequent call at
each pileup column. Columns below the minimum depth become N.`,
		Example: `  bamcall consensus -i sample.bam
  bamcall consensus -i sample.bam -o sample.fa -d 10 --keepgap --name sample1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{
				"consensus.mindepth": "mindepth",
				"consensus.keepgap":  "keepgap",
				"consensus.keepdel":  "keepdel",
				"consensus.name":     "name",
				"consensus.strict":   "strict",
				"pileup.maxdepth":    "maxdepth",
			}); err != nil {
				return err
			}
			return runConsensus(cmd, logger(), inPath, outPath)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&inPath, "infile", "i", "", "Input BAM file; must be coordinate sorted")
	f.StringVarP(&outPath, "outfile", "o", "", "Output FASTA file (default stdout)")
	f.IntP("mindepth", "d", 1, "Minimal depth needed to call a base")
	f.BoolP("keepgap", "g", false, `Keep gaps in the alignment as "N" regions`)
	f.BoolP("keepdel", "l", false, `Keep deletions in the reads as "-"`)
	f.StringP("name", "n", "", "Name for the consensus sequence (default <reference>_consensus)")
	f.Bool("strict", false, "Reject malformed pileup observations")
	f.Int("maxdepth", 8000, "Maximum observations per pileup column")

	return cmd
}

func consensusOptions() (consensus.Options, error) {
	opts := consensus.Options{
		MinDepth: viper.GetInt("consensus.mindepth"),
		KeepGap:  viper.GetBool("consensus.keepgap"),
		KeepDel:  viper.GetBool("consensus.keepdel"),
		Name:     viper.GetString("consensus.name"),
		Strict:   viper.GetBool("consensus.strict"),
	}
	if opts.MinDepth < 0 {
		return opts, &ConfigError{Key: "consensus.mindepth", Message: "must not be negative"}
	}
	return opts, nil
}

func pileupOptions() (pileup.Options, error) {
	opts := pileup.Options{MaxDepth: viper.GetInt("pileup.maxdepth")}
	if opts.MaxDepth < 0 {
		return opts, &ConfigError{Key: "pileup.maxdepth", Message: "must not be negative"}
	}
	return opts, nil
}

func openPileup(key, path string, logger *zap.Logger) (*pileup.BAMReader, error) {
	opts, err := pileupOptions()
	if err != nil {
		return nil, err
	}
	if err := requireFile(key, path); err != nil {
		return nil, err
	}
	r, err := pileup.OpenBAM(path, opts)
	if err != nil {
		return nil, &ConfigError{Key: key, Message: err.Error()}
	}
	r.SetLogger(logger)
	return r, nil
}

func runConsensus(cmd *cobra.Command, logger *zap.Logger, inPath, outPath string) error {
	defer logger.Sync()

	opts, err := consensusOptions()
	if err != nil {
		return err
	}
	if err := checkOutput("outfile", outPath); err != nil {
		return err
	}

	reader, err := openPileup("infile", inPath, logger)
	if err != nil {
		return err
	}
	defer reader.Close()

	caller := consensus.NewCaller(opts)
	caller.SetLogger(logger)
	records, err := caller.Run(reader)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		logger.Warn("no consensus produced", zap.String("bam", inPath))
	}

	out, closeOut, err := openOutput(outPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	fw := output.NewFASTAWriter(out)
	for _, rec := range records {
		if err := fw.Write(rec); err != nil {
			closeOut()
			return fmt.Errorf("write consensus: %w", err)
		}
	}
	if err := fw.Flush(); err != nil {
		closeOut()
		return fmt.Errorf("write consensus: %w", err)
	}
	return closeOut()
}
