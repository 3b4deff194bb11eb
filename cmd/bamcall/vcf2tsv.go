package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/bamcall/internal/output"
	"github.com/inodb/bamcall/internal/vcf"
)

func newVCF2TSVCmd(logger func() *zap.Logger) *cobra.Command {
	var inPath, outPath string

	cmd := &cobra.Command{
		Use:   "vcf2tsv",
		Short: "Flatten an ANN-annotated VCF into a TSV table",
		Long: `Write one row per alternate allele and ANN entry. The run_accession
column is the input file name up to its first dot.`,
		Example: `  bamcall vcf2tsv -i SRR11772659.ann.vcf.gz -o SRR11772659.tsv`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVCF2TSV(cmd, logger(), inPath, outPath)
		},
	}

	cmd.Flags().StringVarP(&inPath, "infile", "i", "", "Annotated VCF file (plain or gzip)")
	cmd.Flags().StringVarP(&outPath, "outfile", "o", "", "Output TSV file (default stdout)")

	return cmd
}

func runVCF2TSV(cmd *cobra.Command, logger *zap.Logger, inPath, outPath string) error {
	defer logger.Sync()

	if err := requireFile("infile", inPath); err != nil {
		return err
	}
	if err := checkOutput("outfile", outPath); err != nil {
		return err
	}

	parser, err := vcf.NewParser(inPath)
	if err != nil {
		return err
	}
	defer parser.Close()

	out, closeOut, err := openOutput(outPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	tw := output.NewTabWriter(out, output.RunAccession(inPath))
	if err := output.Flatten(parser, tw); err != nil {
		closeOut()
		return err
	}
	logger.Info("flattened vcf",
		zap.String("vcf", inPath),
		zap.Int("rows", tw.Rows()))
	return closeOut()
}
