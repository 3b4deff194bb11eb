package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inodb/bamcall/internal/duckdb"
	"github.com/inodb/bamcall/internal/output"
)

func newQueryCmd() *cobra.Command {
	var (
		dbPath string
		filter duckdb.Filter
		runs   bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query variant calls stored with call --db",
		Long: `Print stored calls as VCF body lines prefixed by their run id, or list
the recorded runs with --runs.`,
		Example: `  bamcall query --db calls.duckdb --chrom MN908947.3
  bamcall query --db calls.duckdb --chrom MN908947.3 --start 21563 --end 25384 --min-af 0.5
  bamcall query --db calls.duckdb --runs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFile("db", dbPath); err != nil {
				return err
			}
			if filter.Start > 0 && filter.End > 0 && filter.End < filter.Start {
				return &ConfigError{Key: "end", Message: "must not be before start"}
			}
			if (filter.Start > 0 || filter.End > 0) && filter.Chrom == "" {
				return &ConfigError{Key: "chrom", Message: "required with --start or --end"}
			}

			store, err := duckdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if runs {
				return printRuns(cmd.OutOrStdout(), store)
			}
			return printCalls(cmd.OutOrStdout(), store, filter)
		},
	}

	f := cmd.Flags()
	f.StringVar(&dbPath, "db", "", "DuckDB database written by call --db")
	f.StringVar(&filter.Chrom, "chrom", "", "Reference name")
	f.Int64Var(&filter.Start, "start", 0, "First 1-based position (inclusive)")
	f.Int64Var(&filter.End, "end", 0, "Last 1-based position (inclusive)")
	f.Float64Var(&filter.MinAF, "min-af", 0, "Minimal allele frequency")
	f.Int64Var(&filter.RunID, "run", 0, "Only calls from this run")
	f.BoolVar(&runs, "runs", false, "List recorded runs instead of calls")

	return cmd
}

func printCalls(w io.Writer, store *duckdb.Store, filter duckdb.Filter) error {
	calls, err := store.QueryCalls(filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "#RUN\tCHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")
	for i := range calls {
		fmt.Fprintf(w, "%d\t%s\n", calls[i].RunID, output.FormatVCFLine(&calls[i].Record))
	}
	return nil
}

func printRuns(w io.Writer, store *duckdb.Store) error {
	runs, err := store.Runs()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "run_id\tbam\treference\tmindepth\tminaf")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%g\n", r.ID, r.BAM.Path, r.Reference, r.MinDepth, r.MinAF)
	}
	return nil
}
