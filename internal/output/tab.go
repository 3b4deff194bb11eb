package output

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/inodb/bamcall/internal/vcf"
)

// tsvColumns is the vcf2tsv header. Columns after ALT_rev are the
// pipe-separated ANN sub-fields.
var tsvColumns = []string{
	"run_accession",
	"CHROM",
	"POS",
	"DP",
	"REF",
	"ALT",
	"REF_fwd",
	"REF_rev",
	"ALT_fwd",
	"ALT_rev",
	"allele",
	"effect",
	"impact",
	"gene_name",
	"gene_id",
	"feature_type",
	"feature_id",
	"transcript_biotype",
	"exon_rank",
	"HGVS_c",
	"HGVS_p",
	"cDNA_pos",
	"CDS_pos",
	"protein_pos",
	"dist_to_feature",
	"error_warning_info",
}

// TabWriter flattens annotated VCF records to one row per alternate
// allele and annotation entry.
type TabWriter struct {
	w     *bufio.Writer
	runID string
	rows  int
}

// NewTabWriter creates a new tab-delimited writer. runID fills the
// run_accession column.
func NewTabWriter(w io.Writer, runID string) *TabWriter {
	return &TabWriter{w: bufio.NewWriter(w), runID: runID}
}

// RunAccession derives the run accession from an input path: the base
// name up to its first dot.
func RunAccession(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tsvColumns, "\t") + "\n")
	return err
}

// Write writes the rows for one record. Records without an alternate
// allele produce no rows.
func (tw *TabWriter) Write(v *vcf.Variant) error {
	alts := v.Alts()
	if len(alts) == 0 {
		return nil
	}

	dp, err := v.InfoInt("DP")
	if err != nil {
		return err
	}
	dp4, err := v.InfoInts("DP4")
	if err != nil {
		return err
	}
	if len(dp4) < 2*(len(alts)+1) {
		return fmt.Errorf("%s:%d: DP4 has %d values for %d alleles", v.Chrom, v.Pos, len(dp4), len(alts)+1)
	}
	anns, err := v.InfoList("ANN")
	if err != nil {
		return err
	}

	prefix := []string{
		tw.runID,
		v.Chrom,
		strconv.FormatInt(v.Pos, 10),
		strconv.Itoa(dp),
		v.Ref,
	}
	for i, alt := range alts {
		n := i + 1
		for _, ann := range anns {
			row := append(prefix[:len(prefix):len(prefix)],
				alt,
				strconv.Itoa(dp4[0]),
				strconv.Itoa(dp4[1]),
				strconv.Itoa(dp4[2*n]),
				strconv.Itoa(dp4[2*n+1]),
			)
			row = append(row, strings.Split(ann, "|")...)
			if _, err := tw.w.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
				return err
			}
			tw.rows++
		}
	}
	return nil
}

// Rows returns the number of data rows written.
func (tw *TabWriter) Rows() int {
	return tw.rows
}

// Flush flushes any buffered data.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// Flatten writes the header and every record of r.
func Flatten(r vcf.VariantReader, tw *TabWriter) error {
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for {
		v, err := r.Next()
		if err != nil {
			return err
		}
		if v == nil {
			break
		}
		if err := tw.Write(v); err != nil {
			return fmt.Errorf("line %d: %w", r.LineNumber(), err)
		}
	}
	return tw.Flush()
}
