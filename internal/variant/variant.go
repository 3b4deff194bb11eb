// Package variant calls frequency-filtered alleles from pileup columns.
package variant

import (
	"fmt"

	"github.com/inodb/bamcall/internal/allele"
	"github.com/inodb/bamcall/internal/pileup"
)

// Options configures variant calling.
type Options struct {
	MinDepth int     // columns with fewer aligned reads produce no records
	MinAF    float64 // alleles below this frequency are not reported
	Workers  int     // column workers; 0 uses runtime.NumCPU()
	Strict   bool    // reject malformed observations
}

// DefaultOptions are the variant calling defaults.
var DefaultOptions = Options{
	MinDepth: 10,
	MinAF:    0.01,
	Workers:  1,
}

// Record is one reported alternate allele.
type Record struct {
	Chrom     string
	Pos       int64 // 1-based position
	Ref       string
	Alt       string
	Depth     int
	AF        float64
	RefCounts allele.Counts
	AltCounts allele.Counts
	Indel     bool
}

// CallColumn returns the records for one column. It has no side effects and
// is safe to run concurrently for different columns sharing ref.
func CallColumn(col *pileup.Column, ref allele.Reference, opts Options) ([]Record, error) {
	if col.Aligned < opts.MinDepth {
		return nil, nil
	}

	obs, err := allele.ParseObservations(col.Observations, opts.Strict)
	if err != nil {
		return nil, fmt.Errorf("%s:%d: %w", col.Ref, col.Pos+1, err)
	}

	tally := allele.Aggregate(col.Pos, col.Aligned, obs, ref)
	ranked := tally.Rank()

	var records []Record
	for _, r := range ranked[1:] {
		// Pairs that collapse onto the reference are never variants.
		if r.Key.Ref == r.Key.Alt {
			continue
		}
		if r.Frequency < opts.MinAF {
			continue
		}
		records = append(records, Record{
			Chrom:     col.Ref,
			Pos:       int64(col.Pos) + 1,
			Ref:       r.Key.Ref,
			Alt:       r.Key.Alt,
			Depth:     col.Aligned,
			AF:        r.Frequency,
			RefCounts: ranked[0].Counts,
			AltCounts: r.Counts,
			Indel:     r.Key.IsIndel(),
		})
	}
	return records, nil
}
