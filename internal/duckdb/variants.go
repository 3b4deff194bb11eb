package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/bamcall/internal/allele"
	"github.com/inodb/bamcall/internal/variant"
)

// callKey is the composite key for deduplicating calls before writing.
type callKey struct {
	chrom, ref, alt string
	pos             int64
}

// WriteCalls batch-inserts the calls of one run using the Appender API.
// Duplicate (chrom, pos, ref, alt) entries keep the first occurrence.
func (s *Store) WriteCalls(runID int64, records []variant.Record) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[callKey]bool, len(records))

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "variant_calls")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range records {
		k := callKey{r.Chrom, r.Ref, r.Alt, r.Pos}
		if seen[k] {
			continue
		}
		seen[k] = true

		if err := appender.AppendRow(
			runID, r.Chrom, r.Pos, r.Ref, r.Alt,
			int32(r.Depth), r.AF,
			int32(r.RefCounts.Forward), int32(r.RefCounts.Reverse),
			int32(r.AltCounts.Forward), int32(r.AltCounts.Reverse),
			r.Indel,
		); err != nil {
			return fmt.Errorf("append variant call: %w", err)
		}
	}

	return appender.Flush()
}

// ClearCalls removes every stored call and run.
func (s *Store) ClearCalls() error {
	if _, err := s.db.Exec("DELETE FROM variant_calls"); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM runs")
	return err
}

// Filter selects stored calls. Zero values match everything; Start and End
// are inclusive 1-based positions.
type Filter struct {
	RunID int64
	Chrom string
	Start int64
	End   int64
	MinAF float64
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.RunID > 0 {
		conds = append(conds, "run_id=?")
		args = append(args, f.RunID)
	}
	if f.Chrom != "" {
		conds = append(conds, "chrom=?")
		args = append(args, f.Chrom)
	}
	if f.Start > 0 {
		conds = append(conds, "pos>=?")
		args = append(args, f.Start)
	}
	if f.End > 0 {
		conds = append(conds, "pos<=?")
		args = append(args, f.End)
	}
	if f.MinAF > 0 {
		conds = append(conds, "af>=?")
		args = append(args, f.MinAF)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// StoredCall is a variant call together with the run that produced it.
type StoredCall struct {
	RunID int64
	variant.Record
}

// QueryCalls returns the calls matching f ordered by run, chrom and position.
func (s *Store) QueryCalls(f Filter) ([]StoredCall, error) {
	where, args := f.where()
	rows, err := s.db.Query(`SELECT
		run_id, chrom, pos, ref, alt, dp, af,
		ref_fwd, ref_rev, alt_fwd, alt_rev, indel
		FROM variant_calls`+where+`
		ORDER BY run_id, chrom, pos, ref, alt`, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var calls []StoredCall
	for rows.Next() {
		var c StoredCall
		var dp, refFwd, refRev, altFwd, altRev int32
		if err := rows.Scan(
			&c.RunID, &c.Chrom, &c.Pos, &c.Ref, &c.Alt, &dp, &c.AF,
			&refFwd, &refRev, &altFwd, &altRev, &c.Indel,
		); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Depth = int(dp)
		c.RefCounts = allele.Counts{Forward: int(refFwd), Reverse: int(refRev)}
		c.AltCounts = allele.Counts{Forward: int(altFwd), Reverse: int(altRev)}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}
