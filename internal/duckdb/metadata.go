package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

func (fp FileFingerprint) modTime() string {
	return fp.ModTime.UTC().Format(time.RFC3339Nano)
}

// Run describes one variant calling run.
type Run struct {
	ID        int64
	BAM       FileFingerprint
	Reference string
	MinDepth  int
	MinAF     float64
}

// CreateRun records a run and returns its id.
func (s *Store) CreateRun(r Run) (int64, error) {
	var id int64
	if err := s.db.QueryRow("SELECT COALESCE(MAX(run_id), 0) + 1 FROM runs").Scan(&id); err != nil {
		return 0, fmt.Errorf("next run id: %w", err)
	}

	if _, err := s.db.Exec(`INSERT INTO runs
		(run_id, bam_path, bam_size, bam_modtime, reference, min_depth, min_af)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, r.BAM.Path, r.BAM.Size, r.BAM.modTime(), r.Reference, r.MinDepth, r.MinAF,
	); err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FindRun returns the most recent run for an identical BAM file and
// thresholds. The second result is false when there is none.
func (s *Store) FindRun(bam FileFingerprint, minDepth int, minAF float64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT run_id FROM runs
		WHERE bam_path=? AND bam_size=? AND bam_modtime=? AND min_depth=? AND min_af=?
		ORDER BY run_id DESC LIMIT 1`,
		bam.Path, bam.Size, bam.modTime(), minDepth, minAF,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find run: %w", err)
	}
	return id, true, nil
}

// Runs lists every recorded run in id order.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, bam_path, bam_size, bam_modtime, reference, min_depth, min_af
		FROM runs ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var modTime string
		if err := rows.Scan(&r.ID, &r.BAM.Path, &r.BAM.Size, &modTime, &r.Reference, &r.MinDepth, &r.MinAF); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.BAM.ModTime, err = time.Parse(time.RFC3339Nano, modTime)
		if err != nil {
			return nil, fmt.Errorf("parse run %d modtime: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and its calls.
func (s *Store) DeleteRun(id int64) error {
	if _, err := s.db.Exec("DELETE FROM variant_calls WHERE run_id=?", id); err != nil {
		return fmt.Errorf("delete calls: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM runs WHERE run_id=?", id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
