// Package pileup produces per-position pileup columns from aligned reads.
package pileup

// Column is every read observation aligned against one reference position.
type Column struct {
	Ref          string   // reference name
	RefID        int      // index of the reference in the alignment header
	Pos          int      // 0-based reference position
	Observations []string // per-read tokens in pileup text encoding
	Aligned      int      // aligned reads, including reads deleted at Pos
}

// Reference describes a sequence declared by the alignment header.
type Reference struct {
	ID     int
	Name   string
	Length int
}

// ColumnReader is the interface for sources of position-ordered columns.
type ColumnReader interface {
	// References returns the references in header order.
	References() []Reference

	// Next reads the next column.
	// Returns nil, nil when there are no more columns.
	Next() (*Column, error)

	// Close releases resources.
	Close() error
}

// SliceReader serves a fixed set of columns.
type SliceReader struct {
	refs    []Reference
	columns []*Column
	next    int
}

// NewSliceReader creates a reader over columns, which must already be
// ordered by reference and position.
func NewSliceReader(refs []Reference, columns []*Column) *SliceReader {
	return &SliceReader{refs: refs, columns: columns}
}

func (s *SliceReader) References() []Reference { return s.refs }

func (s *SliceReader) Next() (*Column, error) {
	if s.next >= len(s.columns) {
		return nil, nil
	}
	c := s.columns[s.next]
	s.next++
	return c, nil
}

func (s *SliceReader) Close() error { return nil }
