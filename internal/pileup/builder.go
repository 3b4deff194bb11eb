package pileup

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/biogo/hts/sam"
)

// DefaultMaxDepth caps the number of observations kept per column.
const DefaultMaxDepth = 8000

// SkipFlags are the record flags excluded from the pileup.
const SkipFlags = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate

// ColumnBuilder accumulates records of a single reference into columns.
// Records must be added in coordinate order.
type ColumnBuilder struct {
	ref      Reference
	maxDepth int
	pending  map[int]*Column
}

// NewColumnBuilder creates a builder for ref. A maxDepth of 0 disables the cap.
func NewColumnBuilder(ref Reference, maxDepth int) *ColumnBuilder {
	return &ColumnBuilder{
		ref:      ref,
		maxDepth: maxDepth,
		pending:  make(map[int]*Column),
	}
}

// Add walks the record's CIGAR and records one observation per covered
// reference position.
func (b *ColumnBuilder) Add(r *sam.Record) {
	seq := r.Seq.Expand()
	if len(seq) == 0 {
		return
	}
	reverse := r.Flags&sam.Reverse != 0

	refPos, readPos := r.Pos, 0
	for i, co := range r.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for j := 0; j < n && readPos+j < len(seq); j++ {
				tok := []byte{seq[readPos+j]}
				if j == n-1 && i+1 < len(r.Cigar) {
					tok = appendIndel(tok, r.Cigar[i+1], seq, readPos+n)
				}
				b.observe(refPos+j, tok, reverse)
			}
			refPos += n
			readPos += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			readPos += n
		case sam.CigarDeletion:
			for j := 0; j < n; j++ {
				b.observe(refPos+j, []byte{'*'}, false)
			}
			refPos += n
		case sam.CigarSkipped:
			refPos += n
		}
	}
}

// appendIndel annotates the last base before an insertion or deletion.
func appendIndel(tok []byte, next sam.CigarOp, seq []byte, readPos int) []byte {
	n := next.Len()
	switch next.Type() {
	case sam.CigarInsertion:
		end := readPos + n
		if end > len(seq) {
			end = len(seq)
		}
		tok = append(tok, '+')
		tok = strconv.AppendInt(tok, int64(n), 10)
		tok = append(tok, seq[readPos:end]...)
	case sam.CigarDeletion:
		tok = append(tok, '-')
		tok = strconv.AppendInt(tok, int64(n), 10)
		tok = append(tok, bytes.Repeat([]byte{'N'}, n)...)
	}
	return tok
}

func (b *ColumnBuilder) observe(pos int, tok []byte, reverse bool) {
	c, ok := b.pending[pos]
	if !ok {
		c = &Column{Ref: b.ref.Name, RefID: b.ref.ID, Pos: pos}
		b.pending[pos] = c
	}
	if b.maxDepth > 0 && c.Aligned >= b.maxDepth {
		return
	}
	if reverse {
		tok = bytes.ToLower(tok)
	}
	c.Observations = append(c.Observations, string(tok))
	c.Aligned++
}

// Flush removes and returns the columns before pos, ordered by position.
func (b *ColumnBuilder) Flush(pos int) []*Column {
	var out []*Column
	for p, c := range b.pending {
		if p < pos {
			out = append(out, c)
			delete(b.pending, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	return out
}

// FlushAll removes and returns every pending column.
func (b *ColumnBuilder) FlushAll() []*Column {
	return b.Flush(int(^uint(0) >> 1))
}

// Pending returns the number of columns not yet flushed.
func (b *ColumnBuilder) Pending() int {
	return len(b.pending)
}
