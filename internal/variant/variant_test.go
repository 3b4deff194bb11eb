package variant

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/bamcall/internal/allele"
	"github.com/inodb/bamcall/internal/pileup"
	"github.com/inodb/bamcall/internal/reference"
)

func repeat(tok string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = tok
	}
	return out
}

// mixedColumn has 10 forward and 5 reverse T calls over an A reference, plus
// 3 forward and 2 reverse reference calls.
func mixedColumn() *pileup.Column {
	var obs []string
	obs = append(obs, repeat("T", 10)...)
	obs = append(obs, repeat("t", 5)...)
	obs = append(obs, repeat("A", 3)...)
	obs = append(obs, repeat("a", 2)...)
	return &pileup.Column{Ref: "chr1", Pos: 4, Observations: obs, Aligned: len(obs)}
}

var chr1 = reference.NewSequence("chr1", "CCCCAGTTGACC")

func TestCallColumn_Substitution(t *testing.T) {
	opts := DefaultOptions
	opts.MinAF = 0.1

	recs, err := CallColumn(mixedColumn(), chr1, opts)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "chr1", rec.Chrom)
	assert.Equal(t, int64(5), rec.Pos)
	assert.Equal(t, "A", rec.Ref)
	assert.Equal(t, "T", rec.Alt)
	assert.Equal(t, 20, rec.Depth)
	assert.InDelta(t, 0.75, rec.AF, 1e-9)
	assert.Equal(t, allele.Counts{Forward: 3, Reverse: 2}, rec.RefCounts)
	assert.Equal(t, allele.Counts{Forward: 10, Reverse: 5}, rec.AltCounts)
	assert.False(t, rec.Indel)
}

func TestCallColumn_BelowMinAF(t *testing.T) {
	opts := DefaultOptions
	opts.MinAF = 0.8

	recs, err := CallColumn(mixedColumn(), chr1, opts)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCallColumn_BelowMinDepth(t *testing.T) {
	col := &pileup.Column{Ref: "chr1", Pos: 4, Observations: repeat("T", 9), Aligned: 9}

	recs, err := CallColumn(col, chr1, DefaultOptions)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCallColumn_Indels(t *testing.T) {
	var obs []string
	obs = append(obs, repeat("A", 6)...)
	obs = append(obs, repeat("A-2NN", 3)...)
	obs = append(obs, repeat("a+1c", 1)...)
	col := &pileup.Column{Ref: "chr1", Pos: 4, Observations: obs, Aligned: len(obs)}

	recs, err := CallColumn(col, chr1, DefaultOptions)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "AGT", recs[0].Ref)
	assert.Equal(t, "A", recs[0].Alt)
	assert.True(t, recs[0].Indel)
	assert.Equal(t, allele.Counts{Forward: 3}, recs[0].AltCounts)
	assert.InDelta(t, 0.3, recs[0].AF, 1e-9)

	assert.Equal(t, "A", recs[1].Ref)
	assert.Equal(t, "AC", recs[1].Alt)
	assert.True(t, recs[1].Indel)
	assert.Equal(t, allele.Counts{Reverse: 1}, recs[1].AltCounts)
}

func TestCallColumn_PlaceholdersCountTowardDepth(t *testing.T) {
	var obs []string
	obs = append(obs, repeat("*", 10)...)
	obs = append(obs, repeat("G", 10)...)
	col := &pileup.Column{Ref: "chr1", Pos: 4, Observations: obs, Aligned: len(obs)}

	recs, err := CallColumn(col, chr1, DefaultOptions)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "G", recs[0].Alt)
	assert.Equal(t, 20, recs[0].Depth)
	assert.InDelta(t, 0.5, recs[0].AF, 1e-9)
}

func TestCallColumn_StrictError(t *testing.T) {
	opts := DefaultOptions
	opts.Strict = true
	col := &pileup.Column{Ref: "chr1", Pos: 4, Observations: append(repeat("A", 10), "A+2T"), Aligned: 11}

	_, err := CallColumn(col, chr1, opts)
	require.Error(t, err)
	var mErr *allele.MalformedObservationError
	assert.True(t, errors.As(err, &mErr))
	assert.Contains(t, err.Error(), "chr1:5")
}

type mapSource map[string]*reference.Sequence

func (m mapSource) Sequence(name string) (*reference.Sequence, error) {
	if s, ok := m[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("reference sequence %q not found", name)
}

type memWriter struct {
	header  bool
	records []Record
	flushed bool
}

func (w *memWriter) WriteHeader() error      { w.header = true; return nil }
func (w *memWriter) Write(rec *Record) error { w.records = append(w.records, *rec); return nil }
func (w *memWriter) Flush() error            { w.flushed = true; return nil }

func manyColumns(n int) []*pileup.Column {
	cols := make([]*pileup.Column, n)
	for i := range cols {
		obs := append(repeat("A", 5), repeat("c", 5)...)
		cols[i] = &pileup.Column{Ref: "chrL", Pos: i, Observations: obs, Aligned: len(obs)}
	}
	return cols
}

func TestCaller_OrderPreserved(t *testing.T) {
	refs := []pileup.Reference{{Name: "chrL", Length: 300}}
	seqs := mapSource{"chrL": reference.NewSequence("chrL", strings.Repeat("A", 300))}

	opts := DefaultOptions
	opts.Workers = 8
	w := &memWriter{}
	err := NewCaller(opts).CallAll(pileup.NewSliceReader(refs, manyColumns(300)), seqs, w)
	require.NoError(t, err)

	assert.True(t, w.header)
	assert.True(t, w.flushed)
	require.Len(t, w.records, 300)
	for i, rec := range w.records {
		assert.Equal(t, int64(i+1), rec.Pos, "record %d out of order", i)
		assert.Equal(t, "C", rec.Alt)
	}
}

func TestCaller_ErrorWritesNothing(t *testing.T) {
	refs := []pileup.Reference{{Name: "chrL", Length: 300}}
	seqs := mapSource{"chrL": reference.NewSequence("chrL", strings.Repeat("A", 300))}
	cols := manyColumns(300)
	cols[150].Observations[0] = "A+3T"

	opts := DefaultOptions
	opts.Workers = 4
	opts.Strict = true
	w := &memWriter{}
	err := NewCaller(opts).CallAll(pileup.NewSliceReader(refs, cols), seqs, w)
	require.Error(t, err)

	assert.False(t, w.header)
	assert.Empty(t, w.records)
	assert.False(t, w.flushed)
}

func TestCaller_MissingReference(t *testing.T) {
	refs := []pileup.Reference{{Name: "chrL", Length: 300}}
	w := &memWriter{}
	err := NewCaller(DefaultOptions).CallAll(pileup.NewSliceReader(refs, manyColumns(3)), mapSource{}, w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.False(t, w.header)
}

func TestCaller_MultipleReferences(t *testing.T) {
	refs := []pileup.Reference{{Name: "chr1", Length: 12}, {Name: "chr2", Length: 4}}
	seqs := mapSource{
		"chr1": chr1,
		"chr2": reference.NewSequence("chr2", "GGGG"),
	}
	chr2 := &pileup.Column{Ref: "chr2", Pos: 1, Observations: append(repeat("G", 5), repeat("T", 5)...), Aligned: 10}

	opts := DefaultOptions
	opts.MinAF = 0.1
	opts.Workers = 2
	recs, err := NewCaller(opts).Call(pileup.NewSliceReader(refs, []*pileup.Column{mixedColumn(), chr2}), seqs)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "chr1", recs[0].Chrom)
	assert.Equal(t, "chr2", recs[1].Chrom)
	assert.Equal(t, int64(2), recs[1].Pos)
	assert.Equal(t, "G", recs[1].Ref)
}

func TestParallelCall_EmptyInput(t *testing.T) {
	ch := make(chan WorkItem)
	close(ch)

	results := ParallelCall(ch, 4, DefaultOptions)
	count := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestOrderedCollect_EarlyError(t *testing.T) {
	ref := reference.NewSequence("chrL", strings.Repeat("A", 100))
	items := make(chan WorkItem, 100)
	for i, col := range manyColumns(100) {
		items <- WorkItem{Seq: i, Column: col, Ref: ref}
	}
	close(items)

	results := ParallelCall(items, 4, DefaultOptions)

	count := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		count++
		if count == 5 {
			return fmt.Errorf("stop at 5")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 5, count)
}
