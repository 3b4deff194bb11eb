package pileup

import (
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"go.uber.org/zap"
)

// Options configures a BAMReader.
type Options struct {
	MaxDepth int // observations kept per column; 0 disables the cap
}

// DefaultOptions mirrors the samtools-style pileup defaults.
var DefaultOptions = Options{MaxDepth: DefaultMaxDepth}

// BAMReader produces pileup columns from a coordinate-sorted BAM file.
type BAMReader struct {
	file   *os.File
	br     *bam.Reader
	refs   []Reference
	opts   Options
	logger *zap.Logger

	builder *ColumnBuilder
	curRef  int
	lastPos int
	ready   []*Column
	done    bool

	records int
	skipped int
}

// OpenBAM opens a BAM file for pileup.
func OpenBAM(path string, opts Options) (*BAMReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bam file: %w", err)
	}
	r, err := NewBAMReader(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewBAMReader creates a pileup reader from BAM data.
func NewBAMReader(r io.Reader, opts Options) (*BAMReader, error) {
	br, err := bam.NewReader(r, 0)
	if err != nil {
		return nil, fmt.Errorf("read bam header: %w", err)
	}

	hdrRefs := br.Header().Refs()
	refs := make([]Reference, len(hdrRefs))
	for i, ref := range hdrRefs {
		refs[i] = Reference{ID: ref.ID(), Name: ref.Name(), Length: ref.Len()}
	}

	return &BAMReader{
		br:     br,
		refs:   refs,
		opts:   opts,
		logger: zap.NewNop(),
		curRef: -1,
	}, nil
}

// SetLogger sets the logger for progress messages.
func (r *BAMReader) SetLogger(l *zap.Logger) {
	r.logger = l
}

// References returns the references declared in the BAM header.
func (r *BAMReader) References() []Reference {
	return r.refs
}

// Next returns the next column in reference and position order.
// Returns nil, nil when there are no more columns.
func (r *BAMReader) Next() (*Column, error) {
	for len(r.ready) == 0 {
		if r.done {
			return nil, nil
		}
		if err := r.readRecord(); err != nil {
			return nil, err
		}
	}
	c := r.ready[0]
	r.ready = r.ready[1:]
	return c, nil
}

func (r *BAMReader) readRecord() error {
	rec, err := r.br.Read()
	if err == io.EOF {
		r.done = true
		if r.builder != nil {
			r.ready = append(r.ready, r.builder.FlushAll()...)
		}
		r.logger.Debug("bam exhausted",
			zap.Int("records", r.records),
			zap.Int("skipped", r.skipped))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read bam record: %w", err)
	}
	r.records++

	if rec.Flags&SkipFlags != 0 || rec.Ref == nil || rec.Ref.ID() < 0 {
		r.skipped++
		return nil
	}

	refID := rec.Ref.ID()
	switch {
	case refID < r.curRef:
		return fmt.Errorf("bam is not coordinate sorted: %s after %s", rec.Ref.Name(), r.refs[r.curRef].Name)
	case refID > r.curRef:
		if r.builder != nil {
			r.ready = append(r.ready, r.builder.FlushAll()...)
		}
		r.curRef = refID
		r.lastPos = -1
		r.builder = NewColumnBuilder(r.refs[refID], r.opts.MaxDepth)
		r.logger.Debug("pileup reference", zap.String("ref", rec.Ref.Name()))
	}

	if rec.Pos < r.lastPos {
		return fmt.Errorf("bam is not coordinate sorted: %s:%d after %d", rec.Ref.Name(), rec.Pos+1, r.lastPos+1)
	}
	r.lastPos = rec.Pos

	r.ready = append(r.ready, r.builder.Flush(rec.Pos)...)
	r.builder.Add(rec)
	return nil
}

// Close closes the BAM reader and the underlying file.
func (r *BAMReader) Close() error {
	err := r.br.Close()
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
