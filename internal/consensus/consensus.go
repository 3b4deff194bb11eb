// Package consensus builds plurality-vote consensus sequences from pileups.
package consensus

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/bamcall/internal/allele"
	"github.com/inodb/bamcall/internal/pileup"
)

// Options configures consensus calling.
type Options struct {
	MinDepth int    // columns with fewer aligned reads become N
	KeepGap  bool   // fill uncovered reference stretches with N
	KeepDel  bool   // emit '-' for deletion winners instead of dropping them
	Name     string // sequence name override; default <reference>_consensus
	Strict   bool   // reject malformed observations
}

// DefaultOptions are the consensus defaults.
var DefaultOptions = Options{MinDepth: 1}

// Record is one consensus sequence.
type Record struct {
	Name     string
	Ref      string
	Sequence string
}

// ErrFinished is returned when a column is observed after Finish.
var ErrFinished = errors.New("consensus builder already finished")

type state uint8

const (
	stateNormal state = iota
	stateDone
)

// Builder consumes the columns of one reference in position order.
type Builder struct {
	ref     pileup.Reference
	opts    Options
	seq     strings.Builder
	prev    int
	columns int
	state   state
}

// NewBuilder creates a consensus builder for ref.
func NewBuilder(ref pileup.Reference, opts Options) *Builder {
	return &Builder{ref: ref, opts: opts, prev: -1}
}

// Observe appends the consensus symbol for col.
func (b *Builder) Observe(col *pileup.Column) error {
	if b.state == stateDone {
		return ErrFinished
	}
	if col.Pos <= b.prev {
		return fmt.Errorf("column %s:%d out of order", col.Ref, col.Pos+1)
	}

	// Uncovered stretch since the previous column, including a leading one.
	if col.Pos != b.prev+1 && b.opts.KeepGap {
		b.seq.WriteString(strings.Repeat("N", col.Pos-b.prev-1))
	}
	b.prev = col.Pos
	b.columns++

	if col.Aligned < b.opts.MinDepth {
		b.seq.WriteByte('N')
		return nil
	}

	obs, err := allele.ParseObservations(col.Observations, b.opts.Strict)
	if err != nil {
		return fmt.Errorf("%s:%d: %w", col.Ref, col.Pos+1, err)
	}

	best := allele.Plurality(obs)
	if best == allele.Placeholder {
		if b.opts.KeepDel {
			b.seq.WriteByte('-')
		}
		return nil
	}
	b.seq.WriteString(best)
	return nil
}

// Finish closes the builder. The second result is false when the reference
// had no columns or produced an empty sequence.
func (b *Builder) Finish() (Record, bool) {
	if b.state != stateDone && b.opts.KeepGap && b.columns > 0 {
		if gap := b.ref.Length - b.prev - 1; gap > 0 {
			b.seq.WriteString(strings.Repeat("N", gap))
		}
	}
	b.state = stateDone

	if b.columns == 0 || b.seq.Len() == 0 {
		return Record{}, false
	}

	name := b.opts.Name
	if name == "" {
		name = b.ref.Name + "_consensus"
	}
	return Record{Name: name, Ref: b.ref.Name, Sequence: b.seq.String()}, true
}

// Caller runs consensus calling over every reference of a pileup.
type Caller struct {
	opts   Options
	logger *zap.Logger
}

// NewCaller creates a consensus caller.
func NewCaller(opts Options) *Caller {
	return &Caller{opts: opts, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress messages.
func (c *Caller) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Run builds one record per reference with a non-empty consensus, in
// header order.
func (c *Caller) Run(reader pileup.ColumnReader) ([]Record, error) {
	refs := reader.References()
	byName := make(map[string]int, len(refs))
	for i, ref := range refs {
		byName[ref.Name] = i
	}
	builders := make([]*Builder, len(refs))

	var cur *Builder
	curIdx := -1
	for {
		col, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("read pileup: %w", err)
		}
		if col == nil {
			break
		}

		idx, ok := byName[col.Ref]
		if !ok {
			return nil, fmt.Errorf("column on unknown reference %q", col.Ref)
		}
		if idx != curIdx {
			if builders[idx] != nil {
				return nil, fmt.Errorf("columns for %s are not contiguous", col.Ref)
			}
			cur = NewBuilder(refs[idx], c.opts)
			builders[idx] = cur
			curIdx = idx
		}
		if err := cur.Observe(col); err != nil {
			return nil, err
		}
	}

	var records []Record
	for i, b := range builders {
		if b == nil {
			c.logger.Debug("no pileup columns", zap.String("ref", refs[i].Name))
			continue
		}
		rec, ok := b.Finish()
		if !ok {
			c.logger.Debug("empty consensus", zap.String("ref", refs[i].Name))
			continue
		}
		c.logger.Info("consensus built",
			zap.String("ref", rec.Ref),
			zap.Int("columns", b.columns),
			zap.Int("length", len(rec.Sequence)))
		records = append(records, rec)
	}
	return records, nil
}
