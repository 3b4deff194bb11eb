package variant

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/bamcall/internal/pileup"
	"github.com/inodb/bamcall/internal/reference"
)

// SequenceSource resolves reference sequences by name.
type SequenceSource interface {
	Sequence(name string) (*reference.Sequence, error)
}

// RecordWriter defines the interface for writing called variants.
type RecordWriter interface {
	WriteHeader() error
	Write(rec *Record) error
	Flush() error
}

// Caller runs variant calling over every column of a pileup.
type Caller struct {
	opts   Options
	logger *zap.Logger
}

// NewCaller creates a variant caller.
func NewCaller(opts Options) *Caller {
	return &Caller{opts: opts, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress messages.
func (c *Caller) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Call runs every column through the worker pool and returns all records in
// column order. Any failure aborts the run and no records are returned.
func (c *Caller) Call(reader pileup.ColumnReader, seqs SequenceSource) ([]Record, error) {
	workers := c.opts.Workers
	items := make(chan WorkItem, 2*max(workers, 1))
	stop := make(chan struct{})
	var readErr error
	columns := 0

	go func() {
		defer close(items)
		var cur *reference.Sequence
		seq := 0
		for {
			col, err := reader.Next()
			if err != nil {
				readErr = fmt.Errorf("read pileup: %w", err)
				return
			}
			if col == nil {
				return
			}
			if cur == nil || cur.Name != col.Ref {
				cur, err = seqs.Sequence(col.Ref)
				if err != nil {
					readErr = err
					return
				}
			}
			columns++

			select {
			case items <- WorkItem{Seq: seq, Column: col, Ref: cur}:
				seq++
			case <-stop:
				return
			}
		}
	}()

	results := ParallelCall(items, workers, c.opts)

	var records []Record
	err := OrderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			close(stop)
			return r.Err
		}
		records = append(records, r.Records...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}

	c.logger.Info("variant calling complete",
		zap.Int("columns", columns),
		zap.Int("variants", len(records)))
	return records, nil
}

// CallAll calls every column and writes the records only once the whole
// pileup has been processed successfully.
func (c *Caller) CallAll(reader pileup.ColumnReader, seqs SequenceSource, writer RecordWriter) error {
	records, err := c.Call(reader, seqs)
	if err != nil {
		return err
	}

	return WriteAll(writer, records)
}

// WriteAll writes the header, every record and flushes.
func WriteAll(writer RecordWriter, records []Record) error {
	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range records {
		if err := writer.Write(&records[i]); err != nil {
			return fmt.Errorf("write variant: %w", err)
		}
	}
	return writer.Flush()
}
