// Package output provides FASTA, VCF and TSV formatters.
package output

import (
	"bufio"
	"io"

	"github.com/inodb/bamcall/internal/consensus"
)

// FASTAWriter writes consensus records, one unwrapped sequence line each.
type FASTAWriter struct {
	w *bufio.Writer
}

// NewFASTAWriter creates a new FASTA writer.
func NewFASTAWriter(w io.Writer) *FASTAWriter {
	return &FASTAWriter{w: bufio.NewWriter(w)}
}

// Write writes one record. Empty sequences are skipped.
func (fw *FASTAWriter) Write(rec consensus.Record) error {
	if rec.Sequence == "" {
		return nil
	}
	fw.w.WriteByte('>')
	fw.w.WriteString(rec.Name)
	fw.w.WriteByte('\n')
	fw.w.WriteString(rec.Sequence)
	_, err := fw.w.WriteString("\n")
	return err
}

// Flush flushes any buffered data.
func (fw *FASTAWriter) Flush() error {
	return fw.w.Flush()
}
