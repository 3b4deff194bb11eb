// Package vcf reads annotated VCF files.
package vcf

// VariantReader is the interface for readers that yield VCF records.
type VariantReader interface {
	// Next reads the next record.
	// Returns nil, nil when there are no more records.
	Next() (*Variant, error)

	// Close releases the underlying resources.
	Close() error

	// LineNumber returns the line number of the last record read.
	LineNumber() int
}
