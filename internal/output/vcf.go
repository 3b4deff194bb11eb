package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/inodb/bamcall/internal/pileup"
	"github.com/inodb/bamcall/internal/variant"
)

// VCFHeader describes the run that produced a VCF.
type VCFHeader struct {
	Source    string // command line
	Reference string // reference FASTA path
	Contigs   []pileup.Reference
	MinAF     float64
	MinDepth  int
	Date      time.Time // zero means now
}

var infoLines = []string{
	`##INFO=<ID=DP,Number=1,Type=Integer,Description="Raw Depth">`,
	`##INFO=<ID=AF,Number=1,Type=Float,Description="Allele Frequency">`,
	`##INFO=<ID=DP4,Number=4,Type=Integer,Description="Counts for ref-forward bases, ref-reverse, alt-forward and alt-reverse bases">`,
	`##INFO=<ID=INDEL,Number=0,Type=Flag,Description="Indicates that the variant is an INDEL">`,
}

// VCFWriter writes called variants as VCF.
type VCFWriter struct {
	w      *bufio.Writer
	header VCFHeader
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer, header VCFHeader) *VCFWriter {
	return &VCFWriter{w: bufio.NewWriter(w), header: header}
}

// WriteHeader writes the meta-information lines and the #CHROM line.
func (vw *VCFWriter) WriteHeader() error {
	h := vw.header
	date := h.Date
	if date.IsZero() {
		date = time.Now()
	}

	vw.w.WriteString("##fileformat=VCFv4.0\n")
	fmt.Fprintf(vw.w, "##fileDate=%s\n", date.Format("20060102"))
	fmt.Fprintf(vw.w, "##source=%s\n", h.Source)
	fmt.Fprintf(vw.w, "##reference=%s\n", h.Reference)
	for _, c := range h.Contigs {
		fmt.Fprintf(vw.w, "##contig=<ID=%s,length=%d>\n", c.Name, c.Length)
	}
	for _, line := range infoLines {
		vw.w.WriteString(line)
		vw.w.WriteByte('\n')
	}
	fmt.Fprintf(vw.w, "##FILTER=<ID=minaf%s,Description=\"Allele frequency below indicated minimum\">\n",
		strconv.FormatFloat(h.MinAF, 'g', -1, 64))
	fmt.Fprintf(vw.w, "##FILTER=<ID=mindp%d,Description=\"Total depth below indicated minimum\">\n", h.MinDepth)
	_, err := vw.w.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n")
	return err
}

// Write writes one variant line.
func (vw *VCFWriter) Write(rec *variant.Record) error {
	_, err := vw.w.WriteString(FormatVCFLine(rec) + "\n")
	return err
}

// Flush flushes any buffered data.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}

// FormatVCFLine renders a record as a tab-separated VCF body line without
// the trailing newline.
func FormatVCFLine(rec *variant.Record) string {
	var b strings.Builder
	b.WriteString(rec.Chrom)
	b.WriteByte('\t')
	b.WriteString(strconv.FormatInt(rec.Pos, 10))
	b.WriteString("\t.\t")
	b.WriteString(rec.Ref)
	b.WriteByte('\t')
	b.WriteString(rec.Alt)
	b.WriteString("\t.\tPASS\t")
	b.WriteString(FormatInfo(rec))
	return b.String()
}

// FormatInfo renders the INFO column of a record.
func FormatInfo(rec *variant.Record) string {
	s := fmt.Sprintf("DP=%d;AF=%.6f;DP4=%d,%d,%d,%d",
		rec.Depth, rec.AF,
		rec.RefCounts.Forward, rec.RefCounts.Reverse,
		rec.AltCounts.Forward, rec.AltCounts.Reverse)
	if rec.Indel {
		s += ";INDEL"
	}
	return s
}
