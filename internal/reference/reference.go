// Package reference provides read-only access to reference FASTA sequences.
package reference

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/biogo/hts/fai"
	"go.uber.org/zap"

	"github.com/inodb/bamcall/internal/pileup"
)

// Sequence is an immutable upper-case reference sequence. It is safe for
// concurrent use.
type Sequence struct {
	Name  string
	bases string
}

// NewSequence creates a sequence, upper-casing the bases.
func NewSequence(name, bases string) *Sequence {
	return &Sequence{Name: name, bases: strings.ToUpper(bases)}
}

// Len returns the sequence length.
func (s *Sequence) Len() int {
	return len(s.bases)
}

// Fetch returns up to length bases starting at the 0-based offset.
// Requests past the end are truncated.
func (s *Sequence) Fetch(offset, length int) string {
	if offset < 0 || length <= 0 || offset >= len(s.bases) {
		return ""
	}
	end := offset + length
	if end > len(s.bases) {
		end = len(s.bases)
	}
	return s.bases[offset:end]
}

// Base returns the base at the 0-based position, or 'N' outside the sequence.
func (s *Sequence) Base(pos int) byte {
	if pos < 0 || pos >= len(s.bases) {
		return 'N'
	}
	return s.bases[pos]
}

// Set is a reference FASTA. Plain files are read through a .fai index
// (built on open when absent); gzipped files are loaded into memory.
type Set struct {
	path   string
	file   *os.File
	fa     *fai.File
	index  fai.Index
	logger *zap.Logger

	mu     sync.Mutex
	loaded map[string]*Sequence
}

// Open opens a reference FASTA file.
func Open(path string) (*Set, error) {
	s := &Set{
		path:   path,
		logger: zap.NewNop(),
		loaded: make(map[string]*Sequence),
	}

	if strings.HasSuffix(path, ".gz") {
		if err := s.loadGzip(); err != nil {
			return nil, err
		}
		return s, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference: %w", err)
	}

	idx, err := readIndex(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	s.file = f
	s.index = idx
	s.fa = fai.NewFile(f, idx)
	return s, nil
}

// readIndex reads path.fai when present and otherwise indexes the FASTA.
func readIndex(path string, f *os.File) (fai.Index, error) {
	if idxFile, err := os.Open(path + ".fai"); err == nil {
		defer idxFile.Close()
		idx, err := fai.ReadFrom(idxFile)
		if err != nil {
			return nil, fmt.Errorf("read fasta index: %w", err)
		}
		return idx, nil
	}

	idx, err := fai.NewIndex(f)
	if err != nil {
		return nil, fmt.Errorf("index reference: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek reference: %w", err)
	}
	return idx, nil
}

// loadGzip streams a gzipped FASTA into memory.
func (s *Set) loadGzip() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open reference: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip reader: %w", err)
	}
	defer gz.Close()

	seqs, err := ParseFASTA(gz)
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		s.loaded[seq.Name] = seq
	}
	return nil
}

// SetLogger sets the logger for warning messages.
func (s *Set) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Names returns the sequence names available in the reference.
func (s *Set) Names() []string {
	var names []string
	if s.index != nil {
		for name := range s.index {
			names = append(names, name)
		}
		return names
	}
	for name := range s.loaded {
		names = append(names, name)
	}
	return names
}

// Sequence returns the named sequence, reading it on first use.
func (s *Set) Sequence(name string) (*Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.loaded[name]; ok {
		return seq, nil
	}
	if s.fa == nil {
		return nil, fmt.Errorf("reference sequence %q not found", name)
	}

	rec, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("reference sequence %q not found", name)
	}
	rs, err := s.fa.SeqRange(name, 0, rec.Length)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	b, err := io.ReadAll(rs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	seq := NewSequence(name, string(b))
	s.loaded[name] = seq
	return seq, nil
}

// CheckLengths compares reference lengths with the alignment header and
// returns the number of mismatching or missing sequences.
func (s *Set) CheckLengths(refs []pileup.Reference) int {
	bad := 0
	for _, ref := range refs {
		seq, err := s.Sequence(ref.Name)
		if err != nil {
			s.logger.Warn("reference missing from fasta", zap.String("ref", ref.Name))
			bad++
			continue
		}
		if seq.Len() != ref.Length {
			s.logger.Warn("inconsistent reference length",
				zap.String("ref", ref.Name),
				zap.Int("bam_length", ref.Length),
				zap.Int("fasta_length", seq.Len()))
			bad++
		}
	}
	return bad
}

// Close closes the underlying file.
func (s *Set) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// ParseFASTA reads every record of a FASTA stream. Names are taken up to
// the first whitespace of the header line.
func ParseFASTA(r io.Reader) ([]*Sequence, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var seqs []*Sequence
	var name string
	var cur bytes.Buffer
	flush := func() {
		if name != "" {
			seqs = append(seqs, NewSequence(name, cur.String()))
		}
		cur.Reset()
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 && line[0] == '>' {
			flush()
			header := strings.TrimSpace(string(line[1:]))
			if fields := strings.Fields(header); len(fields) > 0 {
				name = fields[0]
			} else {
				name = ""
			}
			continue
		}
		cur.Write(bytes.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan fasta: %w", err)
	}
	flush()

	return seqs, nil
}
