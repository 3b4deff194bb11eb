package vcf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Parser reads records from a plain or gzip/BGZF compressed VCF.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	header     []string
}

// NewParser opens path, or stdin for "-". Compression is detected from
// the gzip magic bytes rather than the file name.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p := &Parser{file: file}
	br := bufio.NewReader(file)

	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read vcf header: %w", err)
	}

	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		// gzip.Reader reads concatenated members, which covers BGZF.
		p.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = br
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser over an uncompressed stream.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{reader: bufio.NewReader(r)}
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	p.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Parser) parseHeader() error {
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return &ParseError{Line: p.lineNumber, Message: "no #CHROM header line found"}
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		switch {
		case strings.HasPrefix(line, "##"):
			p.header = append(p.header, line)
		case strings.HasPrefix(line, "#CHROM"):
			p.header = append(p.header, line)
			return nil
		default:
			return &ParseError{Line: p.lineNumber, Message: "expected #CHROM header line"}
		}
	}
}

// Next reads the next record.
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line == "" {
			continue
		}
		return p.parseLine(line)
	}
}

func (p *Parser) parseLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || pos < 1 {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	qual := 0.0
	if fields[5] != "." {
		qual, err = strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("invalid quality: %s", fields[5]),
			}
		}
	}

	v := &Variant{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    fields[3],
		Alt:    fields[4],
		Qual:   qual,
		Filter: fields[6],
		Info:   parseInfo(fields[7]),
	}
	if len(fields) > 8 {
		v.SampleColumns = strings.Join(fields[8:], "\t")
	}
	return v, nil
}

// parseInfo splits the INFO column. Keys without a value are flags.
func parseInfo(info string) map[string]interface{} {
	result := make(map[string]interface{})
	if info == "." || info == "" {
		return result
	}

	for _, kv := range strings.Split(info, ";") {
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if ok {
			result[key] = value
		} else {
			result[key] = true
		}
	}
	return result
}

// Header returns the meta-information lines and the #CHROM line.
func (p *Parser) Header() []string {
	return p.header
}

// LineNumber returns the line number of the last line read.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
