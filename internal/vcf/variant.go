package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// Variant is a single VCF data line. Alt keeps the comma-separated ALT column.
type Variant struct {
	Chrom         string
	Pos           int64 // 1-based
	ID            string
	Ref           string
	Alt           string
	Qual          float64
	Filter        string
	Info          map[string]interface{} // string values, or true for flags
	SampleColumns string                 // FORMAT and sample columns, tab-joined
}

// Alts returns the alternate alleles, or nil when ALT is missing.
func (v *Variant) Alts() []string {
	if v.Alt == "" || v.Alt == "." {
		return nil
	}
	return strings.Split(v.Alt, ",")
}

// HasInfo reports whether the INFO key is present.
func (v *Variant) HasInfo(key string) bool {
	_, ok := v.Info[key]
	return ok
}

// InfoString returns the raw value of an INFO key. Flags return "".
func (v *Variant) InfoString(key string) (string, bool) {
	raw, ok := v.Info[key]
	if !ok {
		return "", false
	}
	s, _ := raw.(string)
	return s, true
}

// InfoList splits a comma-separated INFO value.
func (v *Variant) InfoList(key string) ([]string, error) {
	s, ok := v.InfoString(key)
	if !ok {
		return nil, fmt.Errorf("%s:%d: missing INFO %s", v.Chrom, v.Pos, key)
	}
	if s == "" {
		return nil, nil
	}
	return strings.Split(s, ","), nil
}

// InfoInt parses a single integer INFO value.
func (v *Variant) InfoInt(key string) (int, error) {
	s, ok := v.InfoString(key)
	if !ok {
		return 0, fmt.Errorf("%s:%d: missing INFO %s", v.Chrom, v.Pos, key)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s:%d: INFO %s: %w", v.Chrom, v.Pos, key, err)
	}
	return n, nil
}

// InfoInts parses a comma-separated list of integers.
func (v *Variant) InfoInts(key string) ([]int, error) {
	parts, err := v.InfoList(key)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: INFO %s: %w", v.Chrom, v.Pos, key, err)
		}
		out[i] = n
	}
	return out, nil
}
