// Package allele turns raw pileup observations into strand-aware allele tallies.
package allele

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Strand is the orientation of the read an observation came from.
type Strand uint8

const (
	Forward Strand = iota
	Reverse
)

func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// Kind classifies an observation token.
type Kind uint8

const (
	KindBase        Kind = iota // plain base call
	KindPlaceholder             // read has a deletion over this position ("*")
	KindDeletion                // base followed by a deletion ("A-2NN")
	KindInsertion               // base followed by an insertion ("A+2TT")
)

// Observation is one read's contribution to a pileup column. Casing of the
// raw token is resolved into Strand here; Call is always upper-case.
type Observation struct {
	Call   string // normalized, upper-cased token used for tallying
	Kind   Kind
	Strand Strand
	RawLen int // length of the raw token, used to size deletion spans
}

// Placeholder is the consensus token for a deleted position.
const Placeholder = "*"

// insertFinder splits "<prefix>+<digits><suffix>" the way pileup text is laid out.
var insertFinder = regexp.MustCompile(`^(.*)\+\d+(.*)$`)

// MalformedObservationError reports a token rejected in strict mode.
type MalformedObservationError struct {
	Token  string
	Reason string
}

func (e *MalformedObservationError) Error() string {
	return fmt.Sprintf("malformed observation %q: %s", e.Token, e.Reason)
}

// ParseObservation normalizes a raw token. Without strict, tokens of
// unexpected shape are passed through uninterpreted.
func ParseObservation(raw string, strict bool) (Observation, error) {
	if strict {
		if err := validate(raw); err != nil {
			return Observation{}, err
		}
	}

	obs := Observation{
		Strand: strandOf(raw),
		RawLen: len(raw),
	}

	switch {
	case strings.Contains(raw, "*"):
		obs.Kind = KindPlaceholder
	case strings.Contains(raw, "-"):
		obs.Kind = KindDeletion
	case strings.Contains(raw, "+"):
		obs.Kind = KindInsertion
	default:
		obs.Kind = KindBase
	}

	// Deletions reduce to the called base; insertions keep base plus inserted bases.
	call := raw
	if strings.Contains(raw, "-") {
		call = raw[:1]
	} else if strings.Contains(raw, "+") {
		if m := insertFinder.FindStringSubmatch(raw); m != nil {
			call = m[1] + m[2]
		}
	}
	obs.Call = strings.ToUpper(call)

	return obs, nil
}

// ParseObservations parses every token of a column.
func ParseObservations(raws []string, strict bool) ([]Observation, error) {
	out := make([]Observation, 0, len(raws))
	for _, raw := range raws {
		obs, err := ParseObservation(raw, strict)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

// strandOf marks a token reverse if any character is lowercase.
func strandOf(raw string) Strand {
	for i := 0; i < len(raw); i++ {
		if raw[i] >= 'a' && raw[i] <= 'z' {
			return Reverse
		}
	}
	return Forward
}

func validate(raw string) error {
	if raw == "" {
		return &MalformedObservationError{Token: raw, Reason: "empty token"}
	}

	var lower, upper bool
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		}
		switch c {
		case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n', '*', '+', '-',
			'0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		default:
			return &MalformedObservationError{Token: raw, Reason: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	if lower && upper {
		return &MalformedObservationError{Token: raw, Reason: "mixed case"}
	}

	ins := strings.Count(raw, "+")
	del := strings.Count(raw, "-")
	if ins > 0 && del > 0 {
		return &MalformedObservationError{Token: raw, Reason: "both insertion and deletion markers"}
	}
	if ins > 1 || del > 1 {
		return &MalformedObservationError{Token: raw, Reason: "repeated indel marker"}
	}

	marker := strings.IndexAny(raw, "+-")
	if marker < 0 {
		if len(raw) != 1 {
			return &MalformedObservationError{Token: raw, Reason: "multi-character token without indel marker"}
		}
		return nil
	}
	if marker != 1 {
		return &MalformedObservationError{Token: raw, Reason: "indel marker must follow a single base"}
	}

	rest := raw[marker+1:]
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return &MalformedObservationError{Token: raw, Reason: "indel marker without length"}
	}
	n, err := strconv.Atoi(rest[:digits])
	if err != nil {
		return &MalformedObservationError{Token: raw, Reason: "invalid indel length"}
	}
	if seq := rest[digits:]; len(seq) != n || strings.ContainsAny(seq, "*0123456789") {
		return &MalformedObservationError{Token: raw, Reason: fmt.Sprintf("indel length %d does not match sequence %q", n, seq)}
	}
	return nil
}
