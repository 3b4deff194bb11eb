package allele

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stringRef is a Reference over a fixed string.
type stringRef string

func (s stringRef) Fetch(offset, length int) string {
	if offset < 0 || length <= 0 || offset >= len(s) {
		return ""
	}
	end := offset + length
	if end > len(s) {
		end = len(s)
	}
	return string(s[offset:end])
}

func TestParseObservation(t *testing.T) {
	tests := []struct {
		raw    string
		call   string
		kind   Kind
		strand Strand
	}{
		{"A", "A", KindBase, Forward},
		{"t", "T", KindBase, Reverse},
		{"*", "*", KindPlaceholder, Forward},
		{"A+2TT", "ATT", KindInsertion, Forward},
		{"a+2tt", "ATT", KindInsertion, Reverse},
		{"G+12ACGTACGTACGT", "GACGTACGTACGT", KindInsertion, Forward},
		{"A-2NN", "A", KindDeletion, Forward},
		{"c-3nnn", "C", KindDeletion, Reverse},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			obs, err := ParseObservation(tt.raw, false)
			require.NoError(t, err)
			assert.Equal(t, tt.call, obs.Call)
			assert.Equal(t, tt.kind, obs.Kind)
			assert.Equal(t, tt.strand, obs.Strand)
			assert.Equal(t, len(tt.raw), obs.RawLen)
		})
	}
}

func TestParseObservation_LenientPassThrough(t *testing.T) {
	obs, err := ParseObservation("A+TT", false)
	require.NoError(t, err)
	assert.Equal(t, "A+TT", obs.Call)
	assert.Equal(t, KindInsertion, obs.Kind)

	obs, err = ParseObservation("xyz", false)
	require.NoError(t, err)
	assert.Equal(t, "XYZ", obs.Call)
	assert.Equal(t, Reverse, obs.Strand)
}

func TestParseObservation_Strict(t *testing.T) {
	good := []string{"A", "n", "*", "A+2TT", "g-1n", "T-10NNNNNNNNNN"}
	for _, raw := range good {
		_, err := ParseObservation(raw, true)
		assert.NoError(t, err, raw)
	}

	bad := map[string]string{
		"":        "empty token",
		"A+2T":    "length",
		"A+TT":    "without length",
		"A+2T-1N": "both insertion and deletion",
		"Ac":      "mixed case",
		"AC":      "multi-character",
		"X":       "unexpected character",
		"AA+1T":   "single base",
	}
	for raw, reason := range bad {
		_, err := ParseObservation(raw, true)
		require.Error(t, err, raw)

		var mErr *MalformedObservationError
		require.True(t, errors.As(err, &mErr), raw)
		assert.Equal(t, raw, mErr.Token)
		assert.Contains(t, mErr.Error(), reason, raw)
	}
}

func parseAll(t *testing.T, raws ...string) []Observation {
	t.Helper()
	obs, err := ParseObservations(raws, false)
	require.NoError(t, err)
	return obs
}

func repeat(tok string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = tok
	}
	return out
}

func TestAggregate_SubstitutionByStrand(t *testing.T) {
	var raws []string
	raws = append(raws, repeat("T", 10)...)
	raws = append(raws, repeat("t", 5)...)
	raws = append(raws, repeat("A", 3)...)
	raws = append(raws, repeat("a", 2)...)

	tally := Aggregate(0, 20, parseAll(t, raws...), stringRef("ACGT"))

	assert.Equal(t, "A", tally.RefBase)
	assert.Equal(t, Counts{Forward: 3, Reverse: 2}, tally.Ref)
	require.Len(t, tally.Alleles, 1)
	assert.Equal(t, Counts{Forward: 10, Reverse: 5}, *tally.Alleles[Key{"A", "T"}])
	assert.Equal(t, 20, tally.Tallied())
}

func TestAggregate_Insertion(t *testing.T) {
	tally := Aggregate(0, 2, parseAll(t, "A+2TT", "a+2tt"), stringRef("ACGT"))

	require.Contains(t, tally.Alleles, Key{"A", "ATT"})
	assert.Equal(t, Counts{Forward: 1, Reverse: 1}, *tally.Alleles[Key{"A", "ATT"}])
	assert.True(t, Key{"A", "ATT"}.IsIndel())
}

func TestAggregate_DeletionSpan(t *testing.T) {
	// "C-2NN" at position 1 deletes GT; span is the ref base plus two deleted bases.
	tally := Aggregate(1, 3, parseAll(t, "C-2NN", "c-2nn", "*"), stringRef("ACGTA"))

	key := Key{Ref: "CGT", Alt: "C"}
	require.Contains(t, tally.Alleles, key)
	assert.Equal(t, Counts{Forward: 1, Reverse: 1}, *tally.Alleles[key])
	assert.Equal(t, 2, tally.Tallied(), "placeholder is not tallied")
	assert.Equal(t, 3, tally.Aligned)
}

func TestAggregate_DeletionClampedAtEnd(t *testing.T) {
	tally := Aggregate(3, 1, parseAll(t, "T-3NNN"), stringRef("ACGTA"))
	assert.Contains(t, tally.Alleles, Key{Ref: "TA", Alt: "T"})
}

func TestRank_ReferenceFirstThenByCount(t *testing.T) {
	var raws []string
	raws = append(raws, repeat("G", 2)...)
	raws = append(raws, repeat("T", 5)...)
	raws = append(raws, repeat("A", 8)...)
	raws = append(raws, "C", "A+1C", "A+1C")

	tally := Aggregate(0, 20, parseAll(t, raws...), stringRef("A"))
	ranked := tally.Rank()

	require.Len(t, ranked, 5)
	assert.Equal(t, Key{"A", "A"}, ranked[0].Key)
	assert.Equal(t, 8, ranked[0].Counts.Total())
	assert.Equal(t, Key{"A", "T"}, ranked[1].Key)
	// G and AC both have two reads; key order breaks the tie.
	assert.Equal(t, Key{"A", "AC"}, ranked[2].Key)
	assert.Equal(t, Key{"A", "G"}, ranked[3].Key)
	assert.Equal(t, Key{"A", "C"}, ranked[4].Key)
	assert.InDelta(t, 0.25, ranked[1].Frequency, 1e-12)

	var sum float64
	for _, r := range ranked {
		sum += r.Frequency
	}
	assert.InDelta(t, float64(tally.Tallied())/20, sum, 1e-12)
}

func TestPlurality(t *testing.T) {
	assert.Equal(t, "T", Plurality(parseAll(t, "T", "t", "A")))
	assert.Equal(t, "ATT", Plurality(parseAll(t, "A+2TT", "a+2tt", "A")))
	assert.Equal(t, "*", Plurality(parseAll(t, "*", "*", "A")))
	assert.Equal(t, "A", Plurality(parseAll(t, "A-1N", "a", "G")))
	assert.Equal(t, "", Plurality(nil))
}

func TestPlurality_TieIsDeterministic(t *testing.T) {
	for n := 0; n < 20; n++ {
		assert.Equal(t, "C", Plurality(parseAll(t, "T", "C", "G", "t", "c", "g")))
	}
}
