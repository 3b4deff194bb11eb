package allele

import (
	"sort"
)

// Reference gives random access to upper-case reference bases. Fetch clamps
// to the sequence bounds and may return fewer than length bases.
type Reference interface {
	Fetch(offset, length int) string
}

// Key identifies an allele as a (reference fragment, alternate fragment) pair.
type Key struct {
	Ref string
	Alt string
}

// IsIndel reports whether either side spans other than a single base.
func (k Key) IsIndel() bool {
	return len(k.Ref)+len(k.Alt) != 2
}

// Counts holds strand-stratified read counts.
type Counts struct {
	Forward int
	Reverse int
}

// Total returns the combined count.
func (c Counts) Total() int {
	return c.Forward + c.Reverse
}

func (c *Counts) add(s Strand) {
	if s == Reverse {
		c.Reverse++
	} else {
		c.Forward++
	}
}

// Tally is the allele state of a single pileup column.
type Tally struct {
	Pos     int // 0-based reference position
	Aligned int // total aligned reads, including deletion placeholders
	RefBase string
	Ref     Counts
	Alleles map[Key]*Counts
}

// Aggregate tallies observations against the reference. Placeholders count
// towards Aligned (supplied by the caller) but are not tallied.
func Aggregate(pos, aligned int, obs []Observation, ref Reference) *Tally {
	t := &Tally{
		Pos:     pos,
		Aligned: aligned,
		RefBase: ref.Fetch(pos, 1),
		Alleles: make(map[Key]*Counts),
	}

	for _, o := range obs {
		switch {
		case o.Kind == KindPlaceholder:
			continue
		case o.Kind == KindBase && o.Call == t.RefBase:
			t.Ref.add(o.Strand)
		case o.Kind == KindDeletion:
			// Raw length minus the base and the count digit gives the span
			// starting at this position.
			span := ref.Fetch(pos, o.RawLen-2)
			t.add(Key{Ref: span, Alt: t.RefBase}, o.Strand)
		default:
			t.add(Key{Ref: t.RefBase, Alt: o.Call}, o.Strand)
		}
	}

	return t
}

func (t *Tally) add(k Key, s Strand) {
	c, ok := t.Alleles[k]
	if !ok {
		c = &Counts{}
		t.Alleles[k] = c
	}
	c.add(s)
}

// Tallied returns the number of reads assigned to the reference or an allele.
func (t *Tally) Tallied() int {
	n := t.Ref.Total()
	for _, c := range t.Alleles {
		n += c.Total()
	}
	return n
}

// Ranked is an allele with its counts and frequency within a column.
type Ranked struct {
	Key       Key
	Counts    Counts
	Frequency float64
}

// Rank returns the reference allele followed by every other allele ordered
// by combined count, highest first. Equal counts are ordered by key.
func (t *Tally) Rank() []Ranked {
	keys := make([]Key, 0, len(t.Alleles))
	for k := range t.Alleles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := t.Alleles[keys[i]].Total(), t.Alleles[keys[j]].Total()
		if ci != cj {
			return ci > cj
		}
		if keys[i].Ref != keys[j].Ref {
			return keys[i].Ref < keys[j].Ref
		}
		return keys[i].Alt < keys[j].Alt
	})

	out := make([]Ranked, 0, len(keys)+1)
	out = append(out, Ranked{
		Key:       Key{Ref: t.RefBase, Alt: t.RefBase},
		Counts:    t.Ref,
		Frequency: t.frequency(t.Ref),
	})
	for _, k := range keys {
		c := *t.Alleles[k]
		out = append(out, Ranked{Key: k, Counts: c, Frequency: t.frequency(c)})
	}
	return out
}

func (t *Tally) frequency(c Counts) float64 {
	if t.Aligned == 0 {
		return 0
	}
	return float64(c.Total()) / float64(t.Aligned)
}

// Plurality returns the most frequent consensus token. Ties resolve to the
// lexicographically smallest token. An empty column yields "".
func Plurality(obs []Observation) string {
	counts := make(map[string]int, 4)
	for _, o := range obs {
		counts[o.Call]++
	}

	best, bestCount := "", 0
	for tok, n := range counts {
		if n > bestCount || (n == bestCount && tok < best) {
			best, bestCount = tok, n
		}
	}
	return best
}
