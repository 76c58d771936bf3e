// Package rank maps cumulative evaluation scores onto the ordered rank
// ladder and applies score mutations, including the skip-grade fast path.
package rank

import (
	"fmt"
	"math"
)

// SkipGradeThreshold is the minimum single-evaluation delta that allows a
// user to vault directly into a higher asserted tier.
const SkipGradeThreshold = 70

// Symbol identifies one tier on the ladder, e.g. "G" or "S".
type Symbol string

// Tier is one rung of the ladder: a symbol, the cumulative score required
// to hold it, and a human-readable name used for role labels.
type Tier struct {
	Symbol    Symbol
	Threshold int
	Name      string
}

// Table is an immutable, ordered rank ladder. Thresholds are strictly
// increasing and the first tier starts at zero, so every non-negative score
// maps to exactly one tier.
type Table struct {
	tiers []Tier
	index map[Symbol]int
}

// NewTable validates and builds a Table from tiers ordered lowest to highest.
func NewTable(tiers []Tier) (*Table, error) {
	if len(tiers) == 0 {
		return nil, ErrEmptyTable
	}
	if tiers[0].Threshold != 0 {
		return nil, fmt.Errorf("%w: first threshold must be 0, got %d", ErrInvalidTable, tiers[0].Threshold)
	}
	index := make(map[Symbol]int, len(tiers))
	for i, tier := range tiers {
		if tier.Symbol == "" {
			return nil, fmt.Errorf("%w: empty symbol at position %d", ErrInvalidTable, i)
		}
		if _, dup := index[tier.Symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %q", ErrInvalidTable, tier.Symbol)
		}
		if i > 0 && tier.Threshold <= tiers[i-1].Threshold {
			return nil, fmt.Errorf("%w: threshold for %q must exceed %d", ErrInvalidTable, tier.Symbol, tiers[i-1].Threshold)
		}
		index[tier.Symbol] = i
	}
	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	return &Table{tiers: cp, index: index}, nil
}

// Default returns the standard eight-tier ladder.
func Default() *Table {
	t, err := NewTable([]Tier{
		{Symbol: "G", Threshold: 0, Name: "Generalist"},
		{Symbol: "F", Threshold: 100, Name: "Foundation"},
		{Symbol: "E", Threshold: 250, Name: "Emerging"},
		{Symbol: "D", Threshold: 500, Name: "Developer"},
		{Symbol: "C", Threshold: 1000, Name: "Competent"},
		{Symbol: "B", Threshold: 2000, Name: "Builder"},
		{Symbol: "A", Threshold: 4000, Name: "Architect"},
		{Symbol: "S", Threshold: 8000, Name: "Specialist"},
	})
	if err != nil {
		panic(err) // static table; unreachable
	}
	return t
}

// ForScore returns the highest tier whose threshold is <= score.
// Negative scores clamp to the lowest tier.
func (t *Table) ForScore(score int) Symbol {
	current := t.tiers[0].Symbol
	for _, tier := range t.tiers {
		if score >= tier.Threshold {
			current = tier.Symbol
		}
	}
	return current
}

// Lowest returns the entry tier every new user starts at.
func (t *Table) Lowest() Symbol {
	return t.tiers[0].Symbol
}

// Contains reports whether s is a valid tier symbol.
func (t *Table) Contains(s Symbol) bool {
	_, ok := t.index[s]
	return ok
}

// Name returns the display name for s, or an empty string for unknown tiers.
func (t *Table) Name(s Symbol) string {
	i, ok := t.index[s]
	if !ok {
		return ""
	}
	return t.tiers[i].Name
}

// Threshold returns the cumulative score floor for s.
func (t *Table) Threshold(s Symbol) (int, bool) {
	i, ok := t.index[s]
	if !ok {
		return 0, false
	}
	return t.tiers[i].Threshold, true
}

// Next returns the tier directly above s. ok is false at the terminal tier
// and for unknown symbols.
func (t *Table) Next(s Symbol) (Tier, bool) {
	i, ok := t.index[s]
	if !ok || i >= len(t.tiers)-1 {
		return Tier{}, false
	}
	return t.tiers[i+1], true
}

// RemainingToNext returns the points still needed to reach the tier above s.
// ok is false at the terminal tier.
func (t *Table) RemainingToNext(s Symbol, score int) (int, bool) {
	next, ok := t.Next(s)
	if !ok {
		return 0, false
	}
	return next.Threshold - score, true
}

// Progress returns the fraction of the current tier's score band already
// covered, clamped to [0, 1]. ok is false at the terminal tier.
func (t *Table) Progress(s Symbol, score int) (float64, bool) {
	floor, ok := t.Threshold(s)
	if !ok {
		return 0, false
	}
	next, ok := t.Next(s)
	if !ok {
		return 0, false
	}
	span := next.Threshold - floor
	frac := float64(score-floor) / float64(span)
	return math.Max(0, math.Min(1, frac)), true
}

// Outranks reports whether a sits strictly above b on the ladder.
// Unknown symbols never outrank anything.
func (t *Table) Outranks(a, b Symbol) bool {
	ai, aok := t.index[a]
	bi, bok := t.index[b]
	return aok && bok && ai > bi
}

// Tiers returns the ladder in ascending order.
func (t *Table) Tiers() []Tier {
	cp := make([]Tier, len(t.tiers))
	copy(cp, t.tiers)
	return cp
}

// Result describes one score mutation.
type Result struct {
	OldRank  Symbol
	NewRank  Symbol
	NewScore int
}

// Promoted reports whether the mutation crossed a tier boundary upward.
func (r Result) Promoted() bool {
	return r.OldRank != r.NewRank
}

// Apply computes the outcome of adding delta to score. asserted, when
// non-empty, is the tier the evaluation was graded at and enables the
// skip-grade fast path: if asserted is a known tier strictly above the
// current one and delta >= SkipGradeThreshold, the score is raised to at
// least threshold(asserted) + delta. Scores awarded at harder tiers carry
// more weight than the raw point count suggests.
//
// Apply is pure; persisting the result is the caller's job. It is the only
// score computation path, so ranks are always derived from scores, never
// set directly.
func (t *Table) Apply(score int, delta int, asserted Symbol) (Result, error) {
	if delta < 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrNegativeDelta, delta)
	}
	oldRank := t.ForScore(score)
	newScore := score + delta

	if asserted != "" && t.Contains(asserted) && t.Outranks(asserted, oldRank) && delta >= SkipGradeThreshold {
		floor, _ := t.Threshold(asserted)
		if newScore < floor {
			newScore = floor + delta
		}
	}

	return Result{
		OldRank:  oldRank,
		NewRank:  t.ForScore(newScore),
		NewScore: newScore,
	}, nil
}
