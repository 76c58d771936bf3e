// Package model contains domain records passed between layers.
package model

import (
	"strings"

	"github.com/okian/giteval/internal/domain/rank"
)

// UserRecord is the durable state tracked per platform identity.
// Rank is always recomputed from Score on mutation, never set directly.
type UserRecord struct {
	LinkedHandle string      `json:"linked_handle"` // grading-pipeline account, e.g. a GitHub username
	Score        int         `json:"score"`
	Rank         rank.Symbol `json:"rank"`
}

// Validate rejects malformed records at the store boundary rather than
// letting missing-field ambiguity propagate.
func (u UserRecord) Validate(table *rank.Table) error {
	if strings.TrimSpace(u.LinkedHandle) == "" {
		return ErrMissingHandle
	}
	if u.Score < 0 {
		return ErrNegativeScore
	}
	if !table.Contains(u.Rank) {
		return ErrUnknownRank
	}
	return nil
}

// EvaluationReport is one verified callback payload from the grading
// pipeline. AssertedRank is the tier the submission was graded at and is
// optional; it only matters for the skip-grade fast path.
type EvaluationReport struct {
	LinkedHandle string      `json:"linked_handle"`
	ScoreDelta   int         `json:"score_delta"`
	FeedbackText string      `json:"feedback_text"`
	AssertedRank rank.Symbol `json:"asserted_rank,omitempty"`
}

// Validate checks the report fields this service can judge without store
// access. The asserted rank is left to the rank engine, which ignores
// unknown symbols.
func (e EvaluationReport) Validate() error {
	if strings.TrimSpace(e.LinkedHandle) == "" {
		return ErrMissingHandle
	}
	return nil
}

// Transition is the outcome of applying one evaluation to a user.
type Transition struct {
	ExternalIdentity string
	OldRank          rank.Symbol
	NewRank          rank.Symbol
	Score            int
}

// Promoted reports whether the evaluation crossed a tier boundary.
func (t Transition) Promoted() bool {
	return t.OldRank != t.NewRank
}

// Promotion is the event handed to the notification dispatcher when a
// transition occurred.
type Promotion struct {
	ExternalIdentity string
	NewRank          rank.Symbol
	RankName         string
}
