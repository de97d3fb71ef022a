// Package session defines the elicitation session: an append-only choice log
// plus the numeric state derived from it, and its persisted snapshot form.
package session

import (
	"fmt"
	"time"

	"github.com/Pathwise-Labs/Elicit/internal/adaptive"
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Choice is one recorded respondent decision. Choices are append-only: the
// log is never rewritten, only extended.
type Choice struct {
	VignetteID string    `json:"vignette_id"`
	OptionID   string    `json:"option_id"`
	ChosenAt   time.Time `json:"chosen_at"`
}

// State is a live session. Numeric state (posterior, FIM) is derivable by
// replaying Choices against the prior; it is carried here so snapshots
// restore without recomputation.
type State struct {
	ID      string
	Status  Status
	Choices []Choice

	Posterior        adaptive.Estimate
	FIM              adaptive.Matrix
	AdaptiveShown    int
	AdaptiveComplete bool
	StopReason       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New starts a session at the prior.
func New(id string, prior adaptive.Estimate, now time.Time) *State {
	return &State{
		ID:        id,
		Status:    StatusActive,
		Posterior: prior,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Completed returns the completed vignette ids in choice order.
func (s *State) Completed() []string {
	ids := make([]string, len(s.Choices))
	for i, c := range s.Choices {
		ids[i] = c.VignetteID
	}
	return ids
}

// HasCompleted reports whether the vignette id already appears in the log.
func (s *State) HasCompleted(id string) bool {
	for _, c := range s.Choices {
		if c.VignetteID == id {
			return true
		}
	}
	return false
}

// Append records a choice and bumps the update timestamp.
func (s *State) Append(c Choice) {
	s.Choices = append(s.Choices, c)
	s.UpdatedAt = c.ChosenAt
}

// MarkAdaptiveComplete latches the adaptive phase closed. The flag only moves
// false to true; later calls keep the first reason.
func (s *State) MarkAdaptiveComplete(reason string) {
	if s.AdaptiveComplete {
		return
	}
	s.AdaptiveComplete = true
	s.StopReason = reason
}

// Snapshot is the persisted session form. Field names and shapes are the
// storage contract: a snapshot written by one process must restore the same
// engine state in another.
type Snapshot struct {
	SessionID                   string            `json:"session_id"`
	Status                      Status            `json:"status"`
	PosteriorMean               vignette.Features `json:"posterior_mean"`
	PosteriorCovariance         adaptive.Matrix   `json:"posterior_covariance"`
	FisherInformationMatrix     adaptive.Matrix   `json:"fisher_information_matrix"`
	CompletedVignettes          []string          `json:"completed_vignettes"`
	AdaptiveVignettesShownCount int               `json:"adaptive_vignettes_shown_count"`
	AdaptivePhaseComplete       bool              `json:"adaptive_phase_complete"`
	StopReason                  string            `json:"stop_reason,omitempty"`
	CreatedAt                   time.Time         `json:"created_at"`
	UpdatedAt                   time.Time         `json:"updated_at"`
}

// Snapshot captures the state for persistence.
func (s *State) Snapshot() *Snapshot {
	return &Snapshot{
		SessionID:                   s.ID,
		Status:                      s.Status,
		PosteriorMean:               s.Posterior.Mean,
		PosteriorCovariance:         s.Posterior.Covariance,
		FisherInformationMatrix:     s.FIM,
		CompletedVignettes:          s.Completed(),
		AdaptiveVignettesShownCount: s.AdaptiveShown,
		AdaptivePhaseComplete:       s.AdaptiveComplete,
		StopReason:                  s.StopReason,
		CreatedAt:                   s.CreatedAt,
		UpdatedAt:                   s.UpdatedAt,
	}
}

// FromSnapshot rebuilds a live session from its snapshot and choice log. The
// two must agree on the completed sequence; a mismatch means the persisted
// state is corrupt and resuming would silently diverge.
func FromSnapshot(snap *Snapshot, choices []Choice) (*State, error) {
	if len(choices) != len(snap.CompletedVignettes) {
		return nil, fmt.Errorf("session %s: %d choices but %d completed vignettes",
			snap.SessionID, len(choices), len(snap.CompletedVignettes))
	}
	for i, c := range choices {
		if c.VignetteID != snap.CompletedVignettes[i] {
			return nil, fmt.Errorf("session %s: choice %d is %s, snapshot says %s",
				snap.SessionID, i, c.VignetteID, snap.CompletedVignettes[i])
		}
	}
	return &State{
		ID:      snap.SessionID,
		Status:  snap.Status,
		Choices: choices,
		Posterior: adaptive.Estimate{
			Mean:       snap.PosteriorMean,
			Covariance: snap.PosteriorCovariance,
		},
		FIM:              snap.FisherInformationMatrix,
		AdaptiveShown:    snap.AdaptiveVignettesShownCount,
		AdaptiveComplete: snap.AdaptivePhaseComplete,
		StopReason:       snap.StopReason,
		CreatedAt:        snap.CreatedAt,
		UpdatedAt:        snap.UpdatedAt,
	}, nil
}
