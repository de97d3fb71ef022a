package events

import "time"

type SessionRequestEvent struct {
	SessionID  string `json:"session_id,omitempty"`
	Occupation string `json:"occupation,omitempty"`
	Region     string `json:"region,omitempty"`
	Language   string `json:"language,omitempty"`
	Source     string `json:"source,omitempty"`
}

type SessionCreatedEvent struct {
	SessionID  string    `json:"session_id"`
	Occupation string    `json:"occupation,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type VignetteSelectedEvent struct {
	SessionID  string  `json:"session_id"`
	VignetteID string  `json:"vignette_id"`
	Phase      string  `json:"phase"`
	Criterion  string  `json:"criterion,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Evaluated  int     `json:"candidates_evaluated,omitempty"`
}

type ChoiceRecordedEvent struct {
	SessionID     string `json:"session_id"`
	VignetteID    string `json:"vignette_id"`
	OptionID      string `json:"option_id"`
	ChoiceCount   int    `json:"choice_count"`
	AdaptiveShown int    `json:"adaptive_vignettes_shown"`
}

type AdaptiveCompletedEvent struct {
	SessionID     string  `json:"session_id"`
	Reason        string  `json:"reason"`
	AdaptiveShown int     `json:"adaptive_vignettes_shown"`
	FIMDet        float64 `json:"fim_determinant"`
	MaxVariance   float64 `json:"max_variance"`
}

type SessionCompletedEvent struct {
	SessionID     string    `json:"session_id"`
	TotalChoices  int       `json:"total_choices"`
	StopReason    string    `json:"stop_reason,omitempty"`
	PosteriorMean []float64 `json:"posterior_mean"`
	Confidence    string    `json:"confidence"`
	CompletedAt   time.Time `json:"completed_at"`
}

type SessionAbandonedEvent struct {
	SessionID    string    `json:"session_id"`
	TotalChoices int       `json:"total_choices"`
	IdleSince    time.Time `json:"idle_since"`
}
