package model

import "time"

type ProcessingState string

const (
	StatusQueued     ProcessingState = "queued"
	StatusProcessing ProcessingState = "processing"
	StatusComplete   ProcessingState = "complete"
	StatusError      ProcessingState = "error"
)

// IsTerminal reports whether no further transitions happen for the run
func (s ProcessingState) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// ProcessingStatus is the pollable progress record of a run. Each update
// replaces the whole record.
type ProcessingStatus struct {
	VideoID    string          `json:"videoId" bson:"videoId"`
	Status     ProcessingState `json:"status" bson:"status"`
	Progress   int             `json:"progress" bson:"progress"`
	Stage      string          `json:"stage" bson:"stage"`
	ETASeconds *int            `json:"estimatedTimeRemaining,omitempty" bson:"etaSeconds,omitempty"`
	Error      *string         `json:"error,omitempty" bson:"error,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt" bson:"updatedAt"`
}
