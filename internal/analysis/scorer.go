package analysis

import (
	"math"

	"coherence/internal/model"
)

// Point weights. They sum to 90; the rest is slack.
const (
	EyeContactWeight = 30
	FillerWeight     = 25
	FidgetWeight     = 20
	PaceWeight       = 15

	HighFlagPenalty   = 10
	MediumFlagPenalty = 5
)

// ScoreInput holds the scorer's inputs. Flag counts cover service-sourced
// flags only.
type ScoreInput struct {
	EyeContactPct int
	FillerCount   int
	FidgetCount   int
	PaceWPM       int
	HighFlags     int
	MediumFlags   int
}

// Breakdown reports the points each component contributed
type Breakdown struct {
	EyeContact int `json:"eyeContact"`
	Fillers    int `json:"fillers"`
	Fidgeting  int `json:"fidgeting"`
	Pace       int `json:"pace"`
	Penalty    int `json:"penalty"`
}

// Score computes the coherence score in [0,100]
func Score(in ScoreInput) (int, Breakdown) {
	b := Breakdown{
		EyeContact: eyeContactPoints(in.EyeContactPct),
		Fillers:    fillerPoints(in.FillerCount),
		Fidgeting:  fidgetPoints(in.FidgetCount),
		Pace:       PacePoints(in.PaceWPM),
		Penalty:    HighFlagPenalty*max(in.HighFlags, 0) + MediumFlagPenalty*max(in.MediumFlags, 0),
	}
	total := b.EyeContact + b.Fillers + b.Fidgeting + b.Pace - b.Penalty
	return clampInt(total, 0, 100), b
}

// TierFor maps a score to its tier
func TierFor(score int) model.ScoreTier {
	switch {
	case score >= 76:
		return model.TierStrong
	case score >= 51:
		return model.TierGoodStart
	default:
		return model.TierNeedsWork
	}
}

func eyeContactPoints(pct int) int {
	pct = clampInt(pct, 0, 100)
	return min(EyeContactWeight, int(math.Round(float64(pct)/100*EyeContactWeight)))
}

func fillerPoints(count int) int {
	switch {
	case count <= 5:
		return FillerWeight
	case count >= 20:
		return 0
	}
	return max(0, int(math.Floor(float64(20-count)/15*FillerWeight)))
}

func fidgetPoints(count int) int {
	switch {
	case count <= 3:
		return FidgetWeight
	case count >= 15:
		return 0
	}
	return max(0, int(math.Floor(float64(15-count)/12*FidgetWeight)))
}

// PacePoints is the single pace curve: flat top on 140-160, falling to 10
// at 120/180 and to 0 at 100/200.
func PacePoints(wpm int) int {
	p := float64(wpm)
	var pts float64
	switch {
	case p >= 140 && p <= 160:
		pts = PaceWeight
	case p >= 120 && p < 140:
		pts = 10 + (p-120)/20*5
	case p > 160 && p <= 180:
		pts = 15 - (p-160)/20*5
	case p >= 100 && p < 120:
		pts = (p - 100) / 20 * 10
	case p > 180 && p <= 200:
		pts = 10 - (p-180)/20*10
	default:
		pts = 0
	}
	return int(math.Round(pts))
}
