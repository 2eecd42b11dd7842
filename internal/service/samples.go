package service

import (
	"strings"

	"golang.org/x/text/cases"

	"coherence/internal/model"
)

// sampleCatalogue lists the pre-registered demo videos
var sampleCatalogue = []model.Sample{
	{
		ID:              "sample-1",
		Title:           "Nervous Student",
		Description:     "A class presentation with frequent fillers, little eye contact and visible nerves.",
		ExpectedScore:   42,
		DurationSeconds: 120,
	},
	{
		ID:              "sample-2",
		Title:           "Confident Pitch",
		Description:     "A startup pitch with steady pacing, purposeful gestures and strong eye contact.",
		ExpectedScore:   89,
		DurationSeconds: 180,
	},
	{
		ID:              "sample-3",
		Title:           "Mixed Signals",
		Description:     "An upbeat script delivered with a flat expression and unsupported references to slides.",
		ExpectedScore:   61,
		DurationSeconds: 150,
	},
}

// LookupSample finds a sample by id or, case-insensitively, by title
func LookupSample(query string) (model.Sample, bool) {
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	for _, s := range sampleCatalogue {
		if s.ID == query || fold.String(s.ID) == q || fold.String(s.Title) == q {
			return s, true
		}
	}
	return model.Sample{}, false
}

// IsSample reports whether id names a registered sample
func IsSample(id string) bool {
	for _, s := range sampleCatalogue {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Samples returns a copy of the catalogue
func Samples() []model.Sample {
	out := make([]model.Sample, len(sampleCatalogue))
	copy(out, sampleCatalogue)
	return out
}
