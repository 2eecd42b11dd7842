package model

import "time"

// CoachingReport is the optional LLM-written narrative attached to a result
type CoachingReport struct {
	Headline            string              `json:"headline" bson:"headline"`
	Summary             string              `json:"summary" bson:"summary"`
	SummaryHTML         string              `json:"summaryHtml" bson:"summaryHtml"`
	OverallAssessment   string              `json:"overallAssessment" bson:"overallAssessment"`
	KeyStrengths        []string            `json:"keyStrengths" bson:"keyStrengths"`
	AreasForImprovement []string            `json:"areasForImprovement" bson:"areasForImprovement"`
	ImmediateActions    []string            `json:"immediateActions" bson:"immediateActions"`
	PracticeExercises   []string            `json:"practiceExercises" bson:"practiceExercises"`
	Lessons             []ImprovementLesson `json:"lessons,omitempty" bson:"lessons,omitempty"`
	GeneratedAt         time.Time           `json:"generatedAt" bson:"generatedAt"`
	ModelUsed           string              `json:"modelUsed" bson:"modelUsed"`
}

type ImprovementLesson struct {
	ProblemType    string   `json:"problemType" bson:"problemType"`
	Title          string   `json:"title" bson:"title"`
	Description    string   `json:"description" bson:"description"`
	Exercises      []string `json:"exercises" bson:"exercises"`
	Timeline       string   `json:"timeline" bson:"timeline"`
	SuccessMetrics string   `json:"successMetrics" bson:"successMetrics"`
	// Priority is 1 for the most important lesson
	Priority int `json:"priority" bson:"priority"`
}
