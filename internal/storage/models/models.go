package models

import "time"

const (
	BatchQueued     = "queued"
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
	BatchDiscarded  = "discarded"
)

// CurationBatch is one curation run over a generation batch. ResultJSON
// holds the full serialized response once the run completes; there is no
// partial result for an unfinished batch.
type CurationBatch struct {
	ID              string
	DesignerID      string
	TaxonomyVersion string
	Status          string
	CandidateCount  int
	TargetCount     int
	SelectedCount   int
	DiversityScore  float64
	LatencyMS       int
	ResultJSON      string
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CoverageMetric is one attribute's coverage row for one batch, persisted
// for trend queries across runs.
type CoverageMetric struct {
	ID              int
	BatchID         string
	DesignerID      string
	Attribute       string
	CoveragePercent float64
	Entropy         float64
	Gini            float64
	MeetsTarget     bool
	CreatedAt       time.Time
}
