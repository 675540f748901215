package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewResumeID generates a unique resume ID with the "res_" prefix
func NewResumeID() string {
	return "res_" + uuid.New().String()
}

// ScoreResultID builds the deterministic ScoreResult key. One result exists
// per (job, resume) pair; the same inputs always address the same record.
func ScoreResultID(jobID, resumeID string) string {
	return jobID + ":" + resumeID
}
