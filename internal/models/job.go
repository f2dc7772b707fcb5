package models

import "time"

type JobKind string

const (
	JobKindProgramming JobKind = "programming"
	JobKindScoring     JobKind = "scoring"
	JobKindSync        JobKind = "sync"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ProgressStep is one labeled stage of a multi-step job.
type ProgressStep struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Job is a background task owned by the job coordinator. All mutation goes
// through coordinator operations; callers only ever see copies.
type Job struct {
	ID               string         `json:"id"`
	Kind             JobKind        `json:"kind"`
	Status           JobStatus      `json:"status"`
	Title            string         `json:"title"`
	Progress         float64        `json:"progress"`
	CurrentStep      string         `json:"currentStep,omitempty"`
	Steps            []ProgressStep `json:"steps,omitempty"`
	BestScore        *float64       `json:"bestScore,omitempty"`
	CurrentIteration *int           `json:"currentIteration,omitempty"`
	TotalIterations  *int           `json:"totalIterations,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
	Error            string         `json:"error,omitempty"`
	Result           any            `json:"result,omitempty"`
}

// Clone returns a copy safe to hand to subscribers. Steps are copied;
// Result is shared because it is written once and never mutated after.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.Steps != nil {
		out.Steps = make([]ProgressStep, len(j.Steps))
		copy(out.Steps, j.Steps)
	}
	if j.BestScore != nil {
		v := *j.BestScore
		out.BestScore = &v
	}
	if j.CurrentIteration != nil {
		v := *j.CurrentIteration
		out.CurrentIteration = &v
	}
	if j.TotalIterations != nil {
		v := *j.TotalIterations
		out.TotalIterations = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		out.StartedAt = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		out.CompletedAt = &v
	}
	return &out
}

// JobHistoryEntry is the persisted record of a finished job. Only terminal
// jobs are written; live state stays in the coordinator.
type JobHistoryEntry struct {
	ID          string     `json:"id"`
	Kind        JobKind    `json:"kind"`
	Status      JobStatus  `json:"status"`
	Title       string     `json:"title"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type EventType string

const (
	EventJobsState    EventType = "jobs_state"
	EventJobCreated   EventType = "job_created"
	EventJobStarted   EventType = "job_started"
	EventJobProgress  EventType = "job_progress"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventJobCancelled EventType = "job_cancelled"
)

// Event is one frame on the job stream. jobs_state carries the full
// snapshot; every other type carries the affected job.
type Event struct {
	Type EventType `json:"type"`
	Job  *Job      `json:"job,omitempty"`
	Jobs []*Job    `json:"jobs,omitempty"`
}
