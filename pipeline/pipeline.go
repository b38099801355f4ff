package pipeline

import (
	"context"
	"fmt"

	"clinsight.com/cra/types"
)

type Stage string

const (
	StageExtract  Stage = "extract"
	StageHistory  Stage = "history"
	StageEvaluate Stage = "evaluate"
	StageRender   Stage = "render"
)

// StageOrder is the only legal execution order. Stages never run out of
// order and never get skipped, even when their output would be empty.
var StageOrder = []Stage{StageExtract, StageHistory, StageEvaluate, StageRender}

type RunState string

const (
	StateNotStarted RunState = "not_started"
	StateRunning    RunState = "running"
	StateCompleted  RunState = "completed"
	StateAborted    RunState = "aborted"
)

type Request struct {
	RID     string             `json:"rid"`
	Patient types.PatientInput `json:"patient"`
}

// Result is the outcome of one run: either COMPLETED with a full report, or
// ABORTED with the failing stage attached. Never a partial report.
type Result struct {
	RID        string                   `json:"rid"`
	State      RunState                 `json:"state"`
	Patient    types.StructuredPatient  `json:"patient,omitempty"`
	Profile    types.ClinicalProfile    `json:"profile,omitempty"`
	Assessment types.ClinicalAssessment `json:"assessment,omitempty"`
	Report     string                   `json:"report,omitempty"`
	Failure    *StageFailure            `json:"failure,omitempty"`
}

type FailureKind string

const (
	FailureSchemaValidation FailureKind = "schema_validation"
	FailureTool             FailureKind = "tool_failure"
	FailureGeneration       FailureKind = "generation_failure"
	FailureCanceled         FailureKind = "canceled"
)

// StageFailure pins a failure to the stage that produced it.
type StageFailure struct {
	Stage    Stage       `json:"stage"`
	Kind     FailureKind `json:"kind"`
	Attempts int         `json:"attempts"`
	Err      error       `json:"-"`
	Reason   string      `json:"reason"`
}

func (f *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed (%s) after %d attempt(s): %s", f.Stage, f.Kind, f.Attempts, f.Reason)
}

func (f *StageFailure) Unwrap() error {
	return f.Err
}

// Stage collaborators. The orchestrator only sees these contracts; the stages
// package provides the generation-backed implementations.
type Extractor interface {
	Extract(ctx context.Context, in types.PatientInput) (types.StructuredPatient, error)
}

type Aggregator interface {
	Aggregate(ctx context.Context, patient types.StructuredPatient, nationalID string) (types.ClinicalProfile, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, profile types.ClinicalProfile) (types.ClinicalAssessment, error)
}

type Renderer interface {
	Render(ctx context.Context, assessment types.ClinicalAssessment) (string, error)
}

// ArtifactSink receives one JSON artifact per completed stage plus the final
// report.
type ArtifactSink interface {
	Upload(data string, key string) error
}

// Recorder persists run and stage progress and exposes the caller's
// cancellation flag, checked at stage boundaries only.
type Recorder interface {
	OnRunStarted(rid string) error
	OnStageStarted(rid string, stage Stage, attempt int) error
	OnStageFailed(rid string, stage Stage, errMessage string) error
	OnStageCompleted(rid string, stage Stage, artifactKey string, checksum string) error
	OnRunCompleted(rid string) error
	OnRunAborted(rid string, failure *StageFailure) error
	IsCanceled(rid string) (bool, error)
}

// NoopRecorder satisfies Recorder for callers that do not track run state.
type NoopRecorder struct{}

func (NoopRecorder) OnRunStarted(string) error                            { return nil }
func (NoopRecorder) OnStageStarted(string, Stage, int) error              { return nil }
func (NoopRecorder) OnStageFailed(string, Stage, string) error            { return nil }
func (NoopRecorder) OnStageCompleted(string, Stage, string, string) error { return nil }
func (NoopRecorder) OnRunCompleted(string) error                          { return nil }
func (NoopRecorder) OnRunAborted(string, *StageFailure) error             { return nil }
func (NoopRecorder) IsCanceled(string) (bool, error)                      { return false, nil }
