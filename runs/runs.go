package runs

import (
	"fmt"
	"time"

	"clinsight.com/cra/redis"
	"clinsight.com/cra/types"
)

const RunsDB redis.DB = 1

type RunStatus string

const (
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed - success"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusCanceled  RunStatus = "canceled"
)

func (s RunStatus) Complete() bool {
	return s == RunStatusCompleted || s == RunStatusAborted || s == RunStatusCanceled
}

type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusStarted   StageStatus = "started"
	StageStatusFailed    StageStatus = "failed"
	StageStatusCompleted StageStatus = "completed"
)

type StageInfo struct {
	Status           StageStatus `json:"status"`
	Attempts         int         `json:"attempts"`
	StartedAt        *string     `json:"started_at"`
	CompletedAt      *string     `json:"completed_at"`
	ArtifactKey      string      `json:"artifact_key"`
	ArtifactChecksum string      `json:"artifact_checksum"`
	ErrorMessages    []string    `json:"error_messages"`
}

type StageStatuses struct {
	Extract  StageInfo `json:"extract"`
	History  StageInfo `json:"history"`
	Evaluate StageInfo `json:"evaluate"`
	Render   StageInfo `json:"render"`
}

// RunTask is the per-run document. Attempts counts whole-run deliveries from
// the intake queue; per-stage retry counts live in the stage infos.
type RunTask struct {
	RunID         string             `json:"run_id"`
	PatientID     string             `json:"patient_id"`
	Intake        types.PatientInput `json:"intake"`
	Status        RunStatus          `json:"status"`
	CurrentStage  string             `json:"current_stage"`
	Attempts      int                `json:"attempts"`
	UserCanceled  bool               `json:"user_canceled"`
	FailureStage  string             `json:"failure_stage"`
	FailureReason string             `json:"failure_reason"`
	SubmittedAt   *string            `json:"submitted_at"`
	CompletedAt   *string            `json:"completed_at"`
	Stages        StageStatuses      `json:"stage_statuses"`
}

// Stage returns the info block for a stage name as used by the orchestrator.
func (t *RunTask) Stage(name string) *StageInfo {
	switch name {
	case "extract":
		return &t.Stages.Extract
	case "history":
		return &t.Stages.History
	case "evaluate":
		return &t.Stages.Evaluate
	case "render":
		return &t.Stages.Render
	}
	return nil
}

type Client struct {
	client redis.Client
}

func NewClient() (*Client, error) {
	client, err := redis.NewClient(RunsDB)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

func (c *Client) Create(task RunTask) error {
	if task.Status == "" {
		task.Status = RunStatusSubmitted
	}
	if task.SubmittedAt == nil {
		task.SubmittedAt = FormattedNow()
	}
	for _, info := range []*StageInfo{
		&task.Stages.Extract,
		&task.Stages.History,
		&task.Stages.Evaluate,
		&task.Stages.Render,
	} {
		if info.Status == "" {
			info.Status = StageStatusPending
		}
	}
	created, err := c.client.SaveDocumentIfAbsent(runKey(task.RunID), &task)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("run %s already exists", task.RunID)
	}
	return nil
}

func (c *Client) Get(runID string) (*RunTask, error) {
	var task RunTask
	if err := c.client.GetDocument(runKey(runID), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) Update(runID string, mutate func(task *RunTask)) error {
	var task RunTask
	return c.client.UpdateDocument(runKey(runID), &task, func() {
		mutate(&task)
	})
}

// Cancel flags the run; the orchestrator honors the flag at the next stage
// boundary, never mid generation call.
func (c *Client) Cancel(runID string) error {
	return c.Update(runID, func(task *RunTask) {
		task.UserCanceled = true
	})
}

func (c *Client) Close() {
	_ = c.client.Close()
}

const RFC3339Micro = "2006-01-02T15:04:05.000000-07:00"

func FormattedNow() *string {
	now := time.Now().UTC().Format(RFC3339Micro)
	return &now
}

func runKey(runID string) string {
	return fmt.Sprintf("run:%s", runID)
}
