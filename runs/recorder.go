package runs

import (
	"clinsight.com/cra/pipeline"
)

// Recorder persists orchestrator progress into the run documents. One
// instance serves all runs.
type Recorder struct {
	client *Client
}

func NewRecorder(client *Client) *Recorder {
	return &Recorder{client: client}
}

func (r *Recorder) OnRunStarted(rid string) error {
	return r.client.Update(rid, func(task *RunTask) {
		task.Status = RunStatusRunning
		task.CurrentStage = string(pipeline.StageExtract)
	})
}

func (r *Recorder) OnStageStarted(rid string, stage pipeline.Stage, attempt int) error {
	return r.client.Update(rid, func(task *RunTask) {
		task.CurrentStage = string(stage)
		info := task.Stage(string(stage))
		if info == nil {
			return
		}
		info.Status = StageStatusStarted
		info.Attempts = attempt
		info.StartedAt = FormattedNow()
		info.CompletedAt = nil
	})
}

func (r *Recorder) OnStageFailed(rid string, stage pipeline.Stage, errMessage string) error {
	return r.client.Update(rid, func(task *RunTask) {
		info := task.Stage(string(stage))
		if info == nil {
			return
		}
		info.Status = StageStatusFailed
		info.CompletedAt = FormattedNow()
		info.ErrorMessages = append(info.ErrorMessages, errMessage)
	})
}

func (r *Recorder) OnStageCompleted(rid string, stage pipeline.Stage, artifactKey string, checksum string) error {
	return r.client.Update(rid, func(task *RunTask) {
		info := task.Stage(string(stage))
		if info == nil {
			return
		}
		info.Status = StageStatusCompleted
		info.CompletedAt = FormattedNow()
		info.ArtifactKey = artifactKey
		info.ArtifactChecksum = checksum
	})
}

func (r *Recorder) OnRunCompleted(rid string) error {
	return r.client.Update(rid, func(task *RunTask) {
		task.Status = RunStatusCompleted
		task.CompletedAt = FormattedNow()
	})
}

func (r *Recorder) OnRunAborted(rid string, failure *pipeline.StageFailure) error {
	return r.client.Update(rid, func(task *RunTask) {
		if failure.Kind == pipeline.FailureCanceled {
			task.Status = RunStatusCanceled
		} else {
			task.Status = RunStatusAborted
		}
		task.CompletedAt = FormattedNow()
		task.FailureStage = string(failure.Stage)
		task.FailureReason = failure.Reason
	})
}

func (r *Recorder) IsCanceled(rid string) (bool, error) {
	task, err := r.client.Get(rid)
	if err != nil {
		return false, err
	}
	return task.UserCanceled, nil
}
