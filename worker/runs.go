package worker

import (
	"fmt"

	"clinsight.com/cra/pipeline"
	"clinsight.com/cra/runs"
)

type runsTransactions interface {
	getRunTask(runID string) (*runs.RunTask, error)
	onDeliveryStarted(task *Task) error
	onRunCanceled(task *Task, errorMessages ...string) error
	onRunExceededRetries(task *Task, maxRetries int) error
	onRunRequeued(task *Task, failure *pipeline.StageFailure) error
	close()
}

type runsClientWrapper struct {
	runsClient *runs.Client
}

func (wrapper *runsClientWrapper) close() {
	wrapper.runsClient.Close()
}

func (wrapper *runsClientWrapper) getRunTask(runID string) (*runs.RunTask, error) {
	return wrapper.runsClient.Get(runID)
}

func (wrapper *runsClientWrapper) onDeliveryStarted(task *Task) error {
	return wrapper.runsClient.Update(task.runID, func(runTask *runs.RunTask) {
		runTask.Attempts += 1
	})
}

func (wrapper *runsClientWrapper) onRunCanceled(task *Task, errorMessages ...string) error {
	return wrapper.runsClient.Update(task.runID, func(runTask *runs.RunTask) {
		runTask.Status = runs.RunStatusCanceled
		runTask.CompletedAt = runs.FormattedNow()
		if len(errorMessages) > 0 {
			runTask.FailureReason = errorMessages[0]
		}
	})
}

// onRunRequeued takes a run aborted on an infrastructure failure back to
// submitted so the redelivered message is not skipped as already complete. The
// failure stage and reason stay on the document for visibility.
func (wrapper *runsClientWrapper) onRunRequeued(task *Task, failure *pipeline.StageFailure) error {
	return wrapper.runsClient.Update(task.runID, func(runTask *runs.RunTask) {
		runTask.Status = runs.RunStatusSubmitted
		runTask.CompletedAt = nil
		runTask.FailureStage = string(failure.Stage)
		runTask.FailureReason = failure.Reason
	})
}

func (wrapper *runsClientWrapper) onRunExceededRetries(task *Task, maxRetries int) error {
	return wrapper.runsClient.Update(task.runID, func(runTask *runs.RunTask) {
		runTask.Status = runs.RunStatusAborted
		runTask.CompletedAt = runs.FormattedNow()
		runTask.FailureReason = fmt.Sprintf(
			"Run has exceeded delivery retries. (Attempts: %d, max retries: %d )",
			runTask.Attempts,
			maxRetries,
		)
	})
}
