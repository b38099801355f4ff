package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"clinsight.com/cra/pipeline"
	"clinsight.com/cra/runs"
)

type Message struct {
	WorkType string `json:"work_type"`
	RunID    string `json:"run_id"`
	Sender   string `json:"sender"`
	Version  string `json:"version"`
	Outcome  string `json:"outcome,omitempty"`
}

type Task struct {
	delivery  *amqp.Delivery
	runTask   *runs.RunTask
	message   *Message
	runID     string
	craLogger *zerolog.Logger
}

func (worker *Worker) processMessage(delivery *amqp.Delivery) {
	task, err := worker.createTask(delivery)
	rejectLogger := worker.craLogger.With().Str("message_id", delivery.MessageId).Logger()
	if err != nil {
		worker.craLogger.Err(err).
			Str("message_id", delivery.MessageId).
			Str("rid", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.processRun(task); err != nil {
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.notifyResults(task, *task.message); err != nil {
		task.craLogger.Err(err).Msg("Got error while sending message to results queue")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		task.craLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.craLogger.Info().Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(delivery *amqp.Delivery) (*Task, error) {
	var message Message
	err := json.Unmarshal(delivery.Body, &message)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	runTask, err := worker.runs.getRunTask(message.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run task for message, got error %w", err)
	}
	taskLogger := worker.craLogger.With().Str("rid", message.RunID).Logger()
	task := Task{
		delivery:  delivery,
		runTask:   runTask,
		runID:     message.RunID,
		message:   &message,
		craLogger: &taskLogger,
	}
	return &task, nil
}

func (worker *Worker) processRun(task *Task) error {
	shouldPerform, err := worker.shouldPerformRun(task)
	if err != nil {
		task.craLogger.Err(err).
			Msg("Got error while trying to decide whether to run pipeline")
		return err
	}
	if !shouldPerform {
		return nil
	}
	if err = worker.runs.onDeliveryStarted(task); err != nil {
		task.craLogger.Err(err).Msg("Failed to update run info")
		return fmt.Errorf("failed to update run task: %w", err)
	}
	result := worker.runPipeline(task)
	task.message.Outcome = string(result.State)
	task.craLogger.Info().
		Str("state", string(result.State)).
		Msg("Pipeline finished")
	if failure := result.Failure; result.State == pipeline.StateAborted && failure != nil && failure.Kind == pipeline.FailureTool {
		// Infrastructure failures are transient; the run goes back to the
		// queue and stays non-terminal until delivery retries run out.
		task.craLogger.Warn().
			Str("stage", string(failure.Stage)).
			Msg("Run aborted on an infrastructure failure, requeueing delivery")
		if reqErr := worker.runs.onRunRequeued(task, failure); reqErr != nil {
			task.craLogger.Err(reqErr).Msg("Failed to reset run task for redelivery")
		}
		return fmt.Errorf("run aborted on a tool failure at stage %s: %s", failure.Stage, failure.Reason)
	}
	return nil
}

// runPipeline executes the orchestrator for this run. Run state transitions
// are written by the orchestrator's recorder; the worker only owns delivery
// semantics.
func (worker *Worker) runPipeline(task *Task) pipeline.Result {
	task.craLogger.Info().Msgf("Processing message from RMQ, attempt # %d", task.runTask.Attempts)
	request := pipeline.Request{
		RID:     task.runID,
		Patient: task.runTask.Intake,
	}
	return worker.ppln.Run(context.Background(), request)
}

func (worker *Worker) shouldPerformRun(task *Task) (bool, error) {
	taskLogger := task.craLogger

	if task.runTask.Status.Complete() {
		taskLogger.Info().Msg("Run is already done. (might indicate issue acking message with RMQ). Notifying results queue.")
		return false, nil
	}
	if task.runTask.UserCanceled {
		taskLogger.Info().Msg("Run was canceled, no need to perform it. Notifying results queue.")
		err := worker.runs.onRunCanceled(task)
		return false, err
	}
	if task.runTask.Attempts >= worker.config.RunMaxRetries {
		taskLogger.Info().Msg("Run has exceeded delivery retries. Notifying results queue.")
		err := worker.runs.onRunExceededRetries(task, worker.config.RunMaxRetries)
		return false, err
	}
	return true, nil
}
