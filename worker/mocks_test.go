package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"clinsight.com/cra/pipeline"
	"clinsight.com/cra/runs"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type pipelineMock struct {
	config pipelineMockConfig
	calls  pipelineCall
}

type pipelineMockConfig struct {
	result pipeline.Result
}

type pipelineCall struct {
	run bool
}

func (mock *pipelineMock) Run(ctx context.Context, request pipeline.Request) pipeline.Result {
	mock.calls.run = true
	result := mock.config.result
	result.RID = request.RID
	return result
}

type runsMock struct {
	config runsMockConfig
	calls  runsMockCalls
}

type runsMockConfig struct {
	getRunTask           withValue
	onDeliveryStarted    failingMethod
	onRunCanceled        failingMethod
	onRunExceededRetries failingMethod
	onRunRequeued        failingMethod
}

type runsMockCalls struct {
	getRunTask           bool
	onDeliveryStarted    bool
	onRunCanceled        bool
	onRunExceededRetries bool
	onRunRequeued        bool
}

type rmqMock struct {
	config rmqMockConfig
	calls  rmqMockCalls
}

type rmqMockConfig struct {
	notifyResults       failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	notifyResults       bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

func (mock *runsMock) close() {}

func (mock *rmqMock) close() {}

func (mock *runsMock) getRunTask(runID string) (*runs.RunTask, error) {
	mock.calls.getRunTask = true
	if mock.config.getRunTask.fail {
		return nil, errors.New("failed to get run task")
	}
	switch mock.config.getRunTask.returnedValue.(type) {
	case runs.RunTask:
		task := mock.config.getRunTask.returnedValue.(runs.RunTask)
		return &task, nil
	default:
		return &runs.RunTask{}, nil
	}
}

func (mock *runsMock) onDeliveryStarted(task *Task) error {
	mock.calls.onDeliveryStarted = true
	if mock.config.onDeliveryStarted.fail {
		return errors.New("failed to update run task on start")
	}
	return nil
}

func (mock *runsMock) onRunCanceled(task *Task, errorMessages ...string) error {
	mock.calls.onRunCanceled = true
	if mock.config.onRunCanceled.fail {
		return errors.New("failed to update run task on cancel")
	}
	return nil
}

func (mock *runsMock) onRunRequeued(task *Task, failure *pipeline.StageFailure) error {
	mock.calls.onRunRequeued = true
	if mock.config.onRunRequeued.fail {
		return errors.New("failed to update run task on requeue")
	}
	return nil
}

func (mock *runsMock) onRunExceededRetries(task *Task, maxRetries int) error {
	mock.calls.onRunExceededRetries = true
	if mock.config.onRunExceededRetries.fail {
		return errors.New("failed to update run task on exceeded retries")
	}
	return nil
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, craLogger *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return nil
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) notifyResults(task *Task, message Message) error {
	mock.calls.notifyResults = true
	if mock.config.notifyResults.fail {
		return errors.New("failed to notify results queue")
	}
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}
