package worker

import (
	"context"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"clinsight.com/cra/logger"
	"clinsight.com/cra/pipeline"
	"clinsight.com/cra/rmq"
	"clinsight.com/cra/runs"
)

type Config struct {
	RunMaxRetries int `envconfig:"CRA_COMN_RETRY_RUN_COUNT_MAX" default:"3"`
}

// Runner is the pipeline as the worker sees it.
type Runner interface {
	Run(ctx context.Context, request pipeline.Request) pipeline.Result
}

type Worker struct {
	config    Config
	runs      runsTransactions
	rmq       rmqTransactions
	craLogger *zerolog.Logger
	ppln      Runner
}

func New(ppln Runner) (*Worker, error) {
	craLogger := logger.NewLogger("Worker")

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		craLogger.Error().Err(err).Msg("Could not read config")
		return nil, err
	}

	worker := Worker{
		config:    config,
		craLogger: &craLogger,
		ppln:      ppln,
	}
	if err := worker.refreshRMQClient(); err != nil {
		craLogger.Error().Err(err).Msg("Could not create RMQ client")
		return nil, err
	}
	if err := worker.refreshRunsClient(); err != nil {
		craLogger.Error().Err(err).Msg("Could not create runs client")
		return nil, err
	}
	return &worker, nil
}

func (worker *Worker) StartWorker() error {
	defer worker.Close()
	for {
		select {
		case delivery, ok := <-worker.rmq.getDeliveriesCh():
			if ok {
				go worker.processMessage(&delivery)
				continue
			}
			worker.craLogger.Error().Msg("Deliveries channel closed, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf(
					"rmq deliveries channel has been closed and refresh returned error: %w",
					err,
				)
			}
		case rmqErr := <-worker.rmq.getRespChanErrorsCh():
			if rmqErr == nil {
				continue
			}
			worker.craLogger.Err(rmqErr).Msg("Response connection received error, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf(
					"response connection received error and refresh failed with: %w",
					err,
				)
			}
		case rmqErr := <-worker.rmq.getReqChanErrorsCh():
			if rmqErr == nil {
				continue
			}
			worker.craLogger.Err(rmqErr).Msg("Request connection received error, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf(
					"request connection received error and refresh failed with: %w",
					err,
				)
			}
		}
	}
}

func (worker *Worker) Close() {
	worker.runs.close()
	worker.rmq.close()
}

func (worker *Worker) refreshRunsClient() error {
	worker.craLogger.Info().Msg("Refreshing runs client")
	if oldClient := worker.runs; oldClient != nil {
		defer oldClient.close()
	}
	runsClient, err := runs.NewClient()
	if err != nil {
		worker.craLogger.Err(err).Msg("Failed to refresh runs client")
		return err
	}
	worker.runs = &runsClientWrapper{runsClient}
	worker.craLogger.Info().Msg("Refreshed runs client")
	return nil
}

func (worker *Worker) refreshRMQClient() error {
	worker.craLogger.Info().Msg("Refreshing RMQ client")
	if oldClient := worker.rmq; oldClient != nil {
		defer oldClient.close()
	}
	rmqClient, err := rmq.NewClient()
	if err != nil {
		worker.craLogger.Err(err).Msg("Failed to refresh RMQ client")
		return err
	}
	worker.rmq = &rmqClientWrapper{rmqClient}
	worker.craLogger.Info().Msg("Refreshed RMQ client")
	return nil
}
