package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"clinsight.com/cra/api"
	"clinsight.com/cra/llm"
	"clinsight.com/cra/logger"
	"clinsight.com/cra/pipeline"
	"clinsight.com/cra/records"
	"clinsight.com/cra/runs"
	"clinsight.com/cra/s3client"
	"clinsight.com/cra/stages"
	"clinsight.com/cra/types"
	"clinsight.com/cra/worker"
)

type Config struct {
	TerminologyPath string `envconfig:"CRA_TERMINOLOGY_PATH" default:""`
	RestAPIActive   bool   `envconfig:"CRA_REST_API_ACTIVE" default:"false"`
	RestAPIPort     string `envconfig:"CRA_REST_API_PORT" default:"10000"`
}

func main() {
	_ = godotenv.Load()
	logger.SetupLogging()
	craLogger := logger.NewLogger("Main")
	fatalErrLogger := craLogger.Fatal().Caller()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}

	terms := types.DefaultTerminology()
	if config.TerminologyPath != "" {
		loaded, err := types.LoadTerminology(config.TerminologyPath)
		if err != nil {
			fatalErrLogger.Err(err).Msg("Failed to load terminology dictionaries")
			os.Exit(1)
		}
		terms = loaded
	}

	llmClient, err := llm.NewOpenAIClient()
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to create LLM client")
		os.Exit(1)
	}

	patients, err := records.NewStore()
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to create patient store")
		os.Exit(1)
	}
	defer patients.Close()

	runsClient, err := runs.NewClient()
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to create runs client")
		os.Exit(1)
	}
	defer runsClient.Close()

	sink, err := s3client.New()
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to create S3 client")
		os.Exit(1)
	}

	pipelineConfig, err := pipeline.ReadConfig()
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read pipeline config")
		os.Exit(1)
	}
	orchestrator := pipeline.New(pipelineConfig, pipeline.Params{
		Extractor:  stages.NewExtractor(llmClient, terms),
		Aggregator: stages.NewAggregator(llmClient, patients, terms),
		Evaluator:  stages.NewEvaluator(llmClient),
		Renderer:   stages.NewRenderer(llmClient),
		Sink:       sink,
		Recorder:   runs.NewRecorder(runsClient),
	})

	if config.RestAPIActive {
		go func() {
			craLogger.Info().Msg("Starting API service")
			router := api.NewRouter(api.NewHandler(patients, runsClient, orchestrator))
			host := fmt.Sprintf(":%s", config.RestAPIPort)
			craLogger.Info().Msgf("REST API on %s", host)
			err := http.ListenAndServe(host, router)
			fatalErrLogger.Err(err).Msg("REST API stopped with error")
		}()
	}

	craLogger.Info().Msg("Start CRA Worker")
	for {
		rmqWorker, err := worker.New(orchestrator)
		if err != nil {
			craLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
			os.Exit(1)
		}
		err = rmqWorker.StartWorker()
		if err != nil {
			craLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
			time.Sleep(5 * time.Second)
		}
	}
}
