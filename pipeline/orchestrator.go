package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"clinsight.com/cra/logger"
	"clinsight.com/cra/stages"
	"clinsight.com/cra/types"
	"clinsight.com/cra/utils"
)

type Config struct {
	StageTimeoutSeconds int `envconfig:"CRA_STAGE_TIMEOUT_SECONDS" default:"30"`
	StageRetryMax       int `envconfig:"CRA_STAGE_RETRY_MAX" default:"3"`
	GenerationRetryMax  int `envconfig:"CRA_GENERATION_RETRY_MAX" default:"2"`
}

func ReadConfig() (Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	return config, err
}

type Params struct {
	Extractor  Extractor
	Aggregator Aggregator
	Evaluator  Evaluator
	Renderer   Renderer
	Sink       ArtifactSink
	Recorder   Recorder
}

// Orchestrator owns stage order, context passing, retries and the
// failure contract. One instance serves any number of concurrent runs; all
// per-run state lives on the stack of Run.
type Orchestrator struct {
	config    Config
	params    Params
	craLogger zerolog.Logger
}

func New(config Config, params Params) *Orchestrator {
	if params.Recorder == nil {
		params.Recorder = NoopRecorder{}
	}
	return &Orchestrator{
		config:    config,
		params:    params,
		craLogger: logger.NewLogger("Orchestrator"),
	}
}

// Run executes the four stages strictly in order. Each stage's validated
// output is the only channel by which the next stage observes it. On any
// exhausted failure the run aborts in place; no partial report is emitted.
func (o *Orchestrator) Run(ctx context.Context, request Request) Result {
	runLogger := o.craLogger.With().Str("rid", request.RID).Logger()
	result := Result{RID: request.RID, State: StateNotStarted}

	if err := request.Patient.Validate(); err != nil {
		// Caller input never becomes valid on retry.
		return o.abort(&runLogger, result, &StageFailure{
			Stage:    StageExtract,
			Kind:     FailureSchemaValidation,
			Attempts: 0,
			Err:      err,
			Reason:   err.Error(),
		})
	}
	if err := o.params.Recorder.OnRunStarted(request.RID); err != nil {
		runLogger.Err(err).Msg("Failed to record run start")
	}
	result.State = StateRunning
	runLogger.Info().Msg("Started clinical report pipeline")

	if failure := o.checkBoundary(ctx, request.RID, StageExtract); failure != nil {
		return o.abort(&runLogger, result, failure)
	}
	failure := o.runStage(ctx, &runLogger, request.RID, StageExtract, func(stageCtx context.Context) error {
		var err error
		result.Patient, err = o.params.Extractor.Extract(stageCtx, request.Patient)
		return err
	})
	if failure == nil {
		failure = o.saveArtifact(&runLogger, request.RID, StageExtract, result.Patient)
	}
	if failure != nil {
		return o.abort(&runLogger, result, failure)
	}

	if failure := o.checkBoundary(ctx, request.RID, StageHistory); failure != nil {
		return o.abort(&runLogger, result, failure)
	}
	failure = o.runStage(ctx, &runLogger, request.RID, StageHistory, func(stageCtx context.Context) error {
		var err error
		result.Profile, err = o.params.Aggregator.Aggregate(stageCtx, result.Patient, request.Patient.PatientID)
		return err
	})
	if failure == nil {
		failure = o.saveArtifact(&runLogger, request.RID, StageHistory, result.Profile)
	}
	if failure != nil {
		return o.abort(&runLogger, result, failure)
	}

	if failure := o.checkBoundary(ctx, request.RID, StageEvaluate); failure != nil {
		return o.abort(&runLogger, result, failure)
	}
	failure = o.runStage(ctx, &runLogger, request.RID, StageEvaluate, func(stageCtx context.Context) error {
		var err error
		result.Assessment, err = o.params.Evaluator.Evaluate(stageCtx, result.Profile)
		return err
	})
	if failure == nil {
		failure = o.saveArtifact(&runLogger, request.RID, StageEvaluate, result.Assessment)
	}
	if failure != nil {
		return o.abort(&runLogger, result, failure)
	}

	if failure := o.checkBoundary(ctx, request.RID, StageRender); failure != nil {
		return o.abort(&runLogger, result, failure)
	}
	failure = o.runStage(ctx, &runLogger, request.RID, StageRender, func(stageCtx context.Context) error {
		var err error
		result.Report, err = o.params.Renderer.Render(stageCtx, result.Assessment)
		return err
	})
	if failure == nil {
		failure = o.uploadArtifact(&runLogger, request.RID, StageRender, result.Report)
	}
	if failure != nil {
		return o.abort(&runLogger, result, failure)
	}

	result.State = StateCompleted
	if err := o.params.Recorder.OnRunCompleted(request.RID); err != nil {
		runLogger.Err(err).Msg("Failed to record run completion")
	}
	runLogger.Info().Msg("Finished clinical report pipeline")
	return result
}

// runStage executes one stage attempt loop. Schema failures retry with the
// same input context; generation failures retry on their own, smaller bound;
// tool failures never retry.
func (o *Orchestrator) runStage(ctx context.Context, runLogger *zerolog.Logger, rid string, stage Stage, fn func(stageCtx context.Context) error) *StageFailure {
	timeout := time.Duration(o.config.StageTimeoutSeconds) * time.Second
	stageLogger := runLogger.With().Str("stage", string(stage)).Logger()

	for attempt := 1; ; attempt++ {
		if err := o.params.Recorder.OnStageStarted(rid, stage, attempt); err != nil {
			stageLogger.Err(err).Msg("Failed to record stage start")
		}
		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		err := o.execute(stageCtx, fn)
		cancel()
		if err == nil {
			return nil
		}
		kind := classify(err)
		stageLogger.Err(err).
			Str("kind", string(kind)).
			Int("attempt", attempt).
			Msg("Stage attempt failed")
		if recErr := o.params.Recorder.OnStageFailed(rid, stage, err.Error()); recErr != nil {
			stageLogger.Err(recErr).Msg("Failed to record stage failure")
		}
		if ctx.Err() != nil {
			return &StageFailure{Stage: stage, Kind: FailureCanceled, Attempts: attempt, Err: ctx.Err(), Reason: ctx.Err().Error()}
		}
		if attempt >= o.maxAttempts(kind) {
			return &StageFailure{Stage: stage, Kind: kind, Attempts: attempt, Err: err, Reason: err.Error()}
		}
	}
}

func (o *Orchestrator) execute(stageCtx context.Context, fn func(stageCtx context.Context) error) (err error) {
	defer utils.RecoverWithError(&err)
	return fn(stageCtx)
}

func (o *Orchestrator) maxAttempts(kind FailureKind) int {
	switch kind {
	case FailureSchemaValidation:
		return o.config.StageRetryMax
	case FailureGeneration:
		return o.config.GenerationRetryMax
	default:
		// Tool failures are not transient model noise; retrying cannot help.
		return 1
	}
}

// checkBoundary enforces cancellation semantics: a cancelled run stops at the
// next stage boundary, never mid generation call.
func (o *Orchestrator) checkBoundary(ctx context.Context, rid string, stage Stage) *StageFailure {
	if err := ctx.Err(); err != nil {
		return &StageFailure{Stage: stage, Kind: FailureCanceled, Err: err, Reason: err.Error()}
	}
	canceled, err := o.params.Recorder.IsCanceled(rid)
	if err != nil {
		return &StageFailure{Stage: stage, Kind: FailureTool, Err: err, Reason: err.Error()}
	}
	if canceled {
		return &StageFailure{Stage: stage, Kind: FailureCanceled, Reason: "run was canceled by the caller"}
	}
	return nil
}

func (o *Orchestrator) saveArtifact(runLogger *zerolog.Logger, rid string, stage Stage, doc interface{}) *StageFailure {
	data, err := json.Marshal(doc)
	if err != nil {
		return &StageFailure{Stage: stage, Kind: FailureTool, Attempts: 1, Err: err, Reason: err.Error()}
	}
	return o.uploadArtifact(runLogger, rid, stage, string(data))
}

func (o *Orchestrator) uploadArtifact(runLogger *zerolog.Logger, rid string, stage Stage, data string) *StageFailure {
	key := ArtifactKey(rid, stage)
	if err := o.params.Sink.Upload(data, key); err != nil {
		runLogger.Err(err).Str("key", key).Msg("Failed to store stage artifact")
		return &StageFailure{Stage: stage, Kind: FailureTool, Attempts: 1, Err: err, Reason: err.Error()}
	}
	checksum := utils.ChecksumString(data)
	if err := o.params.Recorder.OnStageCompleted(rid, stage, key, checksum); err != nil {
		runLogger.Err(err).Str("key", key).Msg("Failed to record stage completion")
	}
	return nil
}

func (o *Orchestrator) abort(runLogger *zerolog.Logger, result Result, failure *StageFailure) Result {
	result.State = StateAborted
	result.Failure = failure
	// Downstream output must not leak out of an aborted run.
	result.Report = ""
	runLogger.Error().
		Str("stage", string(failure.Stage)).
		Str("kind", string(failure.Kind)).
		Msg("Pipeline aborted")
	if err := o.params.Recorder.OnRunAborted(result.RID, failure); err != nil {
		runLogger.Err(err).Msg("Failed to record run abort")
	}
	return result
}

// ArtifactKey is the well-known output location for a stage's artifact.
func ArtifactKey(rid string, stage Stage) string {
	return path.Join("processed", "runs", rid, artifactName(stage))
}

func artifactName(stage Stage) string {
	switch stage {
	case StageExtract:
		return "patient_data.json"
	case StageHistory:
		return "history_profile.json"
	case StageEvaluate:
		return "assessment.json"
	case StageRender:
		return "final_report.html"
	}
	return string(stage) + ".json"
}

// classify maps an error to the failure taxonomy. Timeouts surface as
// generation failures, not crashes.
func classify(err error) FailureKind {
	var schemaErr *types.SchemaError
	if errors.As(err, &schemaErr) {
		return FailureSchemaValidation
	}
	var toolErr *stages.ToolError
	if errors.As(err, &toolErr) {
		return FailureTool
	}
	var genErr *stages.GenerationError
	if errors.As(err, &genErr) {
		return FailureGeneration
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureGeneration
	}
	return FailureGeneration
}
