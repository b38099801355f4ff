package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clinsight.com/cra/pipeline"
	"clinsight.com/cra/records"
	"clinsight.com/cra/runs"
	"clinsight.com/cra/types"
)

// Runner is the pipeline as the API sees it. Analyses submitted over HTTP run
// inline; queued work goes through the RMQ worker instead.
type Runner interface {
	Run(ctx context.Context, request pipeline.Request) pipeline.Result
}

type patientStore interface {
	Create(patient records.Patient) error
	Lookup(nationalID string) (*records.Patient, error)
	AppendHistory(nationalID string, description string, timestamp time.Time) error
	ListHistory(nationalID string) ([]records.HistoryEntry, error)
}

type runStore interface {
	Create(task runs.RunTask) error
	Get(runID string) (*runs.RunTask, error)
	Cancel(runID string) error
}

type Handler struct {
	patients patientStore
	runs     runStore
	ppln     Runner
}

func NewHandler(patients *records.Store, runsClient *runs.Client, ppln Runner) *Handler {
	return &Handler{
		patients: patients,
		runs:     runsClient,
		ppln:     ppln,
	}
}

type createPatientRequest struct {
	NationalID     string       `json:"national_id"`
	Name           string       `json:"name"`
	Age            int          `json:"age"`
	Gender         types.Gender `json:"gender"`
	InitialHistory string       `json:"initial_history,omitempty"`
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	craLogger := makeRequestLogger(r)
	var req createPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NationalID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "national_id and name are required")
		return
	}
	if !req.Gender.Valid() {
		writeError(w, http.StatusBadRequest, "gender must be one of male, female, other")
		return
	}
	if req.Age < types.MinPatientAge || req.Age > types.MaxPatientAge {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("age must be between %d and %d", types.MinPatientAge, types.MaxPatientAge))
		return
	}
	patient := records.Patient{
		NationalID: req.NationalID,
		Name:       req.Name,
		Age:        req.Age,
		Gender:     req.Gender,
	}
	if err := h.patients.Create(patient); err != nil {
		if errors.Is(err, records.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "patient already exists")
			return
		}
		craLogger.Err(err).Msg("Failed to create patient")
		writeError(w, http.StatusInternalServerError, "could not create patient")
		return
	}
	if req.InitialHistory != "" {
		if err := h.patients.AppendHistory(req.NationalID, req.InitialHistory, time.Now().UTC()); err != nil {
			craLogger.Err(err).Msg("Failed to record initial history entry")
			writeError(w, http.StatusInternalServerError, "patient created but initial history entry failed")
			return
		}
	}
	craLogger.Info().Str("national_id", req.NationalID).Msg("Registered new patient")
	writeJSON(w, http.StatusCreated, map[string]string{"national_id": req.NationalID})
}

type appendHistoryRequest struct {
	Description string     `json:"description"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

func (h *Handler) AppendHistory(w http.ResponseWriter, r *http.Request) {
	craLogger := makeRequestLogger(r)
	nationalID := chi.URLParam(r, "nationalID")
	var req appendHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}
	timestamp := time.Now().UTC()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}
	if err := h.patients.AppendHistory(nationalID, req.Description, timestamp); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		craLogger.Err(err).Msg("Failed to append history entry")
		writeError(w, http.StatusInternalServerError, "could not append history entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	craLogger := makeRequestLogger(r)
	nationalID := chi.URLParam(r, "nationalID")
	entries, err := h.patients.ListHistory(nationalID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		craLogger.Err(err).Msg("Failed to list history")
		writeError(w, http.StatusInternalServerError, "could not list history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) SubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	craLogger := makeRequestLogger(r)
	var intake types.PatientInput
	if err := json.NewDecoder(r.Body).Decode(&intake); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := intake.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runID := uuid.New().String()
	task := runs.RunTask{
		RunID:     runID,
		PatientID: intake.PatientID,
		Intake:    intake,
	}
	if err := h.runs.Create(task); err != nil {
		craLogger.Err(err).Msg("Failed to create run task")
		writeError(w, http.StatusInternalServerError, "could not create run")
		return
	}
	runLogger := craLogger.With().Str("rid", runID).Logger()
	runLogger.Info().Msg("Starting pipeline for request from API")
	result := h.ppln.Run(r.Context(), pipeline.Request{RID: runID, Patient: intake})
	runLogger.Info().Str("state", string(result.State)).Msg("Finished processing request")
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	craLogger := makeRequestLogger(r)
	runID := chi.URLParam(r, "runID")
	task, err := h.runs.Get(runID)
	if err != nil {
		craLogger.Err(err).Str("rid", runID).Msg("Failed to query run task")
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) CancelAnalysis(w http.ResponseWriter, r *http.Request) {
	craLogger := makeRequestLogger(r)
	runID := chi.URLParam(r, "runID")
	if err := h.runs.Cancel(runID); err != nil {
		craLogger.Err(err).Str("rid", runID).Msg("Failed to cancel run")
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "cancel requested"})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Post("/patients", h.CreatePatient)
	r.Post("/patients/{nationalID}/history", h.AppendHistory)
	r.Get("/patients/{nationalID}/history", h.ListHistory)
	r.Post("/analyses", h.SubmitAnalysis)
	r.Get("/analyses/{runID}", h.GetAnalysis)
	r.Post("/analyses/{runID}/cancel", h.CancelAnalysis)
	return r
}
