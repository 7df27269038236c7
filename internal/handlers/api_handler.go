package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ad/go-onboarding-journey/internal/db"
	"github.com/ad/go-onboarding-journey/internal/models"
	"github.com/ad/go-onboarding-journey/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const maxRequestBytes = 1 << 16

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

type programResponse struct {
	Success bool                     `json:"success"`
	Steps   []*models.StepDefinition `json:"steps"`
}

type progressResponse struct {
	Success bool `json:"success"`
	*services.JourneyReport
}

type completeStepRequest struct {
	StepID    int    `json:"step_id" validate:"gt=0"`
	StudentID string `json:"student_id" validate:"omitempty,max=128"`
}

type completeStepResponse struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	XPAwarded int                 `json:"xp_awarded"`
	NextStep  *models.StepPayload `json:"next_step"`
}

// APIHandler serves the onboarding REST API over a ProgressService.
type APIHandler struct {
	progress         *services.ProgressService
	defaultStudentID string
	timeout          time.Duration
	validate         *validator.Validate
}

func NewAPIHandler(progress *services.ProgressService, defaultStudentID string, timeout time.Duration) *APIHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIHandler{
		progress:         progress,
		defaultStudentID: defaultStudentID,
		timeout:          timeout,
		validate:         validator.New(),
	}
}

func (h *APIHandler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: "onboardingd"})
	})

	r.Route("/api/onboarding", func(r chi.Router) {
		r.Get("/steps", h.handleProgram)
		r.Get("/student/{studentID}", h.handleStudentProgress)
		r.Post("/student/{studentID}/reset", h.handleResetProgress)
		r.Post("/step/complete", h.handleCompleteStep)
	})
	return r
}

func (h *APIHandler) handleProgram(w http.ResponseWriter, r *http.Request) {
	steps, err := h.progress.Program(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, programResponse{Success: true, Steps: steps})
}

func (h *APIHandler) handleStudentProgress(w http.ResponseWriter, r *http.Request) {
	studentID, ok := studentIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid student id"})
		return
	}

	report, err := h.progress.GetProgress(r.Context(), studentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Success: true, JourneyReport: report})
}

func (h *APIHandler) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	studentID, ok := studentIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid student id"})
		return
	}

	report, err := h.progress.ResetProgress(r.Context(), studentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Success: true, JourneyReport: report})
}

// studentIDParam returns the decoded student id. chi matches on RawPath when
// the request has one, so only then is the parameter still escaped.
func studentIDParam(r *http.Request) (string, bool) {
	studentID := chi.URLParam(r, "studentID")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(studentID)
		if err != nil {
			return "", false
		}
		studentID = decoded
	}
	return studentID, strings.TrimSpace(studentID) != ""
}

func (h *APIHandler) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	var req completeStepRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}
	studentID := req.StudentID
	if studentID == "" {
		studentID = h.defaultStudentID
	}

	res, err := h.progress.CompleteStep(r.Context(), studentID, req.StepID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completeStepResponse{
		Success:   true,
		Message:   res.Message,
		XPAwarded: res.XPAwarded,
		NextStep:  res.NextStep,
	})
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrUnknownStep):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrStepNotUnlocked):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s request_id=%s: %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
		detail = "internal error"
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
