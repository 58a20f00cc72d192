package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/cash-forecast/internal/forecast"
	"github.com/Dan9191/cash-forecast/internal/middleware"
	"github.com/Dan9191/cash-forecast/internal/models"
	"github.com/Dan9191/cash-forecast/internal/repository"
	"github.com/Dan9191/cash-forecast/internal/service"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ForecastService is the part of the service layer exposed over HTTP
type ForecastService interface {
	Register(ctx context.Context, username, email, password string) (*models.Operator, error)
	Login(ctx context.Context, email, password string) (string, error)
	RunForecast(ctx context.Context, start time.Time, trigger string) (*models.RunRecord, error)
	RunScenarios(ctx context.Context, start time.Time, trigger string) (*service.ScenarioReport, error)
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
	CurrentRates(ctx context.Context) models.FXRates
}

type Handler struct {
	svc      ForecastService
	log      *logrus.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewHandler(svc ForecastService, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log, validate: validator.New(), now: time.Now}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type runRequest struct {
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register handles operator registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	op, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

// Login handles operator authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// RunForecast runs and stores the base forecast
func (h *Handler) RunForecast(w http.ResponseWriter, r *http.Request) {
	start, ok := h.startDate(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.RunForecast(r.Context(), start, service.TriggerAPI)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.operatorLog(r).WithField("run_id", rec.ID).Info("Forecast run created")
	writeJSON(w, http.StatusCreated, rec)
}

// RunScenarios runs and compares the stress scenarios
func (h *Handler) RunScenarios(w http.ResponseWriter, r *http.Request) {
	start, ok := h.startDate(w, r)
	if !ok {
		return
	}
	report, err := h.svc.RunScenarios(r.Context(), start, service.TriggerAPI)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.operatorLog(r).WithField("runs", len(report.RunIDs)).Info("Scenario runs created")
	writeJSON(w, http.StatusCreated, report)
}

// GetRun returns a stored run with its ledger
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListRuns returns the latest stored runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// Rates returns the conversion rates a run would use now
func (h *Handler) Rates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CurrentRates(r.Context()))
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startDate reads the optional start date; an empty body means today
// operatorLog tags entries with the authenticated operator
func (h *Handler) operatorLog(r *http.Request) *logrus.Entry {
	entry := logrus.NewEntry(h.log)
	if id, ok := middleware.OperatorID(r.Context()); ok {
		entry = entry.WithField("operator_id", id)
	}
	return entry
}

func (h *Handler) startDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	var req runRequest
	if !h.decodeBody(w, r, &req, true) {
		return time.Time{}, false
	}
	if req.StartDate == "" {
		return models.Day(h.now()), true
	}
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return start, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return h.decodeBody(w, r, dst, false)
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid field "+verrs[0].Field()+": "+verrs[0].Tag())
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, forecast.ErrInvalidConfig):
		h.log.Warnf("Rejected forecast request: %v", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.log.Errorf("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
