package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/shiftbrew/dispatch/internal/api/middleware"
	"github.com/shiftbrew/dispatch/internal/domain"
	"github.com/shiftbrew/dispatch/internal/service"
)

// NotificationHandler handles single-notification endpoints.
type NotificationHandler struct {
	producer *service.Producer
	monitor  *service.Monitor
	logger   *zap.Logger
}

func NewNotificationHandler(producer *service.Producer, monitor *service.Monitor, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{producer: producer, monitor: monitor, logger: logger}
}

// Create handles POST /api/v1/notifications
//
// @Summary     Submit a notification for delivery
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Param       X-Idempotency-Key  header    string                false  "Idempotency key"
// @Param       body               body      domain.SubmitRequest  true   "Notification payload"
// @Success     201                {object}  domain.Job
// @Success     200                {object}  domain.Job            "Duplicate: returned existing job"
// @Failure     403                {object}  map[string]string
// @Failure     422                {object}  map[string]string
// @Router      /api/v1/notifications [post]
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	idempotencyKey := r.Header.Get("X-Idempotency-Key")
	job, isDuplicate, err := h.producer.Submit(r.Context(), req, idempotencyKey)
	if err != nil {
		h.logger.Warn("submit notification failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	status := http.StatusCreated
	if isDuplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, job)
}

// GetByID handles GET /api/v1/notifications/{id}
//
// @Summary  Get a notification job by ID
// @Tags     notifications
// @Produce  json
// @Param    id   path      string  true  "Job UUID"
// @Success  200  {object}  domain.Job
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id} [get]
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.monitor.JobDetail(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// List handles GET /api/v1/notifications
//
// @Summary  List notification jobs with filtering and pagination
// @Tags     notifications
// @Produce  json
// @Param    state      query     string  false  "Filter by state"
// @Param    kind       query     string  false  "Filter by kind"
// @Param    recipient  query     string  false  "Filter by recipient"
// @Param    from       query     string  false  "Created after (RFC3339)"
// @Param    to         query     string  false  "Created before (RFC3339)"
// @Param    page       query     int     false  "Page number (default 1)"
// @Param    limit      query     int     false  "Items per page (default 20, max 100)"
// @Success  200        {object}  map[string]any
// @Router   /api/v1/notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseListFilter(r)
	jobs, total, err := h.monitor.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  jobs,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func parseListFilter(r *http.Request) domain.ListFilter {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("state"); s != "" {
		st := domain.State(s)
		filter.State = &st
	}
	if k := q.Get("kind"); k != "" {
		kd := domain.Kind(k)
		filter.Kind = &kd
	}
	if rec := q.Get("recipient"); rec != "" {
		filter.Recipient = &rec
	}
	if f := q.Get("from"); f != "" {
		if t, err := time.Parse(time.RFC3339, f); err == nil {
			filter.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	return filter
}
