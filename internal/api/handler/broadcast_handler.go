package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/shiftbrew/dispatch/internal/api/middleware"
	"github.com/shiftbrew/dispatch/internal/domain"
	"github.com/shiftbrew/dispatch/internal/service"
)

// BroadcastHandler handles the operator broadcast endpoint.
type BroadcastHandler struct {
	producer *service.Producer
	logger   *zap.Logger
}

func NewBroadcastHandler(producer *service.Producer, logger *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{producer: producer, logger: logger}
}

// Broadcast handles POST /api/v1/notifications/broadcast
//
// @Summary  Fan an operator notification out to every whitelisted operator
// @Tags     notifications
// @Accept   json
// @Produce  json
// @Param    body  body      domain.BroadcastRequest  true  "Broadcast payload"
// @Success  201   {object}  map[string]any
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/notifications/broadcast [post]
func (h *BroadcastHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	jobs, err := h.producer.Broadcast(r.Context(), req)
	if err != nil {
		h.logger.Warn("broadcast failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"count":   len(jobs),
		"job_ids": ids,
	})
}
