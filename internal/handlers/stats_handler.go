package handlers

import (
	"net/http"

	"github.com/agentpay/backoffice/internal/services"
)

type StatsHandler struct {
	service *services.StatsService
}

func NewStatsHandler(service *services.StatsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Overview returns dashboard aggregates
// @Summary Dashboard overview
// @Description Deposit and withdrawal totals grouped by status
// @Tags stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Overview
// @Router /stats [get]
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetOverview(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}
