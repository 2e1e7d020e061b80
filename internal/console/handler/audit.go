package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/xela07ax/agent-mandate/internal/audit"
	"github.com/xela07ax/agent-mandate/internal/repository/postgres"
)

type AuditService interface {
	FetchLogs(ctx context.Context, f postgres.ActionLogFilter) ([]audit.ActionLog, error)
}

type AuditHandler struct {
	service AuditService
}

func NewAuditHandler(s AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetLogs возвращает журнал действий с фильтрацией
// GET /v1/audit?agent_id=...&mandate_id=...&limit=...
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	logs, err := h.service.FetchLogs(r.Context(), postgres.ActionLogFilter{
		AgentID:   q.Get("agent_id"),
		MandateID: q.Get("mandate_id"),
		Limit:     limit,
	})
	if err != nil {
		http.Error(w, "Failed to fetch audit logs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}
