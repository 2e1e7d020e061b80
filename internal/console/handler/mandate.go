package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

type MandateService interface {
	ForGrantor(grantorID string) []domain.Mandate
	Get(ctx context.Context, id string) (*domain.Mandate, error)
	Issue(ctx context.Context, m *domain.Mandate) error
	Revoke(ctx context.Context, id string) error
}

type MandateHandler struct {
	service MandateService
}

func NewMandateHandler(s MandateService) *MandateHandler {
	return &MandateHandler{service: s}
}

// ListForGrantor отдает действующие мандаты пользователя, их агент кладет в заголовок Mandates.
// GET /v1/grantors/{id}/mandates
func (h *MandateHandler) ListForGrantor(w http.ResponseWriter, r *http.Request) {
	grantorID := chi.URLParam(r, "id")
	if grantorID == "" {
		http.Error(w, "Grantor ID is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.service.ForGrantor(grantorID))
}

// Get GET /v1/mandates/{id}
func (h *MandateHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Issue выпускает мандат
// POST /v1/mandates
func (h *MandateHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var m domain.Mandate
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Issue(r.Context(), &m); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Revoke POST /v1/mandates/{id}/revoke
func (h *MandateHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Revoke(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
