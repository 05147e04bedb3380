package api

import (
	"net/http"
	"strconv"

	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository"
	"github.com/google/uuid"
)

type ActivitiesHandler struct {
	responder
	activityRepo repository.ActivityRepo
}

func NewActivitiesHandler(ar repository.ActivityRepo, debug bool) *ActivitiesHandler {
	return &ActivitiesHandler{responder: responder{debug: debug}, activityRepo: ar}
}

// ListActivities pages through the activity log, optionally for one user.
func (h *ActivitiesHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID != "" {
		if _, err := uuid.Parse(userID); err != nil {
			writeJSON(w, errorResponse{Error: "invalid_input", Message: "invalid user_id", Field: "user_id"}, http.StatusBadRequest)
			return
		}
	}

	// pagination: limit and offset params
	limit := 50
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	offset := 0
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	acts, err := h.activityRepo.ListActivities(r.Context(), userID, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	total, err := h.activityRepo.CountActivities(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if acts == nil {
		acts = []models.Activity{}
	}

	resp := map[string]any{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  acts,
	}

	writeJSON(w, resp, http.StatusOK)
}
