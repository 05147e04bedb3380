package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/garnizeh/probetas/internal/inventory"
	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository"
)

type DashboardHandler struct {
	responder
	dashboard    repository.DashboardRepo
	activityRepo repository.ActivityRepo
	svc          *inventory.Service
	now          func() time.Time
}

func NewDashboardHandler(dr repository.DashboardRepo, ar repository.ActivityRepo, svc *inventory.Service, debug bool) *DashboardHandler {
	return &DashboardHandler{responder: responder{debug: debug}, dashboard: dr, activityRepo: ar, svc: svc, now: time.Now}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context(), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"data": stats}, http.StatusOK)
}

// Activity returns the most recent activity of every user.
func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	acts, err := h.activityRepo.ListActivities(r.Context(), "", limit, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"data": acts}, http.StatusOK)
}

func (h *DashboardHandler) Charts(w http.ResponseWriter, r *http.Request) {
	charts, err := h.dashboard.Charts(r.Context(), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"data": charts}, http.StatusOK)
}

// Reports lists the specimens in a date range, newest first, with summary
// figures.
func (h *DashboardHandler) Reports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.SpecimenFilter{
		BatchID:  strings.TrimSpace(q.Get("batch_id")),
		SortBy:   "fecha",
		SortDesc: true,
	}

	var err error
	if v := q.Get("start_date"); v != "" {
		if f.StartDate, err = inventory.ParseDate("start_date", v); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if v := q.Get("end_date"); v != "" {
		if f.EndDate, err = inventory.ParseDate("end_date", v); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	specimens, err := h.svc.ExportSpecimens(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.dashboard.ReportStats(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"data": map[string]any{"specimens": specimens, "stats": stats}}, http.StatusOK)
}
