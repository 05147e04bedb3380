package api

import (
	"encoding/csv"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/garnizeh/probetas/internal/inventory"
	"github.com/garnizeh/probetas/internal/validation"
	"github.com/garnizeh/probetas/pkg/models"
	"github.com/gorilla/mux"
)

type SpecimensHandler struct {
	responder
	svc       *inventory.Service
	validator *validation.Validator
}

func NewSpecimensHandler(svc *inventory.Service, v *validation.Validator, debug bool) *SpecimensHandler {
	return &SpecimensHandler{responder: responder{debug: debug}, svc: svc, validator: v}
}

type pagination struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Pages  int64 `json:"pages"`
}

type specimenResponse struct {
	Message string           `json:"message,omitempty"`
	Data    *models.Specimen `json:"data"`
}

var csvHeader = []string{
	"lote", "orden", "fecha", "orientacion", "descripcion", "ensayo", "tipo_fibra",
	"fuerza_maxima", "modulo_elasticidad", "tipo_resina", "curado_temp_hum",
}

// specimenFilter reads the listing query parameters. Bad numbers fall back to
// the defaults and unknown sort columns to fecha.
func specimenFilter(q url.Values) models.SpecimenFilter {
	f := models.SpecimenFilter{
		BatchID:   strings.TrimSpace(q.Get("batch_id")),
		Ensayo:    strings.TrimSpace(q.Get("ensayo")),
		TipoFibra: strings.TrimSpace(q.Get("tipo_fibra")),
		Search:    strings.TrimSpace(q.Get("search")),
		SortBy:    q.Get("sort_by"),
		SortDesc:  !strings.EqualFold(q.Get("sort_order"), "ASC"),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = v
	}
	return f
}

func (h *SpecimensHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListSpecimens(r.Context(), specimenFilter(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, map[string]any{
		"data": page.Items,
		"pagination": pagination{
			Total:  page.Total,
			Limit:  page.Limit,
			Offset: page.Offset,
			Pages:  page.Pages,
		},
	}, http.StatusOK)
}

// Export writes every specimen matching the listing filters as CSV.
func (h *SpecimensHandler) Export(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ExportSpecimens(r.Context(), specimenFilter(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="probetas.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, s := range items {
		_ = cw.Write([]string{
			s.BatchName, s.Orden, s.Fecha, s.Orientacion, s.Descripcion, s.Ensayo, s.TipoFibra,
			formatFloat(s.FuerzaMaxima), formatFloat(s.ModuloElasticidad), s.TipoResina, s.CuradoTempHum,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.Error("csv export interrupted", "err", err)
	}
}

func (h *SpecimensHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.GetSpecimen(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, specimenResponse{Data: s}, http.StatusOK)
}

func (h *SpecimensHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in inventory.SpecimenInput
	if err := h.readValid(w, r, validation.SpecimenCreate, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	s, err := h.svc.CreateSpecimen(r.Context(), actorID(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, specimenResponse{Message: "specimen created", Data: s}, http.StatusCreated)
}

func (h *SpecimensHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch inventory.SpecimenPatch
	if err := h.readValid(w, r, validation.SpecimenPatch, &patch); err != nil {
		h.fail(w, r, err)
		return
	}

	s, err := h.svc.UpdateSpecimen(r.Context(), actorID(r), mux.Vars(r)["id"], patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, specimenResponse{Message: "specimen updated", Data: s}, http.StatusOK)
}

func (h *SpecimensHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSpecimen(r.Context(), actorID(r), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, messageResponse{Message: "specimen deleted"}, http.StatusOK)
}

func (h *SpecimensHandler) readValid(w http.ResponseWriter, r *http.Request, schema string, v any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := h.validator.Validate(r.Context(), schema, body); err != nil {
		return err
	}
	return decode(body, v)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
