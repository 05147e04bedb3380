package api

import (
	"net/http"

	"github.com/garnizeh/probetas/internal/inventory"
	"github.com/garnizeh/probetas/internal/validation"
	"github.com/garnizeh/probetas/pkg/models"
	"github.com/gorilla/mux"
)

type BatchesHandler struct {
	responder
	svc       *inventory.Service
	validator *validation.Validator
}

func NewBatchesHandler(svc *inventory.Service, v *validation.Validator, debug bool) *BatchesHandler {
	return &BatchesHandler{responder: responder{debug: debug}, svc: svc, validator: v}
}

type batchSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

type batchWriteResponse struct {
	Message string   `json:"message"`
	Data    any      `json:"data"`
	Created int      `json:"created"`
	Skipped []string `json:"skipped"`
}

func (h *BatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	batches, err := h.svc.ListBatches(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"data": batches, "count": len(batches)}, http.StatusOK)
}

func (h *BatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetBatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if detail.Specimens == nil {
		detail.Specimens = []models.Specimen{}
	}

	writeJSON(w, map[string]any{"data": detail}, http.StatusOK)
}

func (h *BatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.readBatch(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.svc.CreateBatch(r.Context(), actorID(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	b := res.Batch
	writeJSON(w, batchWriteResponse{
		Message: "batch created",
		Data:    batchSummary{ID: b.ID, Name: b.Name, Date: b.Date, Description: b.Description},
		Created: res.Created,
		Skipped: res.Skipped,
	}, http.StatusCreated)
}

// Replace overwrites the batch; a body without "specimens" keeps the current
// specimens.
func (h *BatchesHandler) Replace(w http.ResponseWriter, r *http.Request) {
	in, err := h.readBatch(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.svc.ReplaceBatch(r.Context(), actorID(r), mux.Vars(r)["id"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, batchWriteResponse{
		Message: "batch updated",
		Data:    res.Batch,
		Created: res.Created,
		Skipped: res.Skipped,
	}, http.StatusOK)
}

func (h *BatchesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBatch(r.Context(), actorID(r), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, messageResponse{Message: "batch deleted"}, http.StatusOK)
}

func (h *BatchesHandler) readBatch(w http.ResponseWriter, r *http.Request) (inventory.BatchInput, error) {
	var in inventory.BatchInput
	body, err := readBody(w, r)
	if err != nil {
		return in, err
	}
	if err := h.validator.Validate(r.Context(), validation.Batch, body); err != nil {
		return in, err
	}
	return in, decode(body, &in)
}
