package api_test

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/garnizeh/probetas/pkg/models"
)

type batchWrite struct {
	Data struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Date string `json:"date"`
	} `json:"data"`
	Created int      `json:"created"`
	Skipped []string `json:"skipped"`
}

type specimenWrite struct {
	Data models.Specimen `json:"data"`
}

type specimenList struct {
	Data       []models.Specimen `json:"data"`
	Pagination struct {
		Total  int64 `json:"total"`
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
		Pages  int64 `json:"pages"`
	} `json:"pagination"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func TestBatchSpecimenLifecycle(t *testing.T) {
	srv := setupServer(t, testConfig(t))

	if status, _ := do(t, srv, http.MethodGet, "/api/batches", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", status)
	}
	if status, _ := do(t, srv, http.MethodGet, "/api/batches", "garbage", nil); status != http.StatusForbidden {
		t.Fatalf("bad token: expected 403, got %d", status)
	}

	token, _ := register(t, srv, "tester")

	// Bulk create with a duplicated orden
	status, data := do(t, srv, http.MethodPost, "/api/batches", token, map[string]any{
		"name":        "Lote A",
		"date":        "2024-05-10",
		"description": "vidrio/epoxi",
		"specimens": []map[string]any{
			{"orden": "01", "ensayo": "Tracción", "tipoFibra": "Vidrio", "fuerzaMaxima": "12.5"},
			{"orden": "01", "ensayo": "Flexión"},
			{"orden": "02", "fecha": "2024-05-12", "fuerzaMaxima": 20, "moduloElasticidad": ""},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("create batch: %d %s", status, string(data))
	}
	bw := decodeJSON[batchWrite](t, data)
	if bw.Created != 2 || len(bw.Skipped) != 1 || bw.Skipped[0] != "01" {
		t.Fatalf("unexpected bulk result: %+v", bw)
	}
	batchID := bw.Data.ID

	status, data = do(t, srv, http.MethodGet, "/api/batches/"+batchID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("get batch: %d %s", status, string(data))
	}
	detail := decodeJSON[struct {
		Data models.BatchDetail `json:"data"`
	}](t, data).Data
	if detail.Name != "Lote A" || len(detail.Specimens) != 2 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	for _, s := range detail.Specimens {
		switch s.Orden {
		case "01":
			if s.Fecha != "2024-05-10" || s.Ensayo != "Tracción" || s.FuerzaMaxima == nil || *s.FuerzaMaxima != 12.5 {
				t.Fatalf("first specimen not stored as sent: %+v", s)
			}
		case "02":
			if s.Fecha != "2024-05-12" || s.ModuloElasticidad != nil {
				t.Fatalf("second specimen not stored as sent: %+v", s)
			}
		default:
			t.Fatalf("unexpected orden %q", s.Orden)
		}
	}

	// Single create: duplicate orden conflicts, a new one succeeds
	status, data = do(t, srv, http.MethodPost, "/api/specimens", token, map[string]any{
		"batch_id": batchID, "orden": "02", "fecha": "2024-05-11",
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate orden: expected 409, got %d %s", status, string(data))
	}
	if eb := decodeJSON[errorBody](t, data); eb.Error != "conflict" {
		t.Fatalf("unexpected error body: %+v", eb)
	}

	status, data = do(t, srv, http.MethodPost, "/api/specimens", token, map[string]any{
		"batch_id": batchID, "orden": "03", "fecha": "2024-05-11", "ensayo": "Compresión",
	})
	if status != http.StatusCreated {
		t.Fatalf("create specimen: %d %s", status, string(data))
	}
	third := decodeJSON[specimenWrite](t, data).Data
	if third.ID == "" || third.BatchID != batchID || third.BatchName != "Lote A" {
		t.Fatalf("unexpected created specimen: %+v", third)
	}

	status, data = do(t, srv, http.MethodPost, "/api/specimens", token, map[string]any{
		"batch_id": "missing", "orden": "09", "fecha": "2024-05-11",
	})
	if status != http.StatusNotFound {
		t.Fatalf("unknown batch: expected 404, got %d %s", status, string(data))
	}

	// Partial updates
	status, data = do(t, srv, http.MethodPut, "/api/specimens/"+third.ID, token, map[string]any{"orden": "01"})
	if status != http.StatusConflict {
		t.Fatalf("rename onto taken orden: expected 409, got %d %s", status, string(data))
	}
	status, data = do(t, srv, http.MethodPut, "/api/specimens/"+third.ID, token, map[string]any{"ensayo": "Flexión", "fuerzaMaxima": "7"})
	if status != http.StatusOK {
		t.Fatalf("update specimen: %d %s", status, string(data))
	}
	updated := decodeJSON[specimenWrite](t, data).Data
	if updated.Ensayo != "Flexión" || updated.Orden != "03" || updated.FuerzaMaxima == nil || *updated.FuerzaMaxima != 7 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	// Listing and paging
	status, data = do(t, srv, http.MethodGet, "/api/specimens?batch_id="+batchID+"&limit=2&sort_by=orden&sort_order=ASC", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list specimens: %d %s", status, string(data))
	}
	list := decodeJSON[specimenList](t, data)
	if list.Pagination.Total != 3 || list.Pagination.Pages != 2 || list.Pagination.Limit != 2 || len(list.Data) != 2 {
		t.Fatalf("unexpected page: %+v", list.Pagination)
	}
	if list.Data[0].Orden != "01" || list.Data[1].Orden != "02" {
		t.Fatalf("unexpected order: %q %q", list.Data[0].Orden, list.Data[1].Orden)
	}

	status, data = do(t, srv, http.MethodGet, "/api/specimens?ensayo=flex", token, nil)
	if status != http.StatusOK {
		t.Fatalf("filter specimens: %d", status)
	}
	if l := decodeJSON[specimenList](t, data); l.Pagination.Total != 1 || l.Data[0].ID != third.ID {
		t.Fatalf("ensayo filter returned %+v", l.Pagination)
	}

	// CSV export
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/specimens/export?batch_id="+batchID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	records, err := csv.NewReader(res.Body).ReadAll()
	res.Body.Close()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(res.Header.Get("Content-Disposition"), "probetas.csv") {
		t.Fatalf("missing attachment filename")
	}
	if len(records) != 4 || records[0][0] != "lote" || records[0][7] != "fuerza_maxima" {
		t.Fatalf("unexpected csv: %v", records)
	}
	for _, rec := range records[1:] {
		if rec[0] != "Lote A" {
			t.Fatalf("csv row without batch name: %v", rec)
		}
	}

	// Invalid replace leaves the batch untouched
	status, data = do(t, srv, http.MethodPut, "/api/batches/"+batchID, token, map[string]any{
		"name": "Lote B", "date": "not a date", "specimens": []map[string]any{},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("invalid replace: expected 400, got %d %s", status, string(data))
	}
	if eb := decodeJSON[errorBody](t, data); eb.Error != "invalid_input" || eb.Field != "date" {
		t.Fatalf("unexpected error body: %+v", eb)
	}

	// Replace without specimens keeps them
	status, data = do(t, srv, http.MethodPut, "/api/batches/"+batchID, token, map[string]any{
		"name": "Lote B", "date": "2024-06-01",
	})
	if status != http.StatusOK {
		t.Fatalf("replace: %d %s", status, string(data))
	}
	status, data = do(t, srv, http.MethodGet, "/api/batches/"+batchID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("get batch: %d", status)
	}
	detail = decodeJSON[struct {
		Data models.BatchDetail `json:"data"`
	}](t, data).Data
	if detail.Name != "Lote B" || detail.Date != "2024-06-01" || len(detail.Specimens) != 3 {
		t.Fatalf("replace did not keep specimens: %+v", detail)
	}

	status, data = do(t, srv, http.MethodGet, "/api/batches", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list batches: %d", status)
	}
	batches := decodeJSON[struct {
		Data  []models.Batch `json:"data"`
		Count int            `json:"count"`
	}](t, data)
	if batches.Count != 1 || batches.Data[0].SpecimenCount != 3 {
		t.Fatalf("unexpected batch list: %+v", batches)
	}

	// Dashboard
	status, data = do(t, srv, http.MethodGet, "/api/dashboard/stats", token, nil)
	if status != http.StatusOK {
		t.Fatalf("stats: %d %s", status, string(data))
	}
	stats := decodeJSON[struct {
		Data models.DashboardStats `json:"data"`
	}](t, data).Data
	if stats.General.TotalSpecimens != 3 || stats.General.TotalBatches != 1 || stats.General.TotalUsers != 1 {
		t.Fatalf("unexpected stats: %+v", stats.General)
	}

	if status, data = do(t, srv, http.MethodGet, "/api/dashboard/charts", token, nil); status != http.StatusOK {
		t.Fatalf("charts: %d %s", status, string(data))
	}

	status, data = do(t, srv, http.MethodGet, "/api/dashboard/activity?limit=3", token, nil)
	if status != http.StatusOK {
		t.Fatalf("activity: %d", status)
	}
	acts := decodeJSON[struct {
		Data []models.Activity `json:"data"`
	}](t, data).Data
	if len(acts) != 3 || acts[0].Action != "update_batch" || acts[0].Username != "tester" {
		t.Fatalf("unexpected recent activity: %+v", acts)
	}

	if status, _ = do(t, srv, http.MethodGet, "/api/dashboard/reports?start_date=yesterday", token, nil); status != http.StatusBadRequest {
		t.Fatalf("bad report date: expected 400, got %d", status)
	}
	status, data = do(t, srv, http.MethodGet, "/api/dashboard/reports?start_date=2024-05-11&end_date=2024-05-31", token, nil)
	if status != http.StatusOK {
		t.Fatalf("reports: %d %s", status, string(data))
	}
	report := decodeJSON[struct {
		Data struct {
			Specimens []models.Specimen `json:"specimens"`
			Stats     models.ReportStats `json:"stats"`
		} `json:"data"`
	}](t, data).Data
	if len(report.Specimens) != 2 || report.Stats.TotalSpecimens != 2 || report.Stats.TotalBatches != 1 {
		t.Fatalf("unexpected report: %+v", report.Stats)
	}
	if report.Specimens[0].Fecha != "2024-05-12" {
		t.Fatalf("report not newest first: %q", report.Specimens[0].Fecha)
	}

	// Deletes
	if status, _ = do(t, srv, http.MethodDelete, "/api/specimens/"+third.ID, token, nil); status != http.StatusOK {
		t.Fatalf("delete specimen: %d", status)
	}
	if status, _ = do(t, srv, http.MethodGet, "/api/specimens/"+third.ID, token, nil); status != http.StatusNotFound {
		t.Fatalf("deleted specimen: expected 404, got %d", status)
	}
	if status, _ = do(t, srv, http.MethodDelete, "/api/batches/"+batchID, token, nil); status != http.StatusOK {
		t.Fatalf("delete batch: %d", status)
	}
	status, data = do(t, srv, http.MethodGet, "/api/batches/"+batchID, token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("deleted batch: expected 404, got %d", status)
	}
	if eb := decodeJSON[errorBody](t, data); eb.Error != "not_found" {
		t.Fatalf("unexpected error body: %+v", eb)
	}
	status, data = do(t, srv, http.MethodGet, "/api/specimens?batch_id="+batchID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("list after delete: %d", status)
	}
	if l := decodeJSON[specimenList](t, data); l.Pagination.Total != 0 || len(l.Data) != 0 {
		t.Fatalf("specimens survived batch delete: %+v", l.Pagination)
	}
}

func TestCreateBatch_InvalidBodies(t *testing.T) {
	srv := setupServer(t, testConfig(t))
	token, _ := register(t, srv, "validator")

	tests := []struct {
		name      string
		body      any
		wantField string
	}{
		{name: "NotJSON", body: "{", wantField: "body"},
		{name: "MissingName", body: map[string]any{"date": "2024-05-10"}, wantField: "name"},
		{name: "ShortName", body: map[string]any{"name": "ab", "date": "2024-05-10"}, wantField: "name"},
		{name: "BadDate", body: map[string]any{"name": "Lote", "date": "10/05/2024"}, wantField: "date"},
		{name: "SpecimenWithoutOrden", body: map[string]any{"name": "Lote", "date": "2024-05-10", "specimens": []map[string]any{{"ensayo": "x"}}}, wantField: "specimens[0].orden"},
		{name: "BadMeasurement", body: map[string]any{"name": "Lote", "date": "2024-05-10", "specimens": []map[string]any{{"orden": "1", "fuerzaMaxima": "abc"}}}, wantField: "specimens[0].fuerzaMaxima"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := do(t, srv, http.MethodPost, "/api/batches", token, tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d %s", status, string(data))
			}
			eb := decodeJSON[errorBody](t, data)
			if eb.Error != "invalid_input" || eb.Field != tt.wantField {
				t.Fatalf("want field %q, got %+v", tt.wantField, eb)
			}
		})
	}

	status, data := do(t, srv, http.MethodGet, "/api/batches", token, nil)
	if status != http.StatusOK || !strings.Contains(string(data), `"count":0`) {
		t.Fatalf("rejected bodies left data behind: %d %s", status, string(data))
	}
}

func TestRouter_OpenEndpoints(t *testing.T) {
	srv := setupServer(t, testConfig(t))

	for _, path := range []string{"/health", "/api/health", "/version"} {
		if status, data := do(t, srv, http.MethodGet, path, "", nil); status != http.StatusOK {
			t.Fatalf("%s: %d %s", path, status, string(data))
		}
	}

	status, _ := do(t, srv, http.MethodOptions, "/api/batches", "", nil)
	if status != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", status)
	}

	if status, _ = do(t, srv, http.MethodPatch, "/api/batches", "", nil); status != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: expected 405, got %d", status)
	}

	status, data := do(t, srv, http.MethodGet, "/nowhere", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown route: expected 404, got %d", status)
	}
	if eb := decodeJSON[errorBody](t, data); eb.Error != "not_found" {
		t.Fatalf("unexpected 404 body: %s", string(data))
	}

	status, data = do(t, srv, http.MethodGet, "/metrics", "", nil)
	if status != http.StatusOK {
		t.Fatalf("metrics: %d", status)
	}
	if !strings.Contains(string(data), "probetas_http_requests_total") {
		t.Fatalf("request counter missing from metrics output")
	}
	if !strings.Contains(string(data), `route="/health"`) {
		t.Fatalf("route label missing from metrics output")
	}
}

func TestRouter_StaticDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.StaticDir = t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg.StaticDir, "index.html"), []byte("<h1>probetas</h1>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	srv := setupServer(t, cfg)

	status, data := do(t, srv, http.MethodGet, "/", "", nil)
	if status != http.StatusOK || !strings.Contains(string(data), "probetas") {
		t.Fatalf("static index: %d %s", status, string(data))
	}

	if status, _ = do(t, srv, http.MethodGet, "/api/batches", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("api routes must win over static files, got %d", status)
	}
}

func TestRouter_MethodsAndFallbacks(t *testing.T) {
	cases := []struct {
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{method: http.MethodOptions, path: "/api/batches", wantStatus: http.StatusNoContent},
		{method: http.MethodOptions, path: "/api/auth/login", wantStatus: http.StatusNoContent},
		{method: http.MethodOptions, path: "/api/specimens/abc", wantStatus: http.StatusNoContent},
		{method: http.MethodPatch, path: "/api/batches", wantStatus: http.StatusMethodNotAllowed, wantCode: "method_not_allowed"},
		{method: http.MethodPatch, path: "/api/batches/abc", wantStatus: http.StatusMethodNotAllowed, wantCode: "method_not_allowed"},
		{method: http.MethodPatch, path: "/api/auth/login", wantStatus: http.StatusMethodNotAllowed, wantCode: "method_not_allowed"},
		{method: http.MethodGet, path: "/api/auth/register", wantStatus: http.StatusMethodNotAllowed, wantCode: "method_not_allowed"},
		{method: http.MethodDelete, path: "/api/dashboard/stats", wantStatus: http.StatusMethodNotAllowed, wantCode: "method_not_allowed"},
		{method: http.MethodGet, path: "/api/nope", wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{method: http.MethodDelete, path: "/nowhere", wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{method: http.MethodGet, path: "/missing.txt", wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{method: http.MethodGet, path: "/api/batches", wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
	}

	withStatic := testConfig(t)
	withStatic.StaticDir = t.TempDir()
	if err := os.WriteFile(filepath.Join(withStatic.StaticDir, "index.html"), []byte("<h1>probetas</h1>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}

	servers := map[string]*httptest.Server{
		"APIOnly":    setupServer(t, testConfig(t)),
		"WithStatic": setupServer(t, withStatic),
	}

	for name, srv := range servers {
		for _, c := range cases {
			t.Run(name+"/"+c.method+c.path, func(t *testing.T) {
				status, data := do(t, srv, c.method, c.path, "", nil)
				if status != c.wantStatus {
					t.Fatalf("want %d got %d body=%s", c.wantStatus, status, string(data))
				}
				if c.wantCode == "" {
					return
				}
				if eb := decodeJSON[errorBody](t, data); eb.Error != c.wantCode {
					t.Fatalf("want error %q, got %+v", c.wantCode, eb)
				}
			})
		}
	}
}

func TestRouter_PreflightHeaders(t *testing.T) {
	srv := setupServer(t, testConfig(t))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/auth/login", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://front.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.StatusCode)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
	if got := res.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Fatalf("Access-Control-Allow-Headers = %q", got)
	}
}
