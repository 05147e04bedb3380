package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/garnizeh/probetas/api"
	dbfs "github.com/garnizeh/probetas/db"
	"github.com/garnizeh/probetas/internal/config"
	"github.com/garnizeh/probetas/internal/db"
)

func init() {
	api.SetLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Addr:          ":0",
		JWTSecret:     "testsecret",
		APITimeout:    5 * time.Second,
		DatabasePath:  filepath.Join(t.TempDir(), "api.db"),
		TokenDuration: time.Hour,
		Env:           "production",
	}
}

func setupServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	d, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		d.Close()
		t.Fatalf("migrate: %v", err)
	}

	r, err := api.SetupRoutes(cfg, "test", "now", d)
	if err != nil {
		d.Close()
		t.Fatalf("SetupRoutes: %v", err)
	}

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		d.Close()
	})
	return srv
}

// do sends a request and returns the status and the full body.
func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res.StatusCode, data
}

func decodeJSON[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", string(data), err)
	}
	return v
}

type authBody struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

// register creates a user through the API and returns its token and id.
func register(t *testing.T, srv *httptest.Server, username string) (string, string) {
	t.Helper()
	status, data := do(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "secret123",
		"email":    username + "@lab.test",
		"fullName": "Test " + username,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d body=%s", username, status, string(data))
	}
	ab := decodeJSON[authBody](t, data)
	return ab.Token, ab.User.ID
}
