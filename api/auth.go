package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/garnizeh/probetas/internal/auth"
	"github.com/garnizeh/probetas/internal/inventory"
	"github.com/garnizeh/probetas/internal/validation"
	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository"
)

type AuthHandler struct {
	responder
	userRepo  repository.UserRepo
	tokens    *auth.TokenService
	validator *validation.Validator
	audit     inventory.Recorder
}

// NewAuthHandler creates a new AuthHandler with required dependencies. audit
// may be nil.
func NewAuthHandler(ur repository.UserRepo, tokens *auth.TokenService, v *validation.Validator, audit inventory.Recorder, debug bool) *AuthHandler {
	return &AuthHandler{responder: responder{debug: debug}, userRepo: ur, tokens: tokens, validator: v, audit: audit}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.readValid(w, r, validation.Register, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	u := &models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		FullName: strings.TrimSpace(req.FullName),
		Role:     models.RoleUser,
	}
	if utf8.RuneCountInString(u.FullName) < 2 {
		h.fail(w, r, &inventory.ValidationError{Field: "fullName", Message: "must be at least 2 characters"})
		return
	}

	ctx := r.Context()
	exists, err := h.userRepo.UserExists(ctx, u.Username, u.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "user_exists", "username or email already registered")
		return
	}

	if u.PasswordHash, err = auth.HashPassword(req.Password); err != nil {
		h.fail(w, r, err)
		return
	}

	if _, err := h.userRepo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusConflict, "user_exists", "username or email already registered")
			return
		}
		h.fail(w, r, err)
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.record(r, u.ID, inventory.ActionRegister, "user registered")
	writeJSON(w, authResponse{Message: "user registered", Token: token, User: u}, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.readValid(w, r, validation.Login, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	u, err := h.userRepo.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if u == nil || !auth.CheckPassword(req.Password, u.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "wrong username or password")
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.record(r, u.ID, inventory.ActionLogin, "login succeeded")
	writeJSON(w, authResponse{Message: "login succeeded", Token: token, User: u}, http.StatusOK)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	u, err := h.userRepo.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}

	writeJSON(w, map[string]any{"user": u}, http.StatusOK)
}

// Logout is client-side for stateless tokens; the client discards its token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, messageResponse{Message: "signed out"}, http.StatusOK)
}

func (h *AuthHandler) readValid(w http.ResponseWriter, r *http.Request, schema string, v any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := h.validator.Validate(r.Context(), schema, body); err != nil {
		return err
	}
	return decode(body, v)
}

func (h *AuthHandler) record(r *http.Request, userID, action, details string) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(r.Context(), userID, action, details); err != nil {
		logger.Warn("activity not recorded", slog.String("action", action), slog.Any("err", err))
	}
}
