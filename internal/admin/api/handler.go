package admin_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"queue-kiosk/internal/admin"
	"queue-kiosk/internal/logger"
	"queue-kiosk/internal/models"
	"queue-kiosk/internal/scheduler"

	"github.com/go-chi/chi/v5"
)

// ResetControl is the scheduler surface exposed to the admin panel.
type ResetControl interface {
	TriggerNow(ctx context.Context) error
	Status() scheduler.Status
}

type Handler struct {
	Service *admin.Service
	Reset   ResetControl
	Logger  *logger.Logger
}

func NewHandler(svc *admin.Service, reset ResetControl, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Reset: reset, Logger: log}
}

// RegisterRoutes mounts the admin endpoints. Everything except login sits
// behind the bearer-token middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/admin/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(Middleware())

		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/settings", h.GetSettings)
			r.Put("/settings/{key}", h.UpdateSetting)
			r.Put("/password", h.UpdatePassword)

			r.Get("/counters", h.ListCounters)
			r.Post("/counters", h.CreateCounter)
			r.Put("/counters/{id}", h.UpdateCounter)
			r.Delete("/counters/{id}", h.DeleteCounter)

			r.Get("/business-types", h.ListBusinessTypes)
			r.Post("/business-types", h.CreateBusinessType)
			r.Put("/business-types/{id}", h.UpdateBusinessType)
			r.Delete("/business-types/{id}", h.DeleteBusinessType)

			r.Post("/reset", h.TriggerReset)
			r.Get("/reset/status", h.ResetStatus)
		})
	})
}

// Middleware rejects requests without a valid admin bearer token. The token
// is opaque: validity is only the decoded prefix, there are no claims to
// verify.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || !admin.ValidateToken(strings.TrimSpace(token)) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Login handles POST /api/admin/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	token, err := h.Service.Login(r.Context(), req.Password)
	if errors.Is(err, admin.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	if err != nil {
		h.serverError(w, "login failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "login successful",
		"token":   token,
	})
}

// GetSettings handles GET /api/admin/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Service.GetSettings(r.Context())
	if err != nil {
		h.serverError(w, "failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSetting handles PUT /api/admin/settings/{key}
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req struct {
		Value       *string `json:"value"`
		Description string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	setting, err := h.Service.UpdateSetting(r.Context(), key, *req.Value, req.Description)
	switch {
	case errors.Is(err, admin.ErrForbiddenSetting):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, admin.ErrSettingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.serverError(w, "failed to update setting", err)
	default:
		writeJSON(w, http.StatusOK, setting)
	}
}

// UpdatePassword handles PUT /api/admin/password
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "current and new password are required")
		return
	}

	err := h.Service.UpdatePassword(r.Context(), req.CurrentPassword, req.NewPassword)
	if errors.Is(err, admin.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}
	if err != nil {
		h.serverError(w, "failed to update password", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// ListCounters handles GET /api/admin/counters
func (h *Handler) ListCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.Service.DB.ListCounters(r.Context())
	if err != nil {
		h.serverError(w, "failed to list counters", err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

// CreateCounter handles POST /api/admin/counters
func (h *Handler) CreateCounter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CounterNumber int     `json:"counterNumber"`
		Name          string  `json:"name"`
		IPAddress     *string `json:"ipAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CounterNumber == 0 || req.Name == "" {
		writeError(w, http.StatusBadRequest, "counter number and name cannot be empty")
		return
	}

	counter, err := h.Service.DB.CreateCounter(r.Context(), models.Counter{
		CounterNumber: req.CounterNumber,
		Name:          req.Name,
		IPAddress:     req.IPAddress,
	})
	if errors.Is(err, admin.ErrCounterExists) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, "failed to create counter", err)
		return
	}

	writeJSON(w, http.StatusCreated, counter)
}

// UpdateCounter handles PUT /api/admin/counters/{id}
func (h *Handler) UpdateCounter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a number")
		return
	}

	var req struct {
		CounterNumber int     `json:"counterNumber"`
		Name          string  `json:"name"`
		IPAddress     *string `json:"ipAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	counter, err := h.Service.DB.UpdateCounter(r.Context(), id, req.CounterNumber, req.Name, req.IPAddress)
	switch {
	case errors.Is(err, admin.ErrCounterNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, admin.ErrCounterExists):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.serverError(w, "failed to update counter", err)
	default:
		writeJSON(w, http.StatusOK, counter)
	}
}

// DeleteCounter handles DELETE /api/admin/counters/{id}
func (h *Handler) DeleteCounter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a number")
		return
	}

	err = h.Service.DB.DeleteCounter(r.Context(), id)
	if errors.Is(err, admin.ErrCounterNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, "failed to delete counter", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "counter deleted"})
}

// ListBusinessTypes handles GET /api/admin/business-types
func (h *Handler) ListBusinessTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Service.DB.ListBusinessTypes(r.Context())
	if err != nil {
		h.serverError(w, "failed to list business types", err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// CreateBusinessType handles POST /api/admin/business-types
func (h *Handler) CreateBusinessType(w http.ResponseWriter, r *http.Request) {
	var req models.BusinessType
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Code == "" || req.Prefix == "" {
		writeError(w, http.StatusBadRequest, "name, code and prefix cannot be empty")
		return
	}

	bt, err := h.Service.DB.CreateBusinessType(r.Context(), req)
	if errors.Is(err, admin.ErrBusinessTypeExists) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, "failed to create business type", err)
		return
	}

	writeJSON(w, http.StatusCreated, bt)
}

// UpdateBusinessType handles PUT /api/admin/business-types/{id}
func (h *Handler) UpdateBusinessType(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a number")
		return
	}

	var req models.BusinessType
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bt, err := h.Service.DB.UpdateBusinessType(r.Context(), id, req)
	switch {
	case errors.Is(err, admin.ErrBusinessTypeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, admin.ErrBusinessTypeExists):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.serverError(w, "failed to update business type", err)
	default:
		writeJSON(w, http.StatusOK, bt)
	}
}

// DeleteBusinessType handles DELETE /api/admin/business-types/{id}
func (h *Handler) DeleteBusinessType(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a number")
		return
	}

	err = h.Service.DB.DeleteBusinessType(r.Context(), id)
	if errors.Is(err, admin.ErrBusinessTypeNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, "failed to delete business type", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "business type deleted"})
}

// TriggerReset handles POST /api/admin/reset
func (h *Handler) TriggerReset(w http.ResponseWriter, r *http.Request) {
	if err := h.Reset.TriggerNow(r.Context()); err != nil {
		h.serverError(w, "manual reset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "reset completed"})
}

// ResetStatus handles GET /api/admin/reset/status
func (h *Handler) ResetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Reset.Status())
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("%s: %v", msg, err))
	}
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
