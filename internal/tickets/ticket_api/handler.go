package ticket_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"queue-kiosk/internal/logger"
	"queue-kiosk/internal/models"
	"queue-kiosk/internal/tickets/db"
	"queue-kiosk/internal/tickets/qr_generator"
	tickets "queue-kiosk/internal/tickets/service"

	"github.com/go-chi/chi/v5"
)

// TicketService is the part of the engine the HTTP layer needs.
type TicketService interface {
	IssueTicket(ctx context.Context, businessTypeID int64) (*tickets.IssueResult, error)
	GetWaitingCount(ctx context.Context, businessTypeID int64) (int, error)
	GetAllWaitingCounts(ctx context.Context) (map[int64]int, error)
	CallNext(ctx context.Context, businessTypeID int64, counterNumber int) (*tickets.CallNextResult, error)
	ActiveBusinessTypes(ctx context.Context) ([]models.BusinessType, error)
	Counters(ctx context.Context) ([]models.Counter, error)
}

type Handler struct {
	TicketService TicketService
	QRGenerator   *qr_generator.QRGenerator
	Logger        *logger.Logger
}

func NewHandler(svc TicketService, log *logger.Logger) *Handler {
	return &Handler{
		TicketService: svc,
		QRGenerator:   qr_generator.NewQRGenerator(),
		Logger:        log,
	}
}

// RegisterRoutes mounts the public queue endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/tickets", func(r chi.Router) {
		r.Post("/", h.IssueTicket)
		r.Post("/call-next", h.CallNext)
		r.Get("/waiting/{businessTypeId}", h.GetWaitingCount)
		r.Get("/waiting-counts", h.GetAllWaitingCounts)
		r.Get("/qr/{ticketNumber}", h.TicketQR)
	})
	r.Get("/api/business-types", h.ListBusinessTypes)
	r.Get("/api/counters", h.ListCounters)
}

// IssueTicket handles POST /api/tickets
func (h *Handler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessTypeID int64 `json:"businessTypeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BusinessTypeID == 0 {
		writeError(w, http.StatusBadRequest, "businessTypeId is required")
		return
	}

	result, err := h.TicketService.IssueTicket(r.Context(), req.BusinessTypeID)
	if err != nil {
		h.writeServiceError(w, "failed to issue ticket", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetWaitingCount handles GET /api/tickets/waiting/{businessTypeId}
func (h *Handler) GetWaitingCount(w http.ResponseWriter, r *http.Request) {
	businessTypeID, err := strconv.ParseInt(chi.URLParam(r, "businessTypeId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "businessTypeId must be a number")
		return
	}

	waiting, err := h.TicketService.GetWaitingCount(r.Context(), businessTypeID)
	if err != nil {
		h.writeServiceError(w, "failed to get waiting count", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"waiting_count": waiting})
}

// GetAllWaitingCounts handles GET /api/tickets/waiting-counts
func (h *Handler) GetAllWaitingCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.TicketService.GetAllWaitingCounts(r.Context())
	if err != nil {
		h.writeServiceError(w, "failed to get waiting counts", err)
		return
	}

	// JSON object keys are strings; render business type ids as such.
	out := make(map[string]int, len(counts))
	for id, count := range counts {
		out[strconv.FormatInt(id, 10)] = count
	}
	writeJSON(w, http.StatusOK, out)
}

// CallNext handles POST /api/tickets/call-next
func (h *Handler) CallNext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessTypeID int64 `json:"businessTypeId"`
		CounterNumber  int   `json:"counterNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BusinessTypeID == 0 || req.CounterNumber == 0 {
		writeError(w, http.StatusBadRequest, "businessTypeId and counterNumber are required")
		return
	}

	result, err := h.TicketService.CallNext(r.Context(), req.BusinessTypeID, req.CounterNumber)
	if err != nil {
		h.writeServiceError(w, "failed to call next ticket", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// TicketQR handles GET /api/tickets/qr/{ticketNumber}
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	ticketNumber := chi.URLParam(r, "ticketNumber")
	if ticketNumber == "" {
		writeError(w, http.StatusBadRequest, "ticketNumber is required")
		return
	}

	png, err := h.QRGenerator.GenerateTicketQR(ticketNumber)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// ListBusinessTypes handles GET /api/business-types (kiosk buttons)
func (h *Handler) ListBusinessTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.TicketService.ActiveBusinessTypes(r.Context())
	if err != nil {
		h.writeServiceError(w, "failed to list business types", err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// ListCounters handles GET /api/counters (display screen)
func (h *Handler) ListCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.TicketService.Counters(r.Context())
	if err != nil {
		h.writeServiceError(w, "failed to list counters", err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", msg, err))
	}
	switch {
	case errors.Is(err, db.ErrBusinessTypeNotFound), errors.Is(err, db.ErrCounterNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrConflict):
		writeError(w, http.StatusConflict, "operation conflicted, please retry")
	default:
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
