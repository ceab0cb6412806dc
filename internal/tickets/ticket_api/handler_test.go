package ticket_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"queue-kiosk/internal/models"
	"queue-kiosk/internal/tickets/db"
	tickets "queue-kiosk/internal/tickets/service"
	"queue-kiosk/internal/tickets/ticket_api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// MockTicketService simulates the queue engine behind the HTTP layer.
type MockTicketService struct {
	shouldFailOn  string
	errorToReturn error
}

func (m *MockTicketService) IssueTicket(ctx context.Context, businessTypeID int64) (*tickets.IssueResult, error) {
	if m.shouldFailOn == "IssueTicket" {
		return nil, m.errorToReturn
	}
	return &tickets.IssueResult{
		TicketNumber:            "A003",
		WaitingCount:            2,
		BusinessTypeName:        "优惠客户专线",
		BusinessTypeEnglishName: "VIP Customer Line",
	}, nil
}

func (m *MockTicketService) GetWaitingCount(ctx context.Context, businessTypeID int64) (int, error) {
	if m.shouldFailOn == "GetWaitingCount" {
		return 0, m.errorToReturn
	}
	return 4, nil
}

func (m *MockTicketService) GetAllWaitingCounts(ctx context.Context) (map[int64]int, error) {
	if m.shouldFailOn == "GetAllWaitingCounts" {
		return nil, m.errorToReturn
	}
	return map[int64]int{1: 4, 2: 0}, nil
}

func (m *MockTicketService) CallNext(ctx context.Context, businessTypeID int64, counterNumber int) (*tickets.CallNextResult, error) {
	if m.shouldFailOn == "CallNext" {
		return nil, m.errorToReturn
	}
	return &tickets.CallNextResult{
		TicketNumber:        "A002",
		CurrentPassedNumber: 2,
		WaitingCount:        3,
	}, nil
}

func (m *MockTicketService) ActiveBusinessTypes(ctx context.Context) ([]models.BusinessType, error) {
	if m.shouldFailOn == "ActiveBusinessTypes" {
		return nil, m.errorToReturn
	}
	return []models.BusinessType{
		{ID: 1, Name: "优惠客户专线", NameEn: "VIP Customer Line", Code: "A", Prefix: "A", Status: models.BusinessTypeActive},
	}, nil
}

func (m *MockTicketService) Counters(ctx context.Context) ([]models.Counter, error) {
	if m.shouldFailOn == "Counters" {
		return nil, m.errorToReturn
	}
	return []models.Counter{{ID: 10, CounterNumber: 1, Name: "1号窗口"}}, nil
}

func setupRouter(service *MockTicketService) *chi.Mux {
	handler := ticket_api.NewHandler(service, nil)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestIssueTicketHandler(t *testing.T) {
	t.Run("Successful issuance", func(t *testing.T) {
		r := setupRouter(&MockTicketService{})

		body, _ := json.Marshal(map[string]int64{"businessTypeId": 1})
		req := httptest.NewRequest("POST", "/api/tickets", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var result tickets.IssueResult
		json.NewDecoder(w.Body).Decode(&result)
		assert.Equal(t, "A003", result.TicketNumber)
		assert.Equal(t, 2, result.WaitingCount)
	})

	t.Run("Missing business type id", func(t *testing.T) {
		r := setupRouter(&MockTicketService{})

		req := httptest.NewRequest("POST", "/api/tickets", bytes.NewBufferString(`{}`))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unknown business type", func(t *testing.T) {
		r := setupRouter(&MockTicketService{
			shouldFailOn:  "IssueTicket",
			errorToReturn: db.ErrBusinessTypeNotFound,
		})

		body, _ := json.Marshal(map[string]int64{"businessTypeId": 42})
		req := httptest.NewRequest("POST", "/api/tickets", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Storage conflict maps to 409", func(t *testing.T) {
		r := setupRouter(&MockTicketService{
			shouldFailOn:  "IssueTicket",
			errorToReturn: db.ErrConflict,
		})

		body, _ := json.Marshal(map[string]int64{"businessTypeId": 1})
		req := httptest.NewRequest("POST", "/api/tickets", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCallNextHandler(t *testing.T) {
	t.Run("Successful call", func(t *testing.T) {
		r := setupRouter(&MockTicketService{})

		body, _ := json.Marshal(map[string]int{"businessTypeId": 1, "counterNumber": 1})
		req := httptest.NewRequest("POST", "/api/tickets/call-next", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var result tickets.CallNextResult
		json.NewDecoder(w.Body).Decode(&result)
		assert.Equal(t, "A002", result.TicketNumber)
		assert.Equal(t, 2, result.CurrentPassedNumber)
	})

	t.Run("Missing counter number", func(t *testing.T) {
		r := setupRouter(&MockTicketService{})

		body, _ := json.Marshal(map[string]int{"businessTypeId": 1})
		req := httptest.NewRequest("POST", "/api/tickets/call-next", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unknown counter", func(t *testing.T) {
		r := setupRouter(&MockTicketService{
			shouldFailOn:  "CallNext",
			errorToReturn: db.ErrCounterNotFound,
		})

		body, _ := json.Marshal(map[string]int{"businessTypeId": 1, "counterNumber": 99})
		req := httptest.NewRequest("POST", "/api/tickets/call-next", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetWaitingCountHandler(t *testing.T) {
	t.Run("Successful read", func(t *testing.T) {
		r := setupRouter(&MockTicketService{})

		req := httptest.NewRequest("GET", "/api/tickets/waiting/1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var result map[string]int
		json.NewDecoder(w.Body).Decode(&result)
		assert.Equal(t, 4, result["waiting_count"])
	})

	t.Run("Non-numeric id", func(t *testing.T) {
		r := setupRouter(&MockTicketService{})

		req := httptest.NewRequest("GET", "/api/tickets/waiting/abc", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetAllWaitingCountsHandler(t *testing.T) {
	r := setupRouter(&MockTicketService{})

	req := httptest.NewRequest("GET", "/api/tickets/waiting-counts", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result map[string]int
	json.NewDecoder(w.Body).Decode(&result)
	assert.Equal(t, 4, result["1"])
	assert.Equal(t, 0, result["2"])
}

func TestTicketQRHandler(t *testing.T) {
	r := setupRouter(&MockTicketService{})

	req := httptest.NewRequest("GET", "/api/tickets/qr/A003", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestListBusinessTypesHandler(t *testing.T) {
	r := setupRouter(&MockTicketService{})

	req := httptest.NewRequest("GET", "/api/business-types", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var types []models.BusinessType
	json.NewDecoder(w.Body).Decode(&types)
	assert.Len(t, types, 1)
	assert.Equal(t, "A", types[0].Code)
}

func TestListCountersHandler(t *testing.T) {
	t.Run("Successful listing", func(t *testing.T) {
		r := setupRouter(&MockTicketService{})

		req := httptest.NewRequest("GET", "/api/counters", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var counters []models.Counter
		json.NewDecoder(w.Body).Decode(&counters)
		assert.Len(t, counters, 1)
	})

	t.Run("Storage failure maps to 500", func(t *testing.T) {
		r := setupRouter(&MockTicketService{
			shouldFailOn:  "Counters",
			errorToReturn: errors.New("database gone"),
		})

		req := httptest.NewRequest("GET", "/api/counters", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
