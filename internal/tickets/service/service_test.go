package tickets_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"queue-kiosk/internal/models"
	"queue-kiosk/internal/tickets/db"
	tickets "queue-kiosk/internal/tickets/service"

	"github.com/stretchr/testify/assert"
)

// MockQueueDB is an in-memory implementation of the service's DB layer.
type MockQueueDB struct {
	businessTypes map[int64]*models.BusinessType
	counters      map[int]*models.Counter
	sequences     map[string]*models.TicketSequence // key: "<btID>/<date>"
	lastTickets   map[string]*models.CounterLastTicket
	callLogs      []models.CallLog

	shouldFailOn  string
	errorToReturn error
}

func NewMockQueueDB() *MockQueueDB {
	return &MockQueueDB{
		businessTypes: make(map[int64]*models.BusinessType),
		counters:      make(map[int]*models.Counter),
		sequences:     make(map[string]*models.TicketSequence),
		lastTickets:   make(map[string]*models.CounterLastTicket),
	}
}

func (m *MockQueueDB) seqKey(businessTypeID int64, date string) string {
	return fmt.Sprintf("%d/%s", businessTypeID, date)
}

func (m *MockQueueDB) GetBusinessType(ctx context.Context, id int64) (*models.BusinessType, error) {
	if m.shouldFailOn == "GetBusinessType" {
		return nil, m.errorToReturn
	}
	bt, exists := m.businessTypes[id]
	if !exists {
		return nil, db.ErrBusinessTypeNotFound
	}
	return bt, nil
}

func (m *MockQueueDB) ListBusinessTypes(ctx context.Context, status string) ([]models.BusinessType, error) {
	if m.shouldFailOn == "ListBusinessTypes" {
		return nil, m.errorToReturn
	}
	var types []models.BusinessType
	for _, bt := range m.businessTypes {
		if status == "" || bt.Status == status {
			types = append(types, *bt)
		}
	}
	return types, nil
}

func (m *MockQueueDB) GetSequence(ctx context.Context, businessTypeID int64, date string) (*models.TicketSequence, error) {
	if m.shouldFailOn == "GetSequence" {
		return nil, m.errorToReturn
	}
	return m.sequences[m.seqKey(businessTypeID, date)], nil
}

func (m *MockQueueDB) ensure(bt *models.BusinessType, date string) *models.TicketSequence {
	key := m.seqKey(bt.ID, date)
	if seq, exists := m.sequences[key]; exists {
		return seq
	}
	seq := &models.TicketSequence{
		BusinessTypeID: bt.ID,
		BusinessCode:   bt.Code,
		Date:           date,
	}
	m.sequences[key] = seq
	return seq
}

func (m *MockQueueDB) IncrementIssued(ctx context.Context, bt *models.BusinessType, date string) (*models.TicketSequence, error) {
	if m.shouldFailOn == "IncrementIssued" {
		return nil, m.errorToReturn
	}
	seq := m.ensure(bt, date)
	seq.TotalIssued++
	copied := *seq
	return &copied, nil
}

func (m *MockQueueDB) AdvanceCall(ctx context.Context, bt *models.BusinessType, date string, counterNumber int) (*models.TicketSequence, *models.Counter, string, error) {
	if m.shouldFailOn == "AdvanceCall" {
		return nil, nil, "", m.errorToReturn
	}
	counter, exists := m.counters[counterNumber]
	if !exists {
		return nil, nil, "", db.ErrCounterNotFound
	}
	seq := m.ensure(bt, date)
	seq.TotalPassed++
	ticketNumber := models.FormatTicketNumber(bt.Code, seq.TotalPassed)
	counter.CurrentTicketNumber = &ticketNumber
	m.lastTickets[fmt.Sprintf("%d/%d", counter.ID, bt.ID)] = &models.CounterLastTicket{
		CounterID:      counter.ID,
		BusinessTypeID: bt.ID,
		LastTicketNo:   &ticketNumber,
	}
	copied := *seq
	return &copied, counter, ticketNumber, nil
}

func (m *MockQueueDB) ResetAll(ctx context.Context, date string) error {
	if m.shouldFailOn == "ResetAll" {
		return m.errorToReturn
	}
	reset := make(map[string]*models.TicketSequence, len(m.sequences))
	for _, seq := range m.sequences {
		seq.TotalIssued = 0
		seq.TotalPassed = 0
		seq.Date = date
		reset[m.seqKey(seq.BusinessTypeID, date)] = seq
	}
	m.sequences = reset
	for _, counter := range m.counters {
		counter.CurrentTicketNumber = nil
	}
	for _, last := range m.lastTickets {
		last.LastTicketNo = nil
	}
	return nil
}

func (m *MockQueueDB) ListCounters(ctx context.Context) ([]models.Counter, error) {
	if m.shouldFailOn == "ListCounters" {
		return nil, m.errorToReturn
	}
	var counters []models.Counter
	for _, counter := range m.counters {
		counters = append(counters, *counter)
	}
	return counters, nil
}

func (m *MockQueueDB) InsertCallLog(ctx context.Context, entry models.CallLog) error {
	if m.shouldFailOn == "InsertCallLog" {
		return m.errorToReturn
	}
	m.callLogs = append(m.callLogs, entry)
	return nil
}

// RecordingNotifier captures every emitted event.
type RecordingNotifier struct {
	events   []string
	payloads []any
}

func (n *RecordingNotifier) Emit(event string, payload any) {
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
}

func setupService() (*tickets.TicketService, *MockQueueDB, *RecordingNotifier) {
	mockDB := NewMockQueueDB()

	mockDB.businessTypes[1] = &models.BusinessType{
		ID: 1, Name: "优惠客户专线", NameEn: "VIP Customer Line", Code: "A", Prefix: "A",
		Status: models.BusinessTypeActive,
	}
	mockDB.businessTypes[2] = &models.BusinessType{
		ID: 2, Name: "理财业务", NameEn: "Wealth Management", Code: "B", Prefix: "B",
		Status: models.BusinessTypeInactive,
	}
	mockDB.counters[1] = &models.Counter{ID: 10, CounterNumber: 1, Name: "1号窗口"}

	notifier := &RecordingNotifier{}
	service := tickets.NewTicketService(mockDB, notifier, nil)
	service.Now = func() time.Time {
		return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	}
	return service, mockDB, notifier
}

func TestIssueTicket(t *testing.T) {
	service, _, notifier := setupService()

	result, err := service.IssueTicket(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "A001", result.TicketNumber)
	assert.Equal(t, 0, result.WaitingCount, "the first ticket has nobody ahead of it")
	assert.Equal(t, "优惠客户专线", result.BusinessTypeName)
	assert.Equal(t, "VIP Customer Line", result.BusinessTypeEnglishName)

	// Issuance is silent; only call-advance broadcasts.
	assert.Empty(t, notifier.events)

	result, err = service.IssueTicket(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "A002", result.TicketNumber)
	assert.Equal(t, 1, result.WaitingCount, "one ticket ahead, own ticket excluded")
}

func TestIssueTicketPadsToThreeDigits(t *testing.T) {
	service, mockDB, _ := setupService()

	mockDB.sequences["1/2025-06-01"] = &models.TicketSequence{
		BusinessTypeID: 1, BusinessCode: "A", Date: "2025-06-01", TotalIssued: 6,
	}

	result, err := service.IssueTicket(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "A007", result.TicketNumber)

	// Past 999 the number simply grows wider.
	mockDB.sequences["1/2025-06-01"].TotalIssued = 999
	result, err = service.IssueTicket(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "A1000", result.TicketNumber)
}

func TestIssueTicketUnknownBusinessType(t *testing.T) {
	service, _, _ := setupService()

	_, err := service.IssueTicket(context.Background(), 42)
	assert.ErrorIs(t, err, db.ErrBusinessTypeNotFound)
}

func TestGetWaitingCount(t *testing.T) {
	service, mockDB, _ := setupService()

	// No sequence row yet: zero, not an error.
	waiting, err := service.GetWaitingCount(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 0, waiting)

	mockDB.sequences["1/2025-06-01"] = &models.TicketSequence{
		BusinessTypeID: 1, Date: "2025-06-01", TotalIssued: 5, TotalPassed: 2,
	}

	// Unlike the issuance response, reads do not subtract the caller's ticket.
	waiting, err = service.GetWaitingCount(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 3, waiting)

	// Over-advanced sequences clamp at zero.
	mockDB.sequences["1/2025-06-01"].TotalPassed = 9
	waiting, err = service.GetWaitingCount(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 0, waiting)
}

func TestGetAllWaitingCountsIncludesInactiveTypes(t *testing.T) {
	service, mockDB, _ := setupService()

	mockDB.sequences["1/2025-06-01"] = &models.TicketSequence{
		BusinessTypeID: 1, Date: "2025-06-01", TotalIssued: 4, TotalPassed: 1,
	}

	counts, err := service.GetAllWaitingCounts(context.Background())
	assert.NoError(t, err)
	assert.Len(t, counts, 2)
	assert.Equal(t, 3, counts[1])
	assert.Equal(t, 0, counts[2], "types with no row today report zero")
}

func TestCallNext(t *testing.T) {
	service, mockDB, notifier := setupService()

	mockDB.sequences["1/2025-06-01"] = &models.TicketSequence{
		BusinessTypeID: 1, BusinessCode: "A", Date: "2025-06-01", TotalIssued: 3,
	}

	result, err := service.CallNext(context.Background(), 1, 1)
	assert.NoError(t, err)
	assert.Equal(t, "A001", result.TicketNumber)
	assert.Equal(t, 1, result.CurrentPassedNumber)
	assert.Equal(t, 2, result.WaitingCount)

	// One broadcast per call, with the full display payload.
	if assert.Len(t, notifier.events, 1) {
		assert.Equal(t, tickets.EventNextCalled, notifier.events[0])
		event, ok := notifier.payloads[0].(tickets.NextCalledEvent)
		if assert.True(t, ok) {
			assert.Equal(t, int64(1), event.BusinessTypeID)
			assert.Equal(t, 1, event.CounterNumber)
			assert.Equal(t, "A001", event.TicketNumber)
			assert.Equal(t, 2, event.WaitingCount)
		}
	}

	// Audit record written after the commit.
	if assert.Len(t, mockDB.callLogs, 1) {
		assert.Equal(t, "A001", mockDB.callLogs[0].TicketNumber)
		assert.Equal(t, models.CallTypeNext, mockDB.callLogs[0].CallType)
	}
}

func TestCallNextPastIssuedCount(t *testing.T) {
	service, mockDB, _ := setupService()

	// Nothing issued today; calling anyway still advances.
	result, err := service.CallNext(context.Background(), 1, 1)
	assert.NoError(t, err)
	assert.Equal(t, "A001", result.TicketNumber)
	assert.Equal(t, 1, result.CurrentPassedNumber)
	assert.Equal(t, 0, result.WaitingCount, "waiting clamps at zero, never negative")

	seq := mockDB.sequences["1/2025-06-01"]
	assert.Equal(t, 0, seq.TotalIssued)
	assert.Equal(t, 1, seq.TotalPassed)
}

func TestCallNextUnknownCounter(t *testing.T) {
	service, _, notifier := setupService()

	_, err := service.CallNext(context.Background(), 1, 99)
	assert.ErrorIs(t, err, db.ErrCounterNotFound)
	assert.Empty(t, notifier.events, "failed calls broadcast nothing")
}

func TestCallNextCallLogFailureDoesNotFailCall(t *testing.T) {
	service, mockDB, notifier := setupService()
	mockDB.shouldFailOn = "InsertCallLog"
	mockDB.errorToReturn = errors.New("disk full")

	result, err := service.CallNext(context.Background(), 1, 1)
	assert.NoError(t, err, "a failed audit write must not fail the call")
	assert.Equal(t, "A001", result.TicketNumber)
	assert.Len(t, notifier.events, 1)
}

func TestResetAllService(t *testing.T) {
	service, mockDB, _ := setupService()

	mockDB.sequences["1/2025-05-31"] = &models.TicketSequence{
		BusinessTypeID: 1, Date: "2025-05-31", TotalIssued: 12, TotalPassed: 7,
	}
	bound := "A007"
	mockDB.counters[1].CurrentTicketNumber = &bound

	err := service.ResetAll(context.Background())
	assert.NoError(t, err)

	seq := mockDB.sequences["1/2025-06-01"]
	if assert.NotNil(t, seq) {
		assert.Equal(t, 0, seq.TotalIssued)
		assert.Equal(t, 0, seq.TotalPassed)
	}
	assert.Nil(t, mockDB.counters[1].CurrentTicketNumber)

	// Numbering restarts from 1 after the reset.
	result, err := service.IssueTicket(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "A001", result.TicketNumber)
}

func TestActiveBusinessTypes(t *testing.T) {
	service, _, _ := setupService()

	types, err := service.ActiveBusinessTypes(context.Background())
	assert.NoError(t, err)
	assert.Len(t, types, 1)
	assert.Equal(t, "A", types[0].Code)
}

func TestFormatTicketNumber(t *testing.T) {
	assert.Equal(t, "A001", models.FormatTicketNumber("A", 1))
	assert.Equal(t, "B042", models.FormatTicketNumber("B", 42))
	assert.Equal(t, "E999", models.FormatTicketNumber("E", 999))
	assert.Equal(t, "E1000", models.FormatTicketNumber("E", 1000))
	assert.Equal(t, "VIP007", models.FormatTicketNumber("VIP", 7))
}
