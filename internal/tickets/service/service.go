package tickets

import (
	"context"
	"fmt"
	"time"

	"queue-kiosk/internal/logger"
	"queue-kiosk/internal/models"
)

// EventNextCalled is broadcast to display screens after every call-advance.
const EventNextCalled = "ticket:nextCalled"

type DBLayer interface {
	GetBusinessType(ctx context.Context, id int64) (*models.BusinessType, error)
	ListBusinessTypes(ctx context.Context, status string) ([]models.BusinessType, error)
	GetSequence(ctx context.Context, businessTypeID int64, date string) (*models.TicketSequence, error)
	IncrementIssued(ctx context.Context, bt *models.BusinessType, date string) (*models.TicketSequence, error)
	AdvanceCall(ctx context.Context, bt *models.BusinessType, date string, counterNumber int) (*models.TicketSequence, *models.Counter, string, error)
	ResetAll(ctx context.Context, date string) error
	ListCounters(ctx context.Context) ([]models.Counter, error)
	InsertCallLog(ctx context.Context, entry models.CallLog) error
}

// Notifier is the fire-and-forget broadcast sink. Emit never blocks the
// caller and never returns an error; with no observers connected it is a
// no-op.
type Notifier interface {
	Emit(event string, payload any)
}

type IssueResult struct {
	TicketNumber            string `json:"ticket_number"`
	WaitingCount            int    `json:"waiting_count"`
	BusinessTypeName        string `json:"business_type_name"`
	BusinessTypeEnglishName string `json:"business_type_english_name"`
}

type CallNextResult struct {
	TicketNumber        string `json:"ticket_number"`
	CurrentPassedNumber int    `json:"current_passed_number"`
	WaitingCount        int    `json:"waiting_count"`
}

// NextCalledEvent is the payload broadcast with EventNextCalled.
type NextCalledEvent struct {
	BusinessTypeID      int64  `json:"businessTypeId"`
	CounterNumber       int    `json:"counterNumber"`
	TicketNumber        string `json:"ticketNumber"`
	CurrentPassedNumber int    `json:"currentPassedNumber"`
	WaitingCount        int    `json:"waitingCount"`
}

type TicketService struct {
	DB       DBLayer
	Notifier Notifier
	Logger   *logger.Logger

	// TxTimeout bounds each atomic unit; a lock held past it surfaces as a
	// retryable conflict instead of blocking forever.
	TxTimeout time.Duration

	// Now is the clock hook; tests pin it to fixed dates.
	Now func() time.Time
}

func NewTicketService(db DBLayer, notifier Notifier, log *logger.Logger) *TicketService {
	return &TicketService{
		DB:        db,
		Notifier:  notifier,
		Logger:    log,
		TxTimeout: 10 * time.Second,
		Now:       time.Now,
	}
}

func (s *TicketService) today() string {
	return s.Now().Format("2006-01-02")
}

func (s *TicketService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.TxTimeout > 0 {
		return context.WithTimeout(ctx, s.TxTimeout)
	}
	return context.WithCancel(ctx)
}

// IssueTicket hands out the next ticket number for a business type. The
// sequence row is created lazily on the first ticket of the day; the whole
// read-increment-write runs as one transaction in the store. No notification
// is emitted on issuance.
func (s *TicketService) IssueTicket(ctx context.Context, businessTypeID int64) (*IssueResult, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	bt, err := s.DB.GetBusinessType(ctx, businessTypeID)
	if err != nil {
		return nil, err
	}

	seq, err := s.DB.IncrementIssued(ctx, bt, s.today())
	if err != nil {
		return nil, fmt.Errorf("failed to issue ticket: %w", err)
	}

	ticketNumber := models.FormatTicketNumber(bt.Prefix, seq.TotalIssued)

	// The ticket just issued is excluded from its own wait count.
	waiting := seq.TotalIssued - seq.TotalPassed - 1
	if waiting < 0 {
		waiting = 0
	}

	if s.Logger != nil {
		s.Logger.LogTicket("ISSUE", ticketNumber, fmt.Sprintf("business type %d, %d waiting", bt.ID, waiting))
	}

	return &IssueResult{
		TicketNumber:            ticketNumber,
		WaitingCount:            waiting,
		BusinessTypeName:        bt.Name,
		BusinessTypeEnglishName: bt.NameEn,
	}, nil
}

// GetWaitingCount reports the raw backlog for a business type: issued minus
// passed, clamped at zero. Unlike the issuance response it does not subtract
// the caller's own ticket. Returns 0 when no row exists for today.
func (s *TicketService) GetWaitingCount(ctx context.Context, businessTypeID int64) (int, error) {
	seq, err := s.DB.GetSequence(ctx, businessTypeID, s.today())
	if err != nil {
		return 0, err
	}
	if seq == nil {
		return 0, nil
	}
	waiting := seq.TotalIssued - seq.TotalPassed
	if waiting < 0 {
		waiting = 0
	}
	return waiting, nil
}

// GetAllWaitingCounts returns the waiting count for every business type,
// active or not, with 0 for types that have no sequence row today.
func (s *TicketService) GetAllWaitingCounts(ctx context.Context) (map[int64]int, error) {
	types, err := s.DB.ListBusinessTypes(ctx, "")
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int, len(types))
	for _, bt := range types {
		waiting, err := s.GetWaitingCount(ctx, bt.ID)
		if err != nil {
			return nil, err
		}
		counts[bt.ID] = waiting
	}
	return counts, nil
}

// CallNext advances the passed counter for a business type and binds the new
// call number to the given counter. The increment, counter binding and
// last-ticket upsert commit or roll back together; the broadcast and the
// audit log entry are best-effort afterwards.
//
// There is deliberately no upper bound against total_issued: calling past the
// issued count produces a passed number above it and a waiting count clamped
// to zero.
func (s *TicketService) CallNext(ctx context.Context, businessTypeID int64, counterNumber int) (*CallNextResult, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	bt, err := s.DB.GetBusinessType(ctx, businessTypeID)
	if err != nil {
		return nil, err
	}

	seq, counter, ticketNumber, err := s.DB.AdvanceCall(ctx, bt, s.today(), counterNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to call next ticket: %w", err)
	}

	waiting := seq.TotalIssued - seq.TotalPassed
	if waiting < 0 {
		waiting = 0
	}

	if s.Logger != nil {
		s.Logger.LogTicket("CALL", ticketNumber, fmt.Sprintf("counter %d, %d waiting", counter.CounterNumber, waiting))
	}

	if s.Notifier != nil {
		s.Notifier.Emit(EventNextCalled, NextCalledEvent{
			BusinessTypeID:      bt.ID,
			CounterNumber:       counter.CounterNumber,
			TicketNumber:        ticketNumber,
			CurrentPassedNumber: seq.TotalPassed,
			WaitingCount:        waiting,
		})
	}

	// Audit trail; a failed insert must not fail the call that already
	// committed.
	if err := s.DB.InsertCallLog(ctx, models.CallLog{
		TicketNumber:   ticketNumber,
		CounterID:      counter.ID,
		BusinessTypeID: bt.ID,
		CallType:       models.CallTypeNext,
	}); err != nil && s.Logger != nil {
		s.Logger.Error("TICKET", fmt.Sprintf("failed to write call log for %s: %v", ticketNumber, err))
	}

	return &CallNextResult{
		TicketNumber:        ticketNumber,
		CurrentPassedNumber: seq.TotalPassed,
		WaitingCount:        waiting,
	}, nil
}

// ResetAll zeroes every sequence and clears every counter binding in one
// transaction. Invoked by the daily scheduler and by the admin panel.
func (s *TicketService) ResetAll(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.DB.ResetAll(ctx, s.today()); err != nil {
		return fmt.Errorf("daily reset failed: %w", err)
	}
	if s.Logger != nil {
		s.Logger.LogTicket("RESET", "-", "all sequences zeroed and counter bindings cleared")
	}
	return nil
}

// ActiveBusinessTypes lists the business types shown on the kiosk.
func (s *TicketService) ActiveBusinessTypes(ctx context.Context) ([]models.BusinessType, error) {
	return s.DB.ListBusinessTypes(ctx, models.BusinessTypeActive)
}

// Counters lists all counters with their current call state for the display
// screen. Lock-free snapshot read.
func (s *TicketService) Counters(ctx context.Context) ([]models.Counter, error) {
	return s.DB.ListCounters(ctx)
}
