package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"queue-kiosk/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- BUSINESS TYPES ----------------

// GetBusinessType → fetch one business type by id
func (d *DB) GetBusinessType(ctx context.Context, id int64) (*models.BusinessType, error) {
	var bt models.BusinessType
	err := d.Bun.NewSelect().
		Model(&bt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBusinessTypeNotFound
	}
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return &bt, nil
}

// ListBusinessTypes → fetch all business types, optionally filtered by status
func (d *DB) ListBusinessTypes(ctx context.Context, status string) ([]models.BusinessType, error) {
	var types []models.BusinessType
	q := d.Bun.NewSelect().Model(&types).Order("id ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapStorageErr(err)
	}
	return types, nil
}

// ---------------- SEQUENCE STORE ----------------

// GetSequence → fetch the sequence row for (business type, date); nil when the
// row has not been created yet today.
func (d *DB) GetSequence(ctx context.Context, businessTypeID int64, date string) (*models.TicketSequence, error) {
	var seq models.TicketSequence
	err := d.Bun.NewSelect().
		Model(&seq).
		Where("business_type_id = ? AND date = ?", businessTypeID, date).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return &seq, nil
}

// IncrementIssued runs the issuance atomic unit: lazily create today's
// sequence row for the business type, then increment total_issued inside the
// same transaction. The increment happens in SQL, so two concurrent calls can
// never persist the same value.
func (d *DB) IncrementIssued(ctx context.Context, bt *models.BusinessType, date string) (*models.TicketSequence, error) {
	var seq models.TicketSequence
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureSequence(ctx, tx, bt, date); err != nil {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*models.TicketSequence)(nil)).
			Set("total_issued = total_issued + 1").
			Set("updated_at = ?", time.Now()).
			Where("business_type_id = ? AND date = ?", bt.ID, date).
			Exec(ctx)
		if err != nil {
			return err
		}

		return tx.NewSelect().
			Model(&seq).
			Where("business_type_id = ? AND date = ?", bt.ID, date).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return &seq, nil
}

// AdvanceCall runs the call-advance atomic unit: lazily create today's
// sequence row, increment total_passed, resolve the target counter, bind the
// formatted call number to it and upsert the per-(counter, business type)
// last-ticket record. A missing counter rolls the whole unit back, including
// the increment.
func (d *DB) AdvanceCall(ctx context.Context, bt *models.BusinessType, date string, counterNumber int) (*models.TicketSequence, *models.Counter, string, error) {
	var (
		seq          models.TicketSequence
		counter      models.Counter
		ticketNumber string
	)

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureSequence(ctx, tx, bt, date); err != nil {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*models.TicketSequence)(nil)).
			Set("total_passed = total_passed + 1").
			Set("updated_at = ?", time.Now()).
			Where("business_type_id = ? AND date = ?", bt.ID, date).
			Exec(ctx)
		if err != nil {
			return err
		}

		err = tx.NewSelect().
			Model(&seq).
			Where("business_type_id = ? AND date = ?", bt.ID, date).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return err
		}

		// The call number uses the single-character code, not the issuance
		// prefix, even though both pad the same way.
		ticketNumber = models.FormatTicketNumber(bt.Code, seq.TotalPassed)

		err = tx.NewSelect().
			Model(&counter).
			Where("counter_number = ?", counterNumber).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCounterNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now()
		_, err = tx.NewUpdate().
			Model((*models.Counter)(nil)).
			Set("current_ticket_number = ?", ticketNumber).
			Set("updated_at = ?", now).
			Where("id = ?", counter.ID).
			Exec(ctx)
		if err != nil {
			return err
		}
		counter.CurrentTicketNumber = &ticketNumber

		last := &models.CounterLastTicket{
			CounterID:      counter.ID,
			BusinessTypeID: bt.ID,
			LastTicketNo:   &ticketNumber,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, err = tx.NewInsert().
			Model(last).
			On("CONFLICT (counter_id, business_type_id) DO UPDATE").
			Set("last_ticket_no = EXCLUDED.last_ticket_no").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, nil, "", mapStorageErr(err)
	}
	return &seq, &counter, ticketNumber, nil
}

// ensureSequence lazily creates today's row with zeroed counters, copying the
// business type code for audit. Safe under concurrency: a conflicting insert
// is simply ignored.
func ensureSequence(ctx context.Context, tx bun.Tx, bt *models.BusinessType, date string) error {
	now := time.Now()
	seq := &models.TicketSequence{
		BusinessTypeID: bt.ID,
		BusinessCode:   bt.Code,
		Date:           date,
		TotalIssued:    0,
		TotalPassed:    0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := tx.NewInsert().
		Model(seq).
		On("CONFLICT (business_type_id, date) DO NOTHING").
		Exec(ctx)
	return err
}

// ResetAll zeroes every sequence row, stamps it with today's date and clears
// every counter binding, as a single transaction. Existing rows are
// repurposed rather than archived; historical daily totals are not retained.
func (d *DB) ResetAll(ctx context.Context, date string) error {
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()

		_, err := tx.NewUpdate().
			Model((*models.TicketSequence)(nil)).
			Set("total_issued = 0").
			Set("total_passed = 0").
			Set("date = ?", date).
			Set("updated_at = ?", now).
			Where("1 = 1").
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.Counter)(nil)).
			Set("current_ticket_number = NULL").
			Set("updated_at = ?", now).
			Where("1 = 1").
			Exec(ctx)
		if err != nil {
			return err
		}

		// Clear the remembered last-called values but keep the rows; counter
		// terminals start the new day blank.
		_, err = tx.NewUpdate().
			Model((*models.CounterLastTicket)(nil)).
			Set("last_ticket_no = NULL").
			Set("updated_at = ?", now).
			Where("last_ticket_no IS NOT NULL").
			Exec(ctx)
		return err
	})
	return mapStorageErr(err)
}

// ---------------- COUNTER-BINDING STORE ----------------

// GetCounterByNumber → fetch one counter by its public counter number
func (d *DB) GetCounterByNumber(ctx context.Context, counterNumber int) (*models.Counter, error) {
	var counter models.Counter
	err := d.Bun.NewSelect().
		Model(&counter).
		Where("counter_number = ?", counterNumber).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCounterNotFound
	}
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return &counter, nil
}

// ListCounters → fetch all counters ordered by counter number
func (d *DB) ListCounters(ctx context.Context) ([]models.Counter, error) {
	var counters []models.Counter
	err := d.Bun.NewSelect().
		Model(&counters).
		Order("counter_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return counters, nil
}

// GetLastTicket → the last ticket number a counter called for a business type
func (d *DB) GetLastTicket(ctx context.Context, counterID, businessTypeID int64) (*models.CounterLastTicket, error) {
	var last models.CounterLastTicket
	err := d.Bun.NewSelect().
		Model(&last).
		Where("counter_id = ? AND business_type_id = ?", counterID, businessTypeID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return &last, nil
}

// InsertCallLog appends an audit record for a call-advance event.
func (d *DB) InsertCallLog(ctx context.Context, entry models.CallLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(&entry).Exec(ctx)
	return mapStorageErr(err)
}
