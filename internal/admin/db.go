package admin

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"queue-kiosk/internal/models"

	"github.com/uptrace/bun"
)

var (
	ErrSettingNotFound      = errors.New("setting does not exist")
	ErrCounterNotFound      = errors.New("counter not found")
	ErrCounterExists        = errors.New("counter number already exists")
	ErrBusinessTypeNotFound = errors.New("business type not found")
	ErrBusinessTypeExists   = errors.New("business type code already exists")
)

// DB is the admin panel's storage access: settings, counters and business
// type configuration. The queue engines never write through this layer.
type DB struct {
	Bun *bun.DB
}

// ---------------- SETTINGS ----------------

func (d *DB) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	err := d.Bun.NewSelect().
		Model(&setting).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// ListSettings returns every setting except the admin password hash.
func (d *DB) ListSettings(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	err := d.Bun.NewSelect().
		Model(&settings).
		Where("key != ?", models.SettingAdminPassword).
		Order("key ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (d *DB) UpdateSetting(ctx context.Context, key, value, description string) (*models.Setting, error) {
	setting, err := d.GetSetting(ctx, key)
	if err != nil {
		return nil, err
	}

	setting.Value = value
	if description != "" {
		setting.Description = description
	}
	setting.UpdatedAt = time.Now()

	_, err = d.Bun.NewUpdate().
		Model(setting).
		Column("value", "description", "updated_at").
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return setting, nil
}

// CreateSetting inserts a setting if it does not exist yet; existing rows are
// left untouched.
func (d *DB) CreateSetting(ctx context.Context, setting models.Setting) error {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().
		Model(&setting).
		On("CONFLICT (key) DO NOTHING").
		Exec(ctx)
	return err
}

// ---------------- COUNTERS ----------------

func (d *DB) GetCounter(ctx context.Context, id int64) (*models.Counter, error) {
	var counter models.Counter
	err := d.Bun.NewSelect().
		Model(&counter).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCounterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

func (d *DB) ListCounters(ctx context.Context) ([]models.Counter, error) {
	var counters []models.Counter
	err := d.Bun.NewSelect().
		Model(&counters).
		Order("counter_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return counters, nil
}

func (d *DB) CreateCounter(ctx context.Context, counter models.Counter) (*models.Counter, error) {
	exists, err := d.counterNumberTaken(ctx, counter.CounterNumber, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrCounterExists
	}

	now := time.Now()
	counter.CreatedAt = now
	counter.UpdatedAt = now
	_, err = d.Bun.NewInsert().Model(&counter).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

func (d *DB) UpdateCounter(ctx context.Context, id int64, counterNumber int, name string, ipAddress *string) (*models.Counter, error) {
	counter, err := d.GetCounter(ctx, id)
	if err != nil {
		return nil, err
	}

	if counterNumber != 0 && counterNumber != counter.CounterNumber {
		taken, err := d.counterNumberTaken(ctx, counterNumber, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrCounterExists
		}
		counter.CounterNumber = counterNumber
	}
	if name != "" {
		counter.Name = name
	}
	if ipAddress != nil {
		counter.IPAddress = ipAddress
	}
	counter.UpdatedAt = time.Now()

	_, err = d.Bun.NewUpdate().
		Model(counter).
		Column("counter_number", "name", "ip_address", "updated_at").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return counter, nil
}

func (d *DB) DeleteCounter(ctx context.Context, id int64) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Counter)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCounterNotFound
	}
	return nil
}

func (d *DB) counterNumberTaken(ctx context.Context, counterNumber int, excludeID int64) (bool, error) {
	q := d.Bun.NewSelect().
		Model((*models.Counter)(nil)).
		Where("counter_number = ?", counterNumber)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	return q.Exists(ctx)
}

// ---------------- BUSINESS TYPES ----------------

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
		return nil, err
	}
	return &bt, nil
}

func (d *DB) ListBusinessTypes(ctx context.Context) ([]models.BusinessType, error) {
	var types []models.BusinessType
	err := d.Bun.NewSelect().
		Model(&types).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (d *DB) CreateBusinessType(ctx context.Context, bt models.BusinessType) (*models.BusinessType, error) {
	taken, err := d.businessCodeTaken(ctx, bt.Code, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrBusinessTypeExists
	}

	if bt.Status == "" {
		bt.Status = models.BusinessTypeActive
	}
	now := time.Now()
	bt.CreatedAt = now
	bt.UpdatedAt = now
	_, err = d.Bun.NewInsert().Model(&bt).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return &bt, nil
}

func (d *DB) UpdateBusinessType(ctx context.Context, id int64, update models.BusinessType) (*models.BusinessType, error) {
	bt, err := d.GetBusinessType(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Code != "" && update.Code != bt.Code {
		taken, err := d.businessCodeTaken(ctx, update.Code, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrBusinessTypeExists
		}
		bt.Code = update.Code
	}
	if update.Name != "" {
		bt.Name = update.Name
	}
	if update.NameEn != "" {
		bt.NameEn = update.NameEn
	}
	if update.Prefix != "" {
		bt.Prefix = update.Prefix
	}
	if update.Status != "" {
		bt.Status = update.Status
	}
	bt.UpdatedAt = time.Now()

	_, err = d.Bun.NewUpdate().
		Model(bt).
		Column("name", "name_en", "code", "prefix", "status", "updated_at").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return bt, nil
}

func (d *DB) DeleteBusinessType(ctx context.Context, id int64) error {
	res, err := d.Bun.NewDelete().
		Model((*models.BusinessType)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBusinessTypeNotFound
	}
	return nil
}

func (d *DB) businessCodeTaken(ctx context.Context, code string, excludeID int64) (bool, error) {
	q := d.Bun.NewSelect().
		Model((*models.BusinessType)(nil)).
		Where("code = ?", code)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	return q.Exists(ctx)
}
