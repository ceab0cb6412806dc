package admin

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"queue-kiosk/internal/logger"
	"queue-kiosk/internal/models"

	"golang.org/x/crypto/bcrypt"
)

const (
	// tokenPrefix marks our opaque bearer tokens. The token carries no
	// claims; validity is just the decoded prefix.
	tokenPrefix = "admin_"

	defaultAdminPassword = "admin123"
)

var (
	ErrInvalidCredentials = errors.New("invalid password")
	ErrForbiddenSetting   = errors.New("admin password cannot be changed through this endpoint")
)

// EventVoiceSettingsUpdated tells connected clients to re-read voice settings.
const EventVoiceSettingsUpdated = "voice:settingsUpdated"

// SchedulerControl is the slice of the reset scheduler the admin panel
// drives.
type SchedulerControl interface {
	Restart()
}

// Notifier mirrors the queue engine's broadcast sink.
type Notifier interface {
	Emit(event string, payload any)
}

type Service struct {
	DB        *DB
	Scheduler SchedulerControl
	Notifier  Notifier
	Logger    *logger.Logger
}

func NewService(db *DB, sched SchedulerControl, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		DB:        db,
		Scheduler: sched,
		Notifier:  notifier,
		Logger:    log,
	}
}

// EnsureDefaults seeds the admin password (bcrypt of "admin123") and any
// missing settings at startup. Existing values are never overwritten.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	if _, err := s.DB.GetSetting(ctx, models.SettingAdminPassword); errors.Is(err, ErrSettingNotFound) {
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), bcrypt.DefaultCost)
		if hashErr != nil {
			return fmt.Errorf("failed to hash default admin password: %w", hashErr)
		}
		if err := s.DB.CreateSetting(ctx, models.Setting{
			Key:         models.SettingAdminPassword,
			Value:       string(hash),
			Description: "管理员登录密码 (默认: admin123)",
		}); err != nil {
			return err
		}
		if s.Logger != nil {
			s.Logger.Warn("ADMIN", "created default admin password, change it in the admin panel")
		}
	} else if err != nil {
		return err
	}

	if err := s.DB.CreateSetting(ctx, models.Setting{
		Key:         models.SettingTicketResetTime,
		Value:       "00:00",
		Description: "每日票号重置时间 (24小时制, 例如: 00:00)",
	}); err != nil {
		return err
	}
	return nil
}

// Login checks the password against the stored bcrypt hash and hands back an
// opaque bearer token.
func (s *Service) Login(ctx context.Context, password string) (string, error) {
	setting, err := s.DB.GetSetting(ctx, models.SettingAdminPassword)
	if err != nil {
		return "", fmt.Errorf("admin password is not configured: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(setting.Value), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token := base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "%s%d", tokenPrefix, time.Now().UnixNano()))
	if s.Logger != nil {
		s.Logger.Info("ADMIN", "admin login successful")
	}
	return token, nil
}

// ValidateToken checks the opaque bearer token by its decoded prefix.
func ValidateToken(token string) bool {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(decoded), tokenPrefix)
}

// GetSettings returns all settings except the admin password.
func (s *Service) GetSettings(ctx context.Context) ([]models.Setting, error) {
	return s.DB.ListSettings(ctx)
}

// GetResetTime implements the scheduler's settings reader.
func (s *Service) GetResetTime(ctx context.Context) (string, error) {
	setting, err := s.DB.GetSetting(ctx, models.SettingTicketResetTime)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(setting.Value), nil
}

// UpdateSetting writes a setting and applies its side effects: changing
// ticket_reset_time reschedules the daily reset, changing a voice setting
// notifies connected clients. The admin password is not writable here.
func (s *Service) UpdateSetting(ctx context.Context, key, value, description string) (*models.Setting, error) {
	if key == models.SettingAdminPassword {
		return nil, ErrForbiddenSetting
	}

	setting, err := s.DB.UpdateSetting(ctx, key, value, description)
	if err != nil {
		return nil, err
	}

	if key == models.SettingTicketResetTime && s.Scheduler != nil {
		s.Scheduler.Restart()
		if s.Logger != nil {
			s.Logger.Info("ADMIN", fmt.Sprintf("reset time changed to %s, scheduler restarted", value))
		}
	}

	if (key == models.SettingVoiceVolume || key == models.SettingVoiceRate) && s.Notifier != nil {
		s.Notifier.Emit(EventVoiceSettingsUpdated, map[string]string{"key": key})
	}

	return setting, nil
}

// UpdatePassword verifies the current password and stores a bcrypt hash of
// the new one.
func (s *Service) UpdatePassword(ctx context.Context, currentPassword, newPassword string) error {
	setting, err := s.DB.GetSetting(ctx, models.SettingAdminPassword)
	if err != nil {
		return fmt.Errorf("admin password is not configured: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(setting.Value), []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.DB.UpdateSetting(ctx, models.SettingAdminPassword, string(hash), "")
	return err
}
