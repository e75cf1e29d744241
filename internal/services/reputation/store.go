package reputation

import (
	"context"
	"fmt"
	"time"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/models"
	"github.com/sirupsen/logrus"
)

// Store defines the persistence operations for user reputation records.
// Implementations return errors; the Manager above them converts failures
// into no-effect results so a storage outage degrades the pipeline instead
// of breaking it.
type Store interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UpsertUser(ctx context.Context, id int64, firstName, lastName string) (*models.User, error)

	// IncrementActivity applies one message worth of activity atomically:
	// experience, message counter and last-activity stamp.
	IncrementActivity(ctx context.Context, id int64, exp int) error
	AddExperience(ctx context.Context, id int64, amount int) error
	SetExperience(ctx context.Context, id int64, exp int) error
	SetRankLevel(ctx context.Context, id int64, level int) error

	AddWarning(ctx context.Context, id int64) (int, error)
	SetMuteUntil(ctx context.Context, id int64, until *time.Time) error
	SetBanned(ctx context.Context, id int64, banned bool) error

	IsAdmin(ctx context.Context, userID, peerID int64) (bool, error)
	GrantAdmin(ctx context.Context, userID, peerID int64, isOwner bool) error

	TopUsers(ctx context.Context, limit int) ([]models.User, error)
}

// Manager wraps a Store backend and owns the failure semantics: every
// storage error is logged and surfaced as "no effect" to the caller.
type Manager struct {
	store  Store
	logger *logrus.Logger
}

// NewManager creates a reputation manager over the configured backend.
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	var store Store

	switch cfg.Storage.Type {
	case "redis":
		redisStore, err := NewRedisStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case "memory":
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return &Manager{store: store, logger: logger}, nil
}

// NewManagerWithStore wires an existing backend, used by tests.
func NewManagerWithStore(store Store, logger *logrus.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// GetUser returns the user record or nil when absent or on storage failure.
func (m *Manager) GetUser(ctx context.Context, id int64) *models.User {
	user, err := m.store.GetUser(ctx, id)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to get user")
		return nil
	}
	return user
}

// UpsertUser creates the record on first contact and refreshes names and
// activity on later ones. The original join date is preserved.
func (m *Manager) UpsertUser(ctx context.Context, id int64, firstName, lastName string) *models.User {
	user, err := m.store.UpsertUser(ctx, id, firstName, lastName)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to upsert user")
		return nil
	}
	return user
}

// RecordActivity applies one ordinary message: experience and counters.
func (m *Manager) RecordActivity(ctx context.Context, id int64, exp int) {
	if err := m.store.IncrementActivity(ctx, id, exp); err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to record activity")
	}
}

// AddExperience awards experience outside of the per-message path, e.g. for
// administrative actions.
func (m *Manager) AddExperience(ctx context.Context, id int64, amount int) {
	if err := m.store.AddExperience(ctx, id, amount); err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to add experience")
	}
}

// RecomputeRank re-derives the rank level from current experience and
// returns true iff the stored level changed.
func (m *Manager) RecomputeRank(ctx context.Context, id int64) bool {
	user, err := m.store.GetUser(ctx, id)
	if err != nil || user == nil {
		if err != nil {
			m.logger.WithError(err).WithField("user_id", id).Error("Failed to recompute rank")
		}
		return false
	}

	derived := RankForExperience(user.Experience)
	if derived.Level == user.RankLevel {
		return false
	}

	if err := m.store.SetRankLevel(ctx, id, derived.Level); err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to store rank level")
		return false
	}

	m.logger.WithFields(logrus.Fields{
		"user_id": id,
		"rank":    derived.Name,
		"level":   derived.Level,
	}).Info("User rank changed")
	return true
}

// ResetExperience is the administrative path to a downward rank transition.
func (m *Manager) ResetExperience(ctx context.Context, id int64) bool {
	if err := m.store.SetExperience(ctx, id, 0); err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to reset experience")
		return false
	}
	m.RecomputeRank(ctx, id)
	return true
}

func (m *Manager) IsAdmin(ctx context.Context, userID, peerID int64) bool {
	ok, err := m.store.IsAdmin(ctx, userID, peerID)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Error("Failed to check admin")
		return false
	}
	return ok
}

func (m *Manager) GrantAdmin(ctx context.Context, userID, peerID int64, isOwner bool) bool {
	if err := m.store.GrantAdmin(ctx, userID, peerID, isOwner); err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Error("Failed to grant admin")
		return false
	}
	return true
}

// Mute silences the user for the given duration.
func (m *Manager) Mute(ctx context.Context, id int64, d time.Duration) bool {
	until := time.Now().Add(d)
	if err := m.store.SetMuteUntil(ctx, id, &until); err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to mute user")
		return false
	}
	return true
}

func (m *Manager) Unmute(ctx context.Context, id int64) bool {
	if err := m.store.SetMuteUntil(ctx, id, nil); err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to unmute user")
		return false
	}
	return true
}

// IsMuted checks the mute deadline, lazily clearing it once expired. The
// expiry check happens on every read, there is no background timer.
func (m *Manager) IsMuted(ctx context.Context, id int64) bool {
	user := m.GetUser(ctx, id)
	if user == nil || user.MuteUntil == nil {
		return false
	}
	if time.Now().After(*user.MuteUntil) {
		m.Unmute(ctx, id)
		return false
	}
	return true
}

// MutedUntil returns the active mute deadline, or nil.
func (m *Manager) MutedUntil(ctx context.Context, id int64) *time.Time {
	user := m.GetUser(ctx, id)
	if user == nil || user.MuteUntil == nil {
		return nil
	}
	if time.Now().After(*user.MuteUntil) {
		m.Unmute(ctx, id)
		return nil
	}
	return user.MuteUntil
}

func (m *Manager) Ban(ctx context.Context, id int64) bool {
	if err := m.store.SetBanned(ctx, id, true); err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to ban user")
		return false
	}
	return true
}

func (m *Manager) Unban(ctx context.Context, id int64) bool {
	if err := m.store.SetBanned(ctx, id, false); err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to unban user")
		return false
	}
	return true
}

func (m *Manager) IsBanned(ctx context.Context, id int64) bool {
	user := m.GetUser(ctx, id)
	return user != nil && user.Banned
}

// AddWarning increments the warning counter and returns the new count,
// or 0 when the store failed.
func (m *Manager) AddWarning(ctx context.Context, id int64) int {
	count, err := m.store.AddWarning(ctx, id)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", id).Error("Failed to add warning")
		return 0
	}
	return count
}

func (m *Manager) GetWarnings(ctx context.Context, id int64) int {
	user := m.GetUser(ctx, id)
	if user == nil {
		return 0
	}
	return user.Warnings
}

// TopUsers returns up to limit users ordered by experience descending.
func (m *Manager) TopUsers(ctx context.Context, limit int) []models.User {
	users, err := m.store.TopUsers(ctx, limit)
	if err != nil {
		m.logger.WithError(err).Error("Failed to load top users")
		return nil
	}
	return users
}
