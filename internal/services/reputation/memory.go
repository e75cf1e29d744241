package reputation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fusionbot-vk/fusionbot/internal/models"
	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps user records in an in-process cache. A single mutex
// serializes read-modify-write cycles, which is the atomicity contract the
// Redis backend gets from HINCRBY.
type MemoryStore struct {
	mu     sync.Mutex
	users  *cache.Cache
	admins *cache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  cache.New(cache.NoExpiration, cache.NoExpiration),
		admins: cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

func (m *MemoryStore) getLocked(id int64) *models.User {
	if val, found := m.users.Get(userKey(id)); found {
		u := *(val.(*models.User))
		return &u
	}
	return nil
}

func (m *MemoryStore) putLocked(user *models.User) {
	u := *user
	m.users.Set(userKey(user.ID), &u, cache.NoExpiration)
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id), nil
}

func (m *MemoryStore) UpsertUser(ctx context.Context, id int64, firstName, lastName string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	user := m.getLocked(id)
	if user == nil {
		user = &models.User{
			ID:        id,
			RankLevel: MinLevel,
			JoinDate:  now,
		}
	}
	user.FirstName = firstName
	user.LastName = lastName
	user.LastActivity = now
	m.putLocked(user)
	return user, nil
}

func (m *MemoryStore) IncrementActivity(ctx context.Context, id int64, exp int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.getLocked(id)
	if user == nil {
		user = &models.User{ID: id, RankLevel: MinLevel, JoinDate: time.Now().UTC()}
	}
	user.Experience += exp
	user.MessagesCount++
	user.LastActivity = time.Now().UTC()
	m.putLocked(user)
	return nil
}

func (m *MemoryStore) AddExperience(ctx context.Context, id int64, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.getLocked(id)
	if user == nil {
		user = &models.User{ID: id, RankLevel: MinLevel, JoinDate: time.Now().UTC()}
	}
	user.Experience += amount
	m.putLocked(user)
	return nil
}

func (m *MemoryStore) SetExperience(ctx context.Context, id int64, exp int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.getLocked(id)
	if user == nil {
		return nil
	}
	user.Experience = exp
	m.putLocked(user)
	return nil
}

func (m *MemoryStore) SetRankLevel(ctx context.Context, id int64, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.getLocked(id)
	if user == nil {
		return nil
	}
	user.RankLevel = level
	m.putLocked(user)
	return nil
}

func (m *MemoryStore) AddWarning(ctx context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.getLocked(id)
	if user == nil {
		user = &models.User{ID: id, RankLevel: MinLevel, JoinDate: time.Now().UTC()}
	}
	user.Warnings++
	m.putLocked(user)
	return user.Warnings, nil
}

func (m *MemoryStore) SetMuteUntil(ctx context.Context, id int64, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.getLocked(id)
	if user == nil {
		user = &models.User{ID: id, RankLevel: MinLevel, JoinDate: time.Now().UTC()}
	}
	user.MuteUntil = until
	m.putLocked(user)
	return nil
}

func (m *MemoryStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.getLocked(id)
	if user == nil {
		user = &models.User{ID: id, RankLevel: MinLevel, JoinDate: time.Now().UTC()}
	}
	user.Banned = banned
	m.putLocked(user)
	return nil
}

func (m *MemoryStore) IsAdmin(ctx context.Context, userID, peerID int64) (bool, error) {
	_, found := m.admins.Get(memoryAdminKey(userID, peerID))
	return found, nil
}

func (m *MemoryStore) GrantAdmin(ctx context.Context, userID, peerID int64, isOwner bool) error {
	m.admins.Set(memoryAdminKey(userID, peerID), models.ChatAdmin{
		UserID:  userID,
		PeerID:  peerID,
		IsOwner: isOwner,
	}, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) TopUsers(ctx context.Context, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]models.User, 0, m.users.ItemCount())
	for _, item := range m.users.Items() {
		users = append(users, *(item.Object.(*models.User)))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Experience > users[j].Experience
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func memoryAdminKey(userID, peerID int64) string {
	return fmt.Sprintf("admin:%d:%d", userID, peerID)
}
