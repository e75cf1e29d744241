package reputation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// withBackends runs the test against both the memory and the Redis backend.
func withBackends(t *testing.T, fn func(t *testing.T, m *Manager)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewManagerWithStore(NewMemoryStore(), testLogger()))
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		fn(t, NewManagerWithStore(NewRedisStoreWithClient(client, testLogger()), testLogger()))
	})
}

func TestUpsertUserPreservesHistory(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()

		first := m.UpsertUser(ctx, 1, "Иван", "Петров")
		if first == nil {
			t.Fatal("expected user after upsert")
		}
		if first.Experience != 0 || first.RankLevel != MinLevel {
			t.Fatalf("new user got exp=%d level=%d", first.Experience, first.RankLevel)
		}

		m.RecordActivity(ctx, 1, 5)

		second := m.UpsertUser(ctx, 1, "Иван", "Сидоров")
		if second == nil {
			t.Fatal("expected user after second upsert")
		}
		if second.Experience != 5 {
			t.Errorf("upsert reset experience to %d, want 5", second.Experience)
		}
		if second.LastName != "Сидоров" {
			t.Errorf("upsert did not refresh last name, got %q", second.LastName)
		}
		if !second.JoinDate.Equal(first.JoinDate) {
			t.Errorf("upsert changed join date from %v to %v", first.JoinDate, second.JoinDate)
		}
	})
}

func TestRecordActivityAccumulates(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()
		m.UpsertUser(ctx, 2, "A", "B")

		for i := 0; i < 10; i++ {
			m.RecordActivity(ctx, 2, 1)
		}

		user := m.GetUser(ctx, 2)
		if user == nil {
			t.Fatal("expected user")
		}
		if user.Experience != 10 {
			t.Errorf("experience = %d, want 10", user.Experience)
		}
		if user.MessagesCount != 10 {
			t.Errorf("messages = %d, want 10", user.MessagesCount)
		}
	})
}

func TestRecomputeRank(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()
		m.UpsertUser(ctx, 3, "A", "B")

		if m.RecomputeRank(ctx, 3) {
			t.Error("rank changed with zero experience")
		}

		m.AddExperience(ctx, 3, 100)
		if !m.RecomputeRank(ctx, 3) {
			t.Error("rank did not change after crossing a threshold")
		}
		if m.RecomputeRank(ctx, 3) {
			t.Error("recompute is not idempotent")
		}

		user := m.GetUser(ctx, 3)
		if user == nil || user.RankLevel != 2 {
			t.Fatalf("expected level 2, got %+v", user)
		}
	})
}

func TestResetExperienceDowngradesRank(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()
		m.UpsertUser(ctx, 9, "A", "B")
		m.AddExperience(ctx, 9, 500)
		m.RecomputeRank(ctx, 9)

		if !m.ResetExperience(ctx, 9) {
			t.Fatal("reset failed")
		}

		user := m.GetUser(ctx, 9)
		if user == nil || user.Experience != 0 {
			t.Fatalf("experience after reset = %+v", user)
		}
		if user.RankLevel != MinLevel {
			t.Errorf("rank level after reset = %d, want %d", user.RankLevel, MinLevel)
		}
	})
}

func TestMuteLifecycle(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()
		m.UpsertUser(ctx, 4, "A", "B")

		if m.IsMuted(ctx, 4) {
			t.Error("fresh user is muted")
		}

		if !m.Mute(ctx, 4, time.Hour) {
			t.Fatal("mute failed")
		}
		if !m.IsMuted(ctx, 4) {
			t.Error("user not muted after Mute")
		}
		if until := m.MutedUntil(ctx, 4); until == nil || !until.After(time.Now()) {
			t.Error("MutedUntil not in the future")
		}

		if !m.Unmute(ctx, 4) {
			t.Fatal("unmute failed")
		}
		if m.IsMuted(ctx, 4) {
			t.Error("user still muted after Unmute")
		}
	})
}

func TestMuteExpiresLazily(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()
		m.UpsertUser(ctx, 5, "A", "B")

		m.Mute(ctx, 5, -time.Second)
		if m.IsMuted(ctx, 5) {
			t.Error("expired mute still reported as active")
		}
	})
}

func TestBanLifecycle(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()
		m.UpsertUser(ctx, 6, "A", "B")

		if !m.Ban(ctx, 6) {
			t.Fatal("ban failed")
		}
		if !m.IsBanned(ctx, 6) {
			t.Error("user not banned after Ban")
		}
		if !m.Unban(ctx, 6) {
			t.Fatal("unban failed")
		}
		if m.IsBanned(ctx, 6) {
			t.Error("user still banned after Unban")
		}
	})
}

func TestAddWarningCounts(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()
		m.UpsertUser(ctx, 7, "A", "B")

		for want := 1; want <= 3; want++ {
			if got := m.AddWarning(ctx, 7); got != want {
				t.Errorf("warning %d returned count %d", want, got)
			}
		}
		if got := m.GetWarnings(ctx, 7); got != 3 {
			t.Errorf("GetWarnings = %d, want 3", got)
		}
	})
}

func TestAdminGrantsArePerChat(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()

		if m.IsAdmin(ctx, 8, 100) {
			t.Error("user is admin without a grant")
		}
		if !m.GrantAdmin(ctx, 8, 100, false) {
			t.Fatal("grant failed")
		}
		if !m.IsAdmin(ctx, 8, 100) {
			t.Error("grant not visible")
		}
		if m.IsAdmin(ctx, 8, 200) {
			t.Error("grant leaked to another chat")
		}
	})
}

func TestTopUsersOrdered(t *testing.T) {
	withBackends(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()

		for i, exp := range []int{50, 300, 120} {
			id := int64(10 + i)
			m.UpsertUser(ctx, id, "U", "")
			m.AddExperience(ctx, id, exp)
		}

		top := m.TopUsers(ctx, 2)
		if len(top) != 2 {
			t.Fatalf("got %d users, want 2", len(top))
		}
		if top[0].ID != 11 || top[1].ID != 12 {
			t.Errorf("top order = [%d %d], want [11 12]", top[0].ID, top[1].ID)
		}
	})
}

// brokenStore fails every operation, standing in for a storage outage.
type brokenStore struct{}

var errDown = errors.New("storage down")

func (brokenStore) GetUser(context.Context, int64) (*models.User, error) { return nil, errDown }
func (brokenStore) UpsertUser(context.Context, int64, string, string) (*models.User, error) {
	return nil, errDown
}
func (brokenStore) IncrementActivity(context.Context, int64, int) error { return errDown }
func (brokenStore) AddExperience(context.Context, int64, int) error     { return errDown }
func (brokenStore) SetExperience(context.Context, int64, int) error     { return errDown }
func (brokenStore) SetRankLevel(context.Context, int64, int) error      { return errDown }
func (brokenStore) AddWarning(context.Context, int64) (int, error)      { return 0, errDown }
func (brokenStore) SetMuteUntil(context.Context, int64, *time.Time) error {
	return errDown
}
func (brokenStore) SetBanned(context.Context, int64, bool) error { return errDown }
func (brokenStore) IsAdmin(context.Context, int64, int64) (bool, error) {
	return false, errDown
}
func (brokenStore) GrantAdmin(context.Context, int64, int64, bool) error { return errDown }
func (brokenStore) TopUsers(context.Context, int) ([]models.User, error) {
	return nil, errDown
}

func TestStorageFailureDegrades(t *testing.T) {
	ctx := context.Background()
	m := NewManagerWithStore(brokenStore{}, testLogger())

	if m.GetUser(ctx, 1) != nil {
		t.Error("GetUser should return nil on failure")
	}
	if m.Mute(ctx, 1, time.Minute) {
		t.Error("Mute should report no effect on failure")
	}
	if m.AddWarning(ctx, 1) != 0 {
		t.Error("AddWarning should return 0 on failure")
	}
	if m.IsBanned(ctx, 1) {
		t.Error("IsBanned should default to false on failure")
	}
	if m.IsAdmin(ctx, 1, 1) {
		t.Error("IsAdmin should default to false on failure")
	}
	if m.RecomputeRank(ctx, 1) {
		t.Error("RecomputeRank should report no change on failure")
	}
}
