package reputation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const leaderboardKey = "leaderboard"

// RedisStore persists user records as Redis hashes. Counters use HINCRBY so
// concurrent updates to the same user are atomic read-modify-writes on the
// server, and a sorted set keeps the leaderboard in experience order.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisStore(cfg *config.Config, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, logger: logger}, nil
}

// NewRedisStoreWithClient wires an existing client, used by tests.
func NewRedisStoreWithClient(client *redis.Client, logger *logrus.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func userKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func adminsKey(peerID int64) string {
	return fmt.Sprintf("chat_admins:%d", peerID)
}

func (r *RedisStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	fields, err := r.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return userFromHash(id, fields), nil
}

func (r *RedisStore) UpsertUser(ctx context.Context, id int64, firstName, lastName string) (*models.User, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	key := userKey(id)

	pipe := r.client.TxPipeline()
	pipe.HSetNX(ctx, key, "join_date", now)
	pipe.HSetNX(ctx, key, "experience", 0)
	pipe.HSetNX(ctx, key, "rank_level", MinLevel)
	pipe.HSetNX(ctx, key, "messages_count", 0)
	pipe.HSetNX(ctx, key, "warnings", 0)
	pipe.HSetNX(ctx, key, "banned", 0)
	pipe.HSet(ctx, key, "first_name", firstName, "last_name", lastName, "last_activity", now)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return r.GetUser(ctx, id)
}

func (r *RedisStore) IncrementActivity(ctx context.Context, id int64, exp int) error {
	key := userKey(id)
	now := time.Now().UTC().Format(time.RFC3339)

	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "experience", int64(exp))
	pipe.HIncrBy(ctx, key, "messages_count", 1)
	pipe.HSet(ctx, key, "last_activity", now)
	pipe.ZIncrBy(ctx, leaderboardKey, float64(exp), strconv.FormatInt(id, 10))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) AddExperience(ctx context.Context, id int64, amount int) error {
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, userKey(id), "experience", int64(amount))
	pipe.ZIncrBy(ctx, leaderboardKey, float64(amount), strconv.FormatInt(id, 10))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) SetExperience(ctx context.Context, id int64, exp int) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, userKey(id), "experience", exp)
	pipe.ZAdd(ctx, leaderboardKey, &redis.Z{Score: float64(exp), Member: strconv.FormatInt(id, 10)})
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) SetRankLevel(ctx context.Context, id int64, level int) error {
	return r.client.HSet(ctx, userKey(id), "rank_level", level).Err()
}

func (r *RedisStore) AddWarning(ctx context.Context, id int64) (int, error) {
	count, err := r.client.HIncrBy(ctx, userKey(id), "warnings", 1).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *RedisStore) SetMuteUntil(ctx context.Context, id int64, until *time.Time) error {
	if until == nil {
		return r.client.HDel(ctx, userKey(id), "mute_until").Err()
	}
	return r.client.HSet(ctx, userKey(id), "mute_until", until.Unix()).Err()
}

func (r *RedisStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	val := 0
	if banned {
		val = 1
	}
	return r.client.HSet(ctx, userKey(id), "banned", val).Err()
}

func (r *RedisStore) IsAdmin(ctx context.Context, userID, peerID int64) (bool, error) {
	_, err := r.client.HGet(ctx, adminsKey(peerID), strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisStore) GrantAdmin(ctx context.Context, userID, peerID int64, isOwner bool) error {
	val := "admin"
	if isOwner {
		val = "owner"
	}
	return r.client.HSet(ctx, adminsKey(peerID), strconv.FormatInt(userID, 10), val).Err()
}

func (r *RedisStore) TopUsers(ctx context.Context, limit int) ([]models.User, error) {
	ids, err := r.client.ZRevRange(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(ids))
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		user, err := r.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if user != nil {
			users = append(users, *user)
		}
	}
	return users, nil
}

func userFromHash(id int64, fields map[string]string) *models.User {
	user := &models.User{
		ID:        id,
		FirstName: fields["first_name"],
		LastName:  fields["last_name"],
	}
	user.Experience, _ = strconv.Atoi(fields["experience"])
	user.RankLevel, _ = strconv.Atoi(fields["rank_level"])
	if user.RankLevel == 0 {
		user.RankLevel = MinLevel
	}
	user.MessagesCount, _ = strconv.Atoi(fields["messages_count"])
	user.Warnings, _ = strconv.Atoi(fields["warnings"])
	user.Banned = fields["banned"] == "1"

	if raw := fields["mute_until"]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.Unix(unix, 0)
			user.MuteUntil = &t
		}
	}
	if raw := fields["join_date"]; raw != "" {
		user.JoinDate, _ = time.Parse(time.RFC3339, raw)
	}
	if raw := fields["last_activity"]; raw != "" {
		user.LastActivity, _ = time.Parse(time.RFC3339, raw)
	}
	return user
}
