package credits

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"airmini-gateway/internal/models"
)

// RedisStore keeps credit counters and guest message counts in Redis. It is
// the gateway's stand-in for the auth provider's per-user metadata store.
type RedisStore struct {
	client   *redis.Client
	guestTTL time.Duration
}

func NewRedisStore(client *redis.Client, guestTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, guestTTL: guestTTL}
}

func creditsKey(userID string) string {
	return "credits:" + userID
}

func guestKey(guestID string) string {
	return "guest_message_count:" + guestID
}

func (s *RedisStore) GetCredits(ctx context.Context, userID string) (*models.CreditLimits, error) {
	raw, err := s.client.Get(ctx, creditsKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var limits models.CreditLimits
	if err := json.Unmarshal([]byte(raw), &limits); err != nil {
		return nil, fmt.Errorf("corrupt credits entry: %w", err)
	}
	return &limits, nil
}

func (s *RedisStore) SetCredits(ctx context.Context, userID string, limits models.CreditLimits) error {
	data, err := json.Marshal(limits)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, creditsKey(userID), string(data), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) GetGuestCount(ctx context.Context, guestID string) (int, error) {
	raw, err := s.client.Get(ctx, guestKey(guestID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt guest count: %w", err)
	}
	return count, nil
}

func (s *RedisStore) SetGuestCount(ctx context.Context, guestID string, count int) error {
	if err := s.client.Set(ctx, guestKey(guestID), strconv.Itoa(count), s.guestTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
