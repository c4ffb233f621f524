package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rcplaneboss/gradebook-api/internal/models"
)

// PayloadCache keeps published exam payloads in Redis so exam delivery
// does not hit Postgres per student. Grades and reports never pass through
// here.
type PayloadCache struct {
	client *redis.Client
}

// NewPayloadCache creates a new payload cache.
func NewPayloadCache(client *redis.Client) *PayloadCache {
	return &PayloadCache{client: client}
}

func payloadKey(examID string) string {
	return fmt.Sprintf("exam:payload:%s", examID)
}

// Get returns the cached payload, or nil on a miss.
func (c *PayloadCache) Get(ctx context.Context, examID string) (*models.ExamPayload, error) {
	raw, err := c.client.Get(ctx, payloadKey(examID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exam payload: %w", err)
	}
	var payload models.ExamPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode exam payload: %w", err)
	}
	return &payload, nil
}

// Set stores the payload with a TTL.
func (c *PayloadCache) Set(ctx context.Context, payload *models.ExamPayload, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode exam payload: %w", err)
	}
	if err := c.client.Set(ctx, payloadKey(payload.ExamID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("set exam payload: %w", err)
	}
	return nil
}

// Invalidate drops the cached payload, used when questions change.
func (c *PayloadCache) Invalidate(ctx context.Context, examID string) error {
	if err := c.client.Del(ctx, payloadKey(examID)).Err(); err != nil {
		return fmt.Errorf("invalidate exam payload: %w", err)
	}
	return nil
}
