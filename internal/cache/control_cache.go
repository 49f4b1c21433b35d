package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go-iot-backend/internal/model"
)

const controlKey = "iot:control:state"

// ControlCache keeps the last known control row in Redis so device polling
// does not reach Postgres on every request.
type ControlCache struct {
	client *redis.Client
	ttl    time.Duration
}

type cachedControl struct {
	TV        int       `json:"tv"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewControlCache(client *redis.Client, ttl time.Duration) *ControlCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ControlCache{client: client, ttl: ttl}
}

func (c *ControlCache) Get(ctx context.Context) (model.ControlState, bool, error) {
	raw, err := c.client.Get(ctx, controlKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ControlState{}, false, nil
	}
	if err != nil {
		return model.ControlState{}, false, fmt.Errorf("get control state: %w", err)
	}

	var cached cachedControl
	if err := json.Unmarshal(raw, &cached); err != nil {
		// A corrupt entry is dropped so the next Fill can replace it.
		_ = c.client.Del(ctx, controlKey).Err()
		return model.ControlState{}, false, fmt.Errorf("decode control state: %w", err)
	}
	return model.ControlState{TV: cached.TV, UpdatedAt: cached.UpdatedAt}, true, nil
}

// Set stores state after a committed write, replacing any cached value.
func (c *ControlCache) Set(ctx context.Context, state model.ControlState) error {
	raw, err := encodeControl(state)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, controlKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set control state: %w", err)
	}
	return nil
}

// Fill stores state read on a cache miss. It only writes when the key is
// absent, so a read that raced a write cannot replace the newer value.
func (c *ControlCache) Fill(ctx context.Context, state model.ControlState) (bool, error) {
	raw, err := encodeControl(state)
	if err != nil {
		return false, err
	}
	stored, err := c.client.SetNX(ctx, controlKey, raw, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("fill control state: %w", err)
	}
	return stored, nil
}

func encodeControl(state model.ControlState) ([]byte, error) {
	raw, err := json.Marshal(cachedControl{TV: state.TV, UpdatedAt: state.UpdatedAt})
	if err != nil {
		return nil, fmt.Errorf("encode control state: %w", err)
	}
	return raw, nil
}

func (c *ControlCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, controlKey).Err(); err != nil {
		return fmt.Errorf("invalidate control state: %w", err)
	}
	return nil
}
