package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"voltgrid/internal/models"
)

// CachedState is the snapshot stored in redis for quick availability polling.
type CachedState struct {
	State     models.AvailabilityState `json:"state"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// AvailabilityCache mirrors derived station and EVSE statuses in redis.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache returns redis-backed cache.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

func (c *AvailabilityCache) stationKey(stationID string) string {
	return fmt.Sprintf("availability:station:%s", stationID)
}

func (c *AvailabilityCache) evseKey(stationID string, evseID int) string {
	return fmt.Sprintf("availability:evse:%s:%d", stationID, evseID)
}

// SetStationState caches the rolled-up station status.
func (c *AvailabilityCache) SetStationState(ctx context.Context, stationID string, state models.AvailabilityState) error {
	return c.set(ctx, c.stationKey(stationID), state)
}

// SetEvseState caches the derived status of one EVSE.
func (c *AvailabilityCache) SetEvseState(ctx context.Context, stationID string, evseID int, state models.AvailabilityState) error {
	return c.set(ctx, c.evseKey(stationID, evseID), state)
}

func (c *AvailabilityCache) set(ctx context.Context, key string, state models.AvailabilityState) error {
	data, err := json.Marshal(CachedState{State: state, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// GetStationState returns the cached station status, or nil on a miss.
func (c *AvailabilityCache) GetStationState(ctx context.Context, stationID string) (*CachedState, error) {
	return c.get(ctx, c.stationKey(stationID))
}

// GetEvseState returns the cached EVSE status, or nil on a miss.
func (c *AvailabilityCache) GetEvseState(ctx context.Context, stationID string, evseID int) (*CachedState, error) {
	return c.get(ctx, c.evseKey(stationID, evseID))
}

func (c *AvailabilityCache) get(ctx context.Context, key string) (*CachedState, error) {
	result, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state CachedState
	if err := json.Unmarshal([]byte(result), &state); err != nil {
		return nil, err
	}
	return &state, nil
}
