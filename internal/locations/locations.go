// Package locations keeps the last known coordinates of couriers on shift in a
// Redis hash. Entries are ephemeral: they are removed when a session ends or
// when they go stale.
package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sol1corejz/topgo-reports/internal/logger"
	"go.uber.org/zap"
)

const hashKey = "courier"

var ErrInvalidCoords = errors.New("coordinates out of range")

type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Location struct {
	CourierID int64   `json:"courier_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

type Store struct {
	rdb *redis.Client
	now func() time.Time
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, now: time.Now}
}

func (s *Store) Set(ctx context.Context, courierID int64, c Coords) error {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return ErrInvalidCoords
	}
	loc := Location{CourierID: courierID, Lat: c.Lat, Lng: c.Lng, Timestamp: s.now().Unix()}
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, hashKey, strconv.FormatInt(courierID, 10), data).Err()
}

// All skips entries that cannot be decoded.
func (s *Store) All(ctx context.Context) ([]Location, error) {
	raw, err := s.rdb.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, err
	}

	locs := make([]Location, 0, len(raw))
	for field, v := range raw {
		var loc Location
		if err := json.Unmarshal([]byte(v), &loc); err != nil {
			logger.Log.Warn("Malformed courier location", zap.String("courier", field), zap.Error(err))
			continue
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func (s *Store) Remove(ctx context.Context, courierID int64) error {
	return s.rdb.HDel(ctx, hashKey, strconv.FormatInt(courierID, 10)).Err()
}

// PruneStale drops locations older than maxAge, as well as undecodable ones,
// and returns how many were removed.
func (s *Store) PruneStale(ctx context.Context, maxAge time.Duration) (int, error) {
	raw, err := s.rdb.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-maxAge).Unix()
	var stale []string
	for field, v := range raw {
		var loc Location
		if err := json.Unmarshal([]byte(v), &loc); err != nil || loc.Timestamp < cutoff {
			stale = append(stale, field)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	n, err := s.rdb.HDel(ctx, hashKey, stale...).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
