package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/malwarebo/statsbot/models"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// StatsCache keeps the latest guild counts in Redis so the ops API can serve
// them without a database round trip. The bot runs fine without it.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func CreateStatsCache(config RedisConfig) (*StatsCache, error) {
	addr := config.Host + ":" + strconv.Itoa(config.Port)
	if config.Port == 0 {
		addr = config.Host + ":6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	ttl := config.TTL
	if ttl == 0 {
		ttl = time.Hour
	}

	return &StatsCache{client: client, ttl: ttl}, nil
}

func (c *StatsCache) key(guildID string) string {
	return "statsbot:snapshot:" + guildID
}

func (c *StatsCache) SetSnapshot(ctx context.Context, snapshot *models.StatsSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(snapshot.GuildID), data, c.ttl).Err()
}

func (c *StatsCache) GetSnapshot(ctx context.Context, guildID string) (*models.StatsSnapshot, error) {
	data, err := c.client.Get(ctx, c.key(guildID)).Bytes()
	if err != nil {
		return nil, err
	}

	var snapshot models.StatsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *StatsCache) Close() error {
	return c.client.Close()
}
