package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Environment string           `json:"environment"`
	Bot         BotConfig        `json:"bot"`
	Webhooks    WebhookConfig    `json:"webhooks"`
	Database    DatabaseConfig   `json:"database"`
	Redis       RedisConfig      `json:"redis"`
	Server      ServerConfig     `json:"server"`
	Monitoring  MonitoringConfig `json:"monitoring"`
}

type BotConfig struct {
	Token                string        `json:"token"`
	GuildID              string        `json:"guild_id"`
	MemberCountChannelID string        `json:"member_count_channel_id"`
	OnlineCountChannelID string        `json:"online_count_channel_id"`
	BanCountChannelID    string        `json:"ban_count_channel_id"`
	HeartbeatChannelID   string        `json:"heartbeat_channel_id"`
	StatsChannelID       string        `json:"stats_channel_id"`
	UpdateInterval       time.Duration `json:"update_interval"`
	HeartbeatInterval    time.Duration `json:"heartbeat_interval"`
}

type DatabaseConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	User         string        `json:"user"`
	Password     string        `json:"password"`
	DBName       string        `json:"dbname"`
	SSLMode      string        `json:"sslmode"`
	MaxOpenConns int           `json:"max_open_conns"`
	MaxIdleConns int           `json:"max_idle_conns"`
	MaxLifetime  time.Duration `json:"max_lifetime"`
}

type RedisConfig struct {
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	TTL      time.Duration `json:"ttl"`
}

type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

type MonitoringConfig struct {
	Enabled                 bool          `json:"enabled"`
	SampleInterval          time.Duration `json:"sample_interval"`
	MemoryWarningThreshold  float64       `json:"memory_warning_threshold"`
	MemoryCriticalThreshold float64       `json:"memory_critical_threshold"`
	GoroutineThreshold      int           `json:"goroutine_threshold"`
	LogLevel                string        `json:"log_level"`
}

func LoadConfig() (*Config, error) {
	config := &Config{}
	config.Monitoring.Enabled = true

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	config.Environment = env

	configDir, err := filepath.Abs("config")
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(configDir, "config.json")

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}

		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %v", err)
		}
	}

	config.loadFromEnv()
	config.Webhooks = LoadWebhookConfig()

	config.setDefaults()

	return config, nil
}

func (c *Config) loadFromEnv() {
	if token := os.Getenv("BOT_TOKEN"); token != "" {
		c.Bot.Token = token
	}
	if guild := os.Getenv("GUILD_ID"); guild != "" {
		c.Bot.GuildID = guild
	}
	if id := os.Getenv("MEMBER_COUNT_CHANNEL_ID"); id != "" {
		c.Bot.MemberCountChannelID = id
	}
	if id := os.Getenv("ONLINE_COUNT_CHANNEL_ID"); id != "" {
		c.Bot.OnlineCountChannelID = id
	}
	if id := os.Getenv("BAN_COUNT_CHANNEL_ID"); id != "" {
		c.Bot.BanCountChannelID = id
	}
	if id := os.Getenv("HEARTBEAT_CHANNEL_ID"); id != "" {
		c.Bot.HeartbeatChannelID = id
	}
	if id := os.Getenv("STATS_CHANNEL_ID"); id != "" {
		c.Bot.StatsChannelID = id
	}
	if v := envSeconds("UPDATE_INTERVAL"); v > 0 {
		c.Bot.UpdateInterval = v
	}
	if v := envSeconds("HEARTBEAT_INTERVAL"); v > 0 {
		c.Bot.HeartbeatInterval = v
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		c.Database.Host = host
	}
	if port := envInt("DB_PORT"); port > 0 {
		c.Database.Port = port
	}
	if user := os.Getenv("DB_USER"); user != "" {
		c.Database.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		c.Database.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		c.Database.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		c.Database.SSLMode = sslmode
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		c.Redis.Host = host
	}
	if port := envInt("REDIS_PORT"); port > 0 {
		c.Redis.Port = port
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}

	if serverPort := os.Getenv("SERVER_PORT"); serverPort != "" {
		c.Server.Port = serverPort
	}

	if v := os.Getenv("MEMORY_WARNING_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Monitoring.MemoryWarningThreshold = f
		}
	}
	if v := os.Getenv("MEMORY_CRITICAL_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Monitoring.MemoryCriticalThreshold = f
		}
	}
	if v := os.Getenv("MONITORING_ENABLED"); v != "" {
		c.Monitoring.Enabled = envBool("MONITORING_ENABLED", true)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Monitoring.LogLevel = level
	}
}

func (c *Config) setDefaults() {
	if c.Bot.UpdateInterval == 0 {
		c.Bot.UpdateInterval = 300 * time.Second
	}
	if c.Bot.HeartbeatInterval == 0 {
		c.Bot.HeartbeatInterval = 3600 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = time.Hour
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Monitoring.SampleInterval == 0 {
		c.Monitoring.SampleInterval = 30 * time.Second
	}
	if c.Monitoring.MemoryWarningThreshold == 0 {
		c.Monitoring.MemoryWarningThreshold = 80.0
	}
	if c.Monitoring.MemoryCriticalThreshold == 0 {
		c.Monitoring.MemoryCriticalThreshold = 95.0
	}
	if c.Monitoring.GoroutineThreshold == 0 {
		c.Monitoring.GoroutineThreshold = 500
	}
	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if c.Bot.GuildID == "" {
		return fmt.Errorf("guild ID is required")
	}
	if c.Bot.MemberCountChannelID == "" {
		return fmt.Errorf("member count channel ID is required")
	}
	if c.Bot.OnlineCountChannelID == "" {
		return fmt.Errorf("online count channel ID is required")
	}
	if c.Bot.BanCountChannelID == "" {
		return fmt.Errorf("ban count channel ID is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database port is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envSeconds(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch v {
	case "true", "yes", "1", "y", "t", "TRUE", "True":
		return true
	case "false", "no", "0", "n", "f", "FALSE", "False":
		return false
	}
	return fallback
}
