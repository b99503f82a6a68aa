package config

import (
	"fmt"
	"os"
	"regexp"
	"time"
)

// WebhookCategory is a logical grouping of events used for routing.
type WebhookCategory string

const (
	CategoryError        WebhookCategory = "error"
	CategoryInfo         WebhookCategory = "info"
	CategoryPerformance  WebhookCategory = "performance"
	CategoryMemberEvents WebhookCategory = "member_events"
)

var Categories = []WebhookCategory{
	CategoryError,
	CategoryInfo,
	CategoryPerformance,
	CategoryMemberEvents,
}

// WebhookConfig holds the immutable settings for the webhook logging
// pipeline. It is built once at startup; reloading means rebuilding the whole
// struct, never mutating it under concurrent readers.
type WebhookConfig struct {
	ErrorURL        string `json:"error_url"`
	InfoURL         string `json:"info_url"`
	PerformanceURL  string `json:"performance_url"`
	MemberEventsURL string `json:"member_events_url"`

	MaxRequestsPerMinute int           `json:"max_requests_per_minute"`
	BatchSize            int           `json:"batch_size"`
	BatchTimeout         time.Duration `json:"batch_timeout"`
	QueueSize            int           `json:"queue_size"`

	UseEmbeds         bool `json:"use_embeds"`
	IncludeTimestamps bool `json:"include_timestamps"`
	IncludeBotInfo    bool `json:"include_bot_info"`

	// Minimum severity each category accepts, as level names. Setting a
	// category to "debug" is the explicit opt-in for debug events.
	ErrorMinLevel        string `json:"error_min_level"`
	InfoMinLevel         string `json:"info_min_level"`
	PerformanceMinLevel  string `json:"performance_min_level"`
	MemberEventsMinLevel string `json:"member_events_min_level"`

	MaskUserIDs        bool `json:"mask_user_ids"`
	IncludeStackTraces bool `json:"include_stack_traces"`
	MaxMessageLength   int  `json:"max_message_length"`

	FailureThreshold int           `json:"failure_threshold"`
	Cooldown         time.Duration `json:"cooldown"`
	MaxAttempts      int           `json:"max_attempts"`
	BaseDelay        time.Duration `json:"base_delay"`
	MaxDelay         time.Duration `json:"max_delay"`
	ShutdownTimeout  time.Duration `json:"shutdown_timeout"`
}

// Discord webhook URL shape, including the ptb/canary hosts.
var webhookURLPattern = regexp.MustCompile(`^https://(?:ptb\.|canary\.)?discord\.com/api/webhooks/\d+/[\w-]+$`)

func IsValidWebhookURL(url string) bool {
	return webhookURLPattern.MatchString(url)
}

// LoadWebhookConfig reads webhook settings from environment variables. A
// malformed URL disables only its category and out-of-range numerics fall
// back to defaults; warnings are returned by Validate, loading never fails.
func LoadWebhookConfig() WebhookConfig {
	cfg := WebhookConfig{
		ErrorURL:        os.Getenv("WEBHOOK_ERROR_URL"),
		InfoURL:         os.Getenv("WEBHOOK_INFO_URL"),
		PerformanceURL:  os.Getenv("WEBHOOK_PERFORMANCE_URL"),
		MemberEventsURL: os.Getenv("WEBHOOK_MEMBER_EVENTS_URL"),

		MaxRequestsPerMinute: envInt("WEBHOOK_MAX_REQUESTS_PER_MINUTE"),
		BatchSize:            envInt("WEBHOOK_BATCH_SIZE"),
		BatchTimeout:         envSeconds("WEBHOOK_BATCH_TIMEOUT"),
		QueueSize:            envInt("WEBHOOK_QUEUE_SIZE"),

		UseEmbeds:         envBool("WEBHOOK_USE_EMBEDS", true),
		IncludeTimestamps: envBool("WEBHOOK_INCLUDE_TIMESTAMPS", true),
		IncludeBotInfo:    envBool("WEBHOOK_INCLUDE_BOT_INFO", true),

		ErrorMinLevel:        os.Getenv("WEBHOOK_ERROR_MIN_LEVEL"),
		InfoMinLevel:         os.Getenv("WEBHOOK_INFO_MIN_LEVEL"),
		PerformanceMinLevel:  os.Getenv("WEBHOOK_PERFORMANCE_MIN_LEVEL"),
		MemberEventsMinLevel: os.Getenv("WEBHOOK_MEMBER_EVENTS_MIN_LEVEL"),

		MaskUserIDs:        envBool("WEBHOOK_MASK_USER_IDS", false),
		IncludeStackTraces: envBool("WEBHOOK_INCLUDE_STACK_TRACES", true),
		MaxMessageLength:   envInt("WEBHOOK_MAX_MESSAGE_LENGTH"),
	}

	cfg.applyDefaults()
	return cfg
}

func (c *WebhookConfig) applyDefaults() {
	if c.MaxRequestsPerMinute <= 0 {
		c.MaxRequestsPerMinute = 30
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.MaxMessageLength <= 0 || c.MaxMessageLength > 2000 {
		c.MaxMessageLength = 2000
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.ErrorMinLevel == "" {
		c.ErrorMinLevel = "warning"
	}
	if c.InfoMinLevel == "" {
		c.InfoMinLevel = "info"
	}
	if c.PerformanceMinLevel == "" {
		c.PerformanceMinLevel = "warning"
	}
	if c.MemberEventsMinLevel == "" {
		c.MemberEventsMinLevel = "info"
	}
}

// MinLevelFor returns the configured minimum level name for a category.
func (c *WebhookConfig) MinLevelFor(category WebhookCategory) string {
	switch category {
	case CategoryError:
		return c.ErrorMinLevel
	case CategoryInfo:
		return c.InfoMinLevel
	case CategoryPerformance:
		return c.PerformanceMinLevel
	case CategoryMemberEvents:
		return c.MemberEventsMinLevel
	}
	return "info"
}

// Validate checks every configured category URL and disables the malformed
// ones. It returns human-readable warnings; an empty config (no URLs at all)
// is valid and simply leaves the pipeline inert.
func (c *WebhookConfig) Validate() []string {
	var warnings []string

	check := func(name string, url *string) {
		if *url != "" && !IsValidWebhookURL(*url) {
			warnings = append(warnings, fmt.Sprintf("invalid webhook URL for %s, category disabled", name))
			*url = ""
		}
	}

	check("error", &c.ErrorURL)
	check("info", &c.InfoURL)
	check("performance", &c.PerformanceURL)
	check("member_events", &c.MemberEventsURL)

	if !c.Enabled() {
		warnings = append(warnings, "no webhook URLs configured, webhook logging disabled")
	}

	return warnings
}

// URLFor returns the configured URL for a category; empty means the category
// is inert and routing to it is a no-op.
func (c *WebhookConfig) URLFor(category WebhookCategory) string {
	switch category {
	case CategoryError:
		return c.ErrorURL
	case CategoryInfo:
		return c.InfoURL
	case CategoryPerformance:
		return c.PerformanceURL
	case CategoryMemberEvents:
		return c.MemberEventsURL
	}
	return ""
}

// URLs returns the deduplicated set of configured destination URLs.
func (c *WebhookConfig) URLs() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, category := range Categories {
		url := c.URLFor(category)
		if url != "" && !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}
	return urls
}

func (c *WebhookConfig) Enabled() bool {
	return len(c.URLs()) > 0
}
