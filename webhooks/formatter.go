package webhooks

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/malwarebo/statsbot/config"
)

var levelColors = map[LogLevel]int{
	LevelDebug:    0x7289DA,
	LevelInfo:     0x3498DB,
	LevelWarning:  0xF1C40F,
	LevelError:    0xE74C3C,
	LevelCritical: 0x992D22,
}

var levelEmojis = map[LogLevel]string{
	LevelDebug:    "🔍",
	LevelInfo:     "ℹ️",
	LevelWarning:  "⚠️",
	LevelError:    "❌",
	LevelCritical: "🚨",
}

// Keys never rendered as generic context fields.
var reservedContextKeys = map[string]bool{
	"stack_trace": true,
	"message":     true,
	"level":       true,
	"timestamp":   true,
	"color":       true,
	"emoji":       true,
	"template":    true,
}

// Context keys treated as user identifiers for masking purposes.
var userIDKeys = map[string]bool{
	"member_id": true,
	"user_id":   true,
	"author_id": true,
	"target_id": true,
}

const truncationMarker = "..."

const stackTraceLimit = 1000

// Credential shapes redacted unconditionally, regardless of privacy flags.
var (
	discordTokenPattern = regexp.MustCompile(`[A-Za-z0-9_-]{23,28}\.[A-Za-z0-9_-]{6,7}\.[A-Za-z0-9_-]{27,}`)
	webhookURLPattern   = regexp.MustCompile(`(https://(?:ptb\.|canary\.)?discord\.com/api/webhooks/\d+)/[\w-]+`)
	secretPairPattern   = regexp.MustCompile(`(?i)\b(token|secret|password|api[_-]?key|authorization)\s*[:=]\s*\S+`)
	authHeaderPattern   = regexp.MustCompile(`(?i)\b(Bot|Bearer)\s+[A-Za-z0-9_\-.]+`)
)

// Formatter renders events into destination-agnostic messages. Formatting is
// pure apart from the per-process masking key, which keeps masked user IDs
// stable for correlation within one run without exposing the raw value.
type Formatter struct {
	cfg            config.WebhookConfig
	maskKey        []byte
	embedTemplates map[EventKind]embedTemplate
	textTemplates  map[EventKind]textTemplate
}

func NewFormatter(cfg config.WebhookConfig) *Formatter {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		// Deterministic fallback still masks, just without per-run variance.
		key = []byte("statsbot-mask-fallback")
	}

	embeds := make(map[EventKind]embedTemplate, len(defaultEmbedTemplates))
	for kind, tpl := range defaultEmbedTemplates {
		embeds[kind] = tpl
	}
	texts := make(map[EventKind]textTemplate, len(defaultTextTemplates))
	for kind, tpl := range defaultTextTemplates {
		texts[kind] = tpl
	}

	return &Formatter{
		cfg:            cfg,
		maskKey:        key,
		embedTemplates: embeds,
		textTemplates:  texts,
	}
}

// RegisterEmbedTemplate installs a custom embed template for an event kind.
// A template with no usable title or description is rejected and the built-in
// default stays in place.
func (f *Formatter) RegisterEmbedTemplate(kind EventKind, title, description, footer string) bool {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(description) == "" {
		return false
	}
	f.embedTemplates[kind] = embedTemplate{
		Title:       ParseTemplate(title),
		Description: ParseTemplate(description),
		Footer:      footer,
	}
	return true
}

// Format renders one event. It never fails: unknown variables render empty,
// oversized output is truncated and missing templates fall back to the log
// template.
func (f *Formatter) Format(event Event) Message {
	vars := f.buildVariables(event)

	if f.cfg.UseEmbeds {
		return f.formatEmbed(event, vars)
	}
	return f.formatText(event, vars)
}

func (f *Formatter) buildVariables(event Event) map[string]string {
	vars := map[string]string{
		"level":      event.Level.String(),
		"message":    event.Message,
		"emoji":      levelEmojis[event.Level],
		"error_type": event.ErrorType,
	}

	if f.cfg.IncludeTimestamps {
		vars["timestamp"] = event.Timestamp.Format(time.RFC3339)
	}

	for key, value := range event.Context {
		vars[key] = f.contextValue(key, value)
	}

	if event.Kind == KindMemberEvent {
		eventType, _ := event.Context["event_type"].(string)
		emoji, title, _ := memberEventStyle(eventType)
		vars["emoji"] = emoji
		vars["title"] = title
	}

	return vars
}

func (f *Formatter) contextValue(key string, value interface{}) string {
	s := fmt.Sprintf("%v", value)
	if f.cfg.MaskUserIDs && userIDKeys[key] {
		return f.maskUserID(s)
	}
	return s
}

// maskUserID produces a stable one-way placeholder for a raw user ID.
func (f *Formatter) maskUserID(raw string) string {
	mac := hmac.New(sha256.New, f.maskKey)
	mac.Write([]byte(raw))
	return "user-" + hex.EncodeToString(mac.Sum(nil))[:10]
}

func (f *Formatter) formatEmbed(event Event, vars map[string]string) Message {
	tpl, ok := f.embedTemplates[event.Kind]
	if !ok {
		tpl = f.embedTemplates[KindLog]
	}

	embed := Embed{
		Title:       truncateRunes(redact(tpl.Title.Render(vars)), EmbedTitleLimit),
		Description: truncateRunes(redact(tpl.Description.Render(vars)), EmbedDescriptionLimit),
		Color:       f.colorFor(event),
	}

	if f.cfg.IncludeTimestamps {
		embed.Timestamp = event.Timestamp.Format(time.RFC3339)
	}
	if tpl.Footer != "" {
		embed.Footer = &EmbedFooter{Text: truncateRunes(tpl.Footer, EmbedFooterLimit)}
	}

	embed.Fields = f.contextFields(event, vars)

	if event.StackTrace != "" && f.cfg.IncludeStackTraces && len(embed.Fields) < EmbedFieldsLimit {
		embed.Fields = append(embed.Fields, EmbedField{
			Name:  "Stack Trace",
			Value: "```\n" + truncateRunes(redact(event.StackTrace), stackTraceLimit) + "\n```",
		})
	}

	msg := Message{Embeds: []Embed{embed}}
	if f.cfg.IncludeBotInfo {
		msg.Username = botUsername(event.Kind)
	}
	return msg
}

func (f *Formatter) formatText(event Event, vars map[string]string) Message {
	tpl, ok := f.textTemplates[event.Kind]
	if !ok {
		tpl = f.textTemplates[KindLog]
	}

	content := tpl.Body.Render(vars)

	if ctx := f.contextText(event); ctx != "" {
		content += "\n\n" + ctx
	}

	if event.StackTrace != "" && f.cfg.IncludeStackTraces {
		content += "\n\n**Stack Trace:**\n```\n" + truncateRunes(event.StackTrace, stackTraceLimit) + "\n```"
	}

	content = truncateRunes(redact(content), f.cfg.MaxMessageLength)

	msg := Message{Content: content}
	if f.cfg.IncludeBotInfo {
		msg.Username = botUsername(event.Kind)
	}
	return msg
}

func (f *Formatter) contextFields(event Event, vars map[string]string) []EmbedField {
	keys := contextKeys(event.Context)

	var fields []EmbedField
	for _, key := range keys {
		if len(fields) >= EmbedFieldsLimit-1 {
			break
		}
		fields = append(fields, EmbedField{
			Name:   truncateRunes(titleCase(key), EmbedFieldNameLimit),
			Value:  truncateRunes(redact(vars[key]), EmbedFieldValueLimit),
			Inline: true,
		})
	}
	return fields
}

func (f *Formatter) contextText(event Event) string {
	keys := contextKeys(event.Context)
	if len(keys) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("**Context:**\n")
	for _, key := range keys {
		b.WriteString(fmt.Sprintf("- **%s**: %s\n", titleCase(key), f.contextValue(key, event.Context[key])))
	}
	return strings.TrimRight(b.String(), "\n")
}

func contextKeys(context map[string]interface{}) []string {
	var keys []string
	for key := range context {
		if !reservedContextKeys[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (f *Formatter) colorFor(event Event) int {
	if event.Kind == KindMemberEvent {
		eventType, _ := event.Context["event_type"].(string)
		_, _, color := memberEventStyle(eventType)
		return color
	}
	if color, ok := levelColors[event.Level]; ok {
		return color
	}
	return 0x000000
}

func memberEventStyle(eventType string) (emoji, title string, color int) {
	switch eventType {
	case "join":
		return "📥", "Member Joined", 0x2ECC71
	case "leave":
		return "📤", "Member Left", 0xE67E22
	case "ban":
		return "🔨", "Member Banned", 0xE74C3C
	case "unban":
		return "🔓", "Member Unbanned", 0x3498DB
	default:
		return "👤", "Member " + titleCase(eventType), 0x7289DA
	}
}

func botUsername(kind EventKind) string {
	switch kind {
	case KindError:
		return "StatsBot Error Logger"
	case KindPerformance:
		return "StatsBot Performance Monitor"
	case KindMemberEvent:
		return "StatsBot Member Events"
	default:
		return "StatsBot Logger"
	}
}

// redact removes credential-shaped substrings. Not configurable.
func redact(s string) string {
	s = webhookURLPattern.ReplaceAllString(s, "$1/[REDACTED]")
	s = discordTokenPattern.ReplaceAllString(s, "[REDACTED]")
	s = secretPairPattern.ReplaceAllString(s, "$1=[REDACTED]")
	s = authHeaderPattern.ReplaceAllString(s, "$1 [REDACTED]")
	return s
}

// truncateRunes cuts text to max characters including the truncation marker,
// never splitting a multi-byte sequence.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	marker := []rune(truncationMarker)
	if max <= len(marker) {
		return string(marker[:max])
	}
	return string(runes[:max-len(marker)]) + truncationMarker
}

func titleCase(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
