package webhooks

import (
	"strings"
	"testing"

	"github.com/malwarebo/statsbot/config"
)

func testWebhookConfig() config.WebhookConfig {
	return config.WebhookConfig{
		UseEmbeds:          true,
		IncludeTimestamps:  true,
		IncludeBotInfo:     true,
		IncludeStackTraces: true,
		MaxMessageLength:   2000,
	}
}

func TestFormatter_FormatEmbed_LevelStyling(t *testing.T) {
	f := NewFormatter(testWebhookConfig())

	tests := []struct {
		level LogLevel
		color int
		emoji string
	}{
		{LevelDebug, 0x7289DA, "🔍"},
		{LevelInfo, 0x3498DB, "ℹ️"},
		{LevelWarning, 0xF1C40F, "⚠️"},
		{LevelError, 0xE74C3C, "❌"},
		{LevelCritical, 0x992D22, "🚨"},
	}

	for _, tt := range tests {
		msg := f.Format(NewEvent(KindLog, tt.level, "something happened", nil))
		if len(msg.Embeds) != 1 {
			t.Fatalf("len(Embeds) = %d, want 1", len(msg.Embeds))
		}
		embed := msg.Embeds[0]
		if embed.Color != tt.color {
			t.Errorf("level %s: Color = %#x, want %#x", tt.level, embed.Color, tt.color)
		}
		if !strings.Contains(embed.Title, tt.emoji) {
			t.Errorf("level %s: Title = %q, want emoji %q", tt.level, embed.Title, tt.emoji)
		}
		if embed.Description != "something happened" {
			t.Errorf("Description = %q, want %q", embed.Description, "something happened")
		}
	}
}

func TestFormatter_FormatEmbed_Footer(t *testing.T) {
	f := NewFormatter(testWebhookConfig())

	tests := []struct {
		kind EventKind
		want string
	}{
		{KindLog, "StatsBot Logger"},
		{KindError, "StatsBot Error Monitor"},
		{KindPerformance, "StatsBot Performance Monitor"},
		{KindMemberEvent, "StatsBot Member Events"},
	}

	for _, tt := range tests {
		msg := f.Format(NewEvent(tt.kind, LevelInfo, "msg", nil))
		if msg.Embeds[0].Footer == nil || msg.Embeds[0].Footer.Text != tt.want {
			t.Errorf("kind %s: footer = %v, want %q", tt.kind, msg.Embeds[0].Footer, tt.want)
		}
	}
}

func TestFormatter_MemberEventStyling(t *testing.T) {
	f := NewFormatter(testWebhookConfig())

	tests := []struct {
		eventType string
		emoji     string
		color     int
	}{
		{"join", "📥", 0x2ECC71},
		{"leave", "📤", 0xE67E22},
		{"ban", "🔨", 0xE74C3C},
		{"unban", "🔓", 0x3498DB},
	}

	for _, tt := range tests {
		event := NewEvent(KindMemberEvent, LevelInfo, "member event", map[string]interface{}{
			"event_type": tt.eventType,
			"member_id":  "123456789",
			"username":   "someone",
		})
		msg := f.Format(event)
		embed := msg.Embeds[0]
		if embed.Color != tt.color {
			t.Errorf("%s: Color = %#x, want %#x", tt.eventType, embed.Color, tt.color)
		}
		if !strings.Contains(embed.Title, tt.emoji) {
			t.Errorf("%s: Title = %q, want emoji %q", tt.eventType, embed.Title, tt.emoji)
		}
	}
}

func TestFormatter_MaskUserIDs(t *testing.T) {
	cfg := testWebhookConfig()
	cfg.MaskUserIDs = true
	f := NewFormatter(cfg)

	first := f.maskUserID("123456789012345678")
	second := f.maskUserID("123456789012345678")
	other := f.maskUserID("987654321098765432")

	if first != second {
		t.Errorf("mask not stable: %q != %q", first, second)
	}
	if first == other {
		t.Error("distinct IDs produced the same mask")
	}
	if !strings.HasPrefix(first, "user-") {
		t.Errorf("mask = %q, want user- prefix", first)
	}
	if len(first) != len("user-")+10 {
		t.Errorf("len(mask) = %d, want %d", len(first), len("user-")+10)
	}
	if strings.Contains(first, "123456789012345678") {
		t.Error("mask leaks the raw ID")
	}
}

func TestFormatter_MaskingDisabledPassesThrough(t *testing.T) {
	f := NewFormatter(testWebhookConfig())

	event := NewEvent(KindMemberEvent, LevelInfo, "member event", map[string]interface{}{
		"event_type": "join",
		"member_id":  "123456789012345678",
		"username":   "someone",
	})
	msg := f.Format(event)

	if !strings.Contains(msg.Embeds[0].Description, "123456789012345678") {
		t.Errorf("Description = %q, want raw ID when masking disabled", msg.Embeds[0].Description)
	}
}

func TestFormatter_MaskedIDInRenderedOutput(t *testing.T) {
	cfg := testWebhookConfig()
	cfg.MaskUserIDs = true
	f := NewFormatter(cfg)

	event := NewEvent(KindMemberEvent, LevelInfo, "member event", map[string]interface{}{
		"event_type": "join",
		"member_id":  "123456789012345678",
		"username":   "someone",
	})
	msg := f.Format(event)

	desc := msg.Embeds[0].Description
	if strings.Contains(desc, "123456789012345678") {
		t.Errorf("Description = %q, raw ID leaked despite masking", desc)
	}
	if !strings.Contains(desc, "user-") {
		t.Errorf("Description = %q, want masked placeholder", desc)
	}
}

func TestFormatter_TextTruncation(t *testing.T) {
	cfg := testWebhookConfig()
	cfg.UseEmbeds = false
	cfg.MaxMessageLength = 100
	f := NewFormatter(cfg)

	event := NewEvent(KindLog, LevelInfo, strings.Repeat("a", 500), nil)
	msg := f.Format(event)

	if got := len([]rune(msg.Content)); got > 100 {
		t.Errorf("len(Content) = %d, want <= 100", got)
	}
	if !strings.HasSuffix(msg.Content, "...") {
		t.Errorf("Content = %q, want truncation marker suffix", msg.Content[len(msg.Content)-10:])
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"x", 5, "x"},
		{"5", 2000, "5"},
		{"", 10, ""},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 2, ".."},
	}

	for _, tt := range tests {
		got := truncateRunes(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
		if len([]rune(got)) > tt.max {
			t.Errorf("truncateRunes(%q, %d) length = %d, exceeds max", tt.in, tt.max, len([]rune(got)))
		}
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		leak string
	}{
		{
			"webhook token",
			"posting to https://discord.com/api/webhooks/123456789/secret-token_value failed",
			"secret-token_value",
		},
		{
			"key value pair",
			"config had token=abc123xyz in it",
			"abc123xyz",
		},
		{
			"auth header",
			"Authorization: Bot MTIzNDU2Nzg5MDEyMzQ1Njc4.GabcdE.verylongtokenvaluegoeshere123456",
			"MTIzNDU2Nzg5MDEyMzQ1Njc4",
		},
		{
			"password pair",
			"password: hunter2!",
			"hunter2",
		},
	}

	for _, tt := range tests {
		got := redact(tt.in)
		if strings.Contains(got, tt.leak) {
			t.Errorf("%s: redact(%q) = %q, still contains %q", tt.name, tt.in, got, tt.leak)
		}
		if !strings.Contains(got, "[REDACTED]") {
			t.Errorf("%s: redact(%q) = %q, want [REDACTED] marker", tt.name, tt.in, got)
		}
	}
}

func TestFormatter_StackTraceCapped(t *testing.T) {
	f := NewFormatter(testWebhookConfig())

	event := NewEvent(KindError, LevelError, "boom", nil)
	event.StackTrace = strings.Repeat("goroutine 1 [running]:\n", 200)
	msg := f.Format(event)

	var found bool
	for _, field := range msg.Embeds[0].Fields {
		if field.Name == "Stack Trace" {
			found = true
			if got := len([]rune(field.Value)); got > stackTraceLimit+len("```\n\n```") {
				t.Errorf("stack trace field length = %d, want capped near %d", got, stackTraceLimit)
			}
		}
	}
	if !found {
		t.Error("stack trace field missing")
	}
}

func TestFormatter_RegisterEmbedTemplate(t *testing.T) {
	f := NewFormatter(testWebhookConfig())

	if f.RegisterEmbedTemplate(KindLog, "", "", "footer") {
		t.Error("RegisterEmbedTemplate() accepted an empty template")
	}

	if !f.RegisterEmbedTemplate(KindLog, "custom ${level}", "${message}", "Custom Footer") {
		t.Error("RegisterEmbedTemplate() rejected a valid template")
	}

	msg := f.Format(NewEvent(KindLog, LevelInfo, "hello", nil))
	if !strings.Contains(msg.Embeds[0].Title, "custom") {
		t.Errorf("Title = %q, want custom template applied", msg.Embeds[0].Title)
	}
}

func TestFormatter_ContextFieldsSortedAndTitled(t *testing.T) {
	f := NewFormatter(testWebhookConfig())

	event := NewEvent(KindLog, LevelInfo, "msg", map[string]interface{}{
		"zebra_count": 1,
		"apple_count": 2,
	})
	msg := f.Format(event)

	fields := msg.Embeds[0].Fields
	if len(fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(fields))
	}
	if fields[0].Name != "Apple Count" || fields[1].Name != "Zebra Count" {
		t.Errorf("field names = [%q, %q], want sorted title case", fields[0].Name, fields[1].Name)
	}
}
