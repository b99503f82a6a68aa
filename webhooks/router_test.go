package webhooks

import (
	"reflect"
	"testing"

	"github.com/malwarebo/statsbot/config"
)

func routerConfig() config.WebhookConfig {
	return config.WebhookConfig{
		ErrorURL:        "https://discord.com/api/webhooks/1/error-token",
		InfoURL:         "https://discord.com/api/webhooks/2/info-token",
		PerformanceURL:  "https://discord.com/api/webhooks/3/perf-token",
		MemberEventsURL: "https://discord.com/api/webhooks/4/member-token",

		ErrorMinLevel:        "warning",
		InfoMinLevel:         "info",
		PerformanceMinLevel:  "warning",
		MemberEventsMinLevel: "info",
	}
}

func TestRouter_LoopPrevention(t *testing.T) {
	r := NewRouter(routerConfig())

	event := NewEvent(KindError, LevelCritical, "delivery failed", map[string]interface{}{
		"component": PipelineComponent,
	})

	if got := r.Route(event); got != nil {
		t.Errorf("Route() = %v, want nil for pipeline-tagged event", got)
	}
}

func TestRouter_InfoEventReachesInfoOnly(t *testing.T) {
	r := NewRouter(routerConfig())

	got := r.Route(NewEvent(KindLog, LevelInfo, "hello", nil))
	want := []config.WebhookCategory{config.CategoryInfo}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route() = %v, want %v", got, want)
	}
}

func TestRouter_WarningReachesErrorAndInfo(t *testing.T) {
	r := NewRouter(routerConfig())

	got := r.Route(NewEvent(KindLog, LevelWarning, "watch out", nil))
	want := []config.WebhookCategory{config.CategoryError, config.CategoryInfo}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route() = %v, want %v", got, want)
	}
}

func TestRouter_DebugDroppedByDefault(t *testing.T) {
	r := NewRouter(routerConfig())

	if got := r.Route(NewEvent(KindLog, LevelDebug, "noise", nil)); len(got) != 0 {
		t.Errorf("Route() = %v, want no destinations for debug", got)
	}
}

func TestRouter_DebugOptIn(t *testing.T) {
	cfg := routerConfig()
	cfg.InfoMinLevel = "debug"
	r := NewRouter(cfg)

	got := r.Route(NewEvent(KindLog, LevelDebug, "noise", nil))
	want := []config.WebhookCategory{config.CategoryInfo}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route() = %v, want %v", got, want)
	}
}

func TestRouter_PerformancePrefersDedicatedCategory(t *testing.T) {
	r := NewRouter(routerConfig())

	got := r.Route(NewEvent(KindPerformance, LevelWarning, "slow", nil))
	want := []config.WebhookCategory{config.CategoryPerformance}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route() = %v, want %v", got, want)
	}
}

func TestRouter_PerformanceFallsBackWithoutDedicatedURL(t *testing.T) {
	cfg := routerConfig()
	cfg.PerformanceURL = ""
	r := NewRouter(cfg)

	got := r.Route(NewEvent(KindPerformance, LevelError, "slow", nil))
	want := []config.WebhookCategory{config.CategoryError, config.CategoryInfo}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route() = %v, want %v", got, want)
	}
}

func TestRouter_MemberEventPrefersDedicatedCategory(t *testing.T) {
	r := NewRouter(routerConfig())

	event := NewEvent(KindMemberEvent, LevelInfo, "joined", map[string]interface{}{
		"event_type": "join",
	})
	got := r.Route(event)
	want := []config.WebhookCategory{config.CategoryMemberEvents}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route() = %v, want %v", got, want)
	}
}

func TestRouter_CriticalFansOutToError(t *testing.T) {
	r := NewRouter(routerConfig())

	// Critical performance event reaches the dedicated category and the
	// error destination.
	got := r.Route(NewEvent(KindPerformance, LevelCritical, "very slow", nil))
	want := []config.WebhookCategory{config.CategoryPerformance, config.CategoryError}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route() = %v, want %v", got, want)
	}
}

func TestRouter_CriticalDoesNotDuplicateError(t *testing.T) {
	r := NewRouter(routerConfig())

	got := r.Route(NewEvent(KindLog, LevelCritical, "broken", nil))
	want := []config.WebhookCategory{config.CategoryError, config.CategoryInfo}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Route() = %v, want %v", got, want)
	}
}

func TestRouter_NoURLsRoutesNowhere(t *testing.T) {
	r := NewRouter(config.WebhookConfig{
		ErrorMinLevel: "warning",
		InfoMinLevel:  "info",
	})

	if got := r.Route(NewEvent(KindLog, LevelCritical, "broken", nil)); len(got) != 0 {
		t.Errorf("Route() = %v, want empty for unconfigured pipeline", got)
	}
}

func TestRouter_RouteURLsDeduplicatesSharedURL(t *testing.T) {
	cfg := routerConfig()
	cfg.InfoURL = cfg.ErrorURL
	r := NewRouter(cfg)

	got := r.RouteURLs(NewEvent(KindLog, LevelWarning, "watch out", nil))
	if len(got) != 1 {
		t.Errorf("RouteURLs() = %v, want exactly one URL for shared destination", got)
	}
}
