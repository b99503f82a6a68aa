package webhooks

import (
	"github.com/malwarebo/statsbot/config"
)

// Router decides which configured destinations receive an event. A category
// with no URL is inert; routing to it is a no-op, never an error.
type Router struct {
	cfg config.WebhookConfig
}

func NewRouter(cfg config.WebhookConfig) *Router {
	return &Router{cfg: cfg}
}

// Route returns the categories that should receive the event:
//   - events produced by the pipeline itself are never routed (loop prevention)
//   - a destination receives the event iff its URL is configured and
//     event.Level >= the destination's minimum level
//   - performance and member events prefer their dedicated category when it
//     is configured, instead of the generic level-based fan-out
//   - critical events additionally reach every error-capable destination,
//     whatever its minimum level says
func (r *Router) Route(event Event) []config.WebhookCategory {
	if event.Component == PipelineComponent {
		return nil
	}

	var categories []config.WebhookCategory

	switch {
	case event.Kind == KindPerformance && r.cfg.PerformanceURL != "":
		categories = append(categories, config.CategoryPerformance)
	case event.Kind == KindMemberEvent && r.cfg.MemberEventsURL != "":
		categories = append(categories, config.CategoryMemberEvents)
	default:
		for _, category := range config.Categories {
			if r.cfg.URLFor(category) == "" {
				continue
			}
			if category == config.CategoryPerformance || category == config.CategoryMemberEvents {
				// Dedicated categories only take their own kinds.
				continue
			}
			if event.Level >= ParseLevel(r.cfg.MinLevelFor(category)) {
				categories = append(categories, category)
			}
		}
	}

	if event.Level >= LevelCritical && r.cfg.ErrorURL != "" {
		categories = appendUnique(categories, config.CategoryError)
	}

	return categories
}

// RouteURLs resolves routed categories to the deduplicated set of destination
// URLs, so a URL shared between categories receives exactly one delivery.
func (r *Router) RouteURLs(event Event) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, category := range r.Route(event) {
		url := r.cfg.URLFor(category)
		if url != "" && !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}
	return urls
}

func appendUnique(categories []config.WebhookCategory, category config.WebhookCategory) []config.WebhookCategory {
	for _, c := range categories {
		if c == category {
			return categories
		}
	}
	return append(categories, category)
}
