package webhooks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/malwarebo/statsbot/config"
	"github.com/malwarebo/statsbot/utils"
)

// Manager is the single integration point between the bot and the webhook
// pipeline. Every Send method is fire-and-forget: it renders, routes and
// enqueues without blocking on network I/O, and is a no-op until Start is
// called. Pipeline failures are recovered and logged locally only.
type Manager struct {
	cfg       config.WebhookConfig
	formatter *Formatter
	router    *Router
	logger    *utils.Logger

	mu           sync.Mutex
	destinations map[string]*destination
	started      bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type DestinationStatus struct {
	URL        string `json:"url"`
	QueueDepth int    `json:"queue_depth"`
	Circuit    string `json:"circuit"`
	Delivered  int64  `json:"delivered"`
	Failed     int64  `json:"failed"`
	Dropped    int64  `json:"dropped"`
}

func NewManager(cfg config.WebhookConfig, logger *utils.Logger) *Manager {
	m := &Manager{
		cfg:          cfg,
		formatter:    NewFormatter(cfg),
		router:       NewRouter(cfg),
		logger:       logger,
		destinations: make(map[string]*destination),
	}

	for _, url := range cfg.URLs() {
		m.destinations[url] = newDestination(url, cfg, logger)
	}

	return m
}

// Start launches one flush loop per configured destination. Calling it twice
// is harmless: the second call finds the manager started and returns.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	for _, dest := range m.destinations {
		m.wg.Add(1)
		go func(d *destination) {
			defer m.wg.Done()
			d.run(ctx)
		}(dest)
	}

	m.started = true
	m.logger.Info(context.Background(), "Webhook manager started", map[string]interface{}{
		"component":    PipelineComponent,
		"destinations": len(m.destinations),
	})
}

// Stop cancels the flush loops, which drain their queues best-effort within
// the shutdown timeout; whatever cannot be flushed in time is written to the
// local fallback log.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.logger.Info(context.Background(), "Webhook manager stopped", map[string]interface{}{
		"component": PipelineComponent,
	})
}

func (m *Manager) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// SendLog routes a log message to the destinations configured for its level.
func (m *Manager) SendLog(level LogLevel, message string, context map[string]interface{}) {
	m.dispatch(NewEvent(KindLog, level, message, context))
}

// SendError routes an error with the caller's stack to the error
// destinations.
func (m *Manager) SendError(err error, context map[string]interface{}) {
	if err == nil {
		return
	}

	event := NewEvent(KindError, LevelError, err.Error(), context)
	event.ErrorType = fmt.Sprintf("%T", err)
	event.StackTrace = string(debug.Stack())
	m.dispatch(event)
}

// SendPerformanceAlert reports a metric that crossed its threshold. Severity
// scales with how far over threshold the value is.
func (m *Manager) SendPerformanceAlert(metric string, value, threshold float64, context map[string]interface{}) {
	if threshold == 0 {
		return
	}

	ratio := value / threshold
	level := performanceLevel(ratio)

	ctx := cloneContext(context)
	ctx["metric_name"] = metric
	ctx["value"] = fmt.Sprintf("%.2f", value)
	ctx["threshold"] = fmt.Sprintf("%.2f", threshold)
	ctx["ratio"] = fmt.Sprintf("%.2f", ratio)

	message := fmt.Sprintf("Performance metric %s has exceeded threshold", metric)
	m.dispatch(NewEvent(KindPerformance, level, message, ctx))
}

// performanceLevel maps how far a metric sits above its threshold to event
// severity: 2x is critical, 1.5x is error, anything over is a warning.
func performanceLevel(ratio float64) LogLevel {
	switch {
	case ratio >= 2.0:
		return LevelCritical
	case ratio >= 1.5:
		return LevelError
	default:
		return LevelWarning
	}
}

// SendMemberEvent reports a member join/leave/ban/unban.
func (m *Manager) SendMemberEvent(eventType, memberID, username string, context map[string]interface{}) {
	ctx := cloneContext(context)
	ctx["event_type"] = eventType
	ctx["member_id"] = memberID
	ctx["username"] = username

	m.dispatch(NewEvent(KindMemberEvent, LevelInfo, username, ctx))
}

// Status reports per-destination queue depth, circuit state and counters.
// URLs are redacted so the status endpoint cannot leak webhook tokens.
func (m *Manager) Status() []DestinationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]DestinationStatus, 0, len(m.destinations))
	for url, dest := range m.destinations {
		delivered, failed, dropped := dest.stats()
		statuses = append(statuses, DestinationStatus{
			URL:        redact(url),
			QueueDepth: dest.queue.len(),
			Circuit:    dest.client.State().String(),
			Delivered:  delivered,
			Failed:     failed,
			Dropped:    dropped,
		})
	}
	return statuses
}

// dispatch runs the Filter -> Format -> Enqueue path. Any panic inside the
// pipeline is recovered and logged locally so one bad event can never take
// down the caller or poison subsequent events.
func (m *Manager) dispatch(event Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(context.Background(), "Webhook pipeline error", map[string]interface{}{
				"component": PipelineComponent,
				"panic":     fmt.Sprintf("%v", r),
			})
		}
	}()

	if !m.isStarted() {
		m.logger.Debug(context.Background(), "Webhook manager not started, dropping event", map[string]interface{}{
			"component": PipelineComponent,
			"event":     event.Message,
		})
		return
	}

	urls := m.router.RouteURLs(event)
	if len(urls) == 0 {
		return
	}

	msg := m.formatter.Format(event)
	priority := event.Level >= LevelCritical

	for _, url := range urls {
		dest, ok := m.destinations[url]
		if !ok {
			continue
		}
		dest.enqueue(&Task{Message: msg, URL: url, Priority: priority})
	}
}

func cloneContext(context map[string]interface{}) map[string]interface{} {
	cloned := make(map[string]interface{}, len(context)+4)
	for k, v := range context {
		cloned[k] = v
	}
	return cloned
}
