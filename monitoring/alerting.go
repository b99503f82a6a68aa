package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/malwarebo/statsbot/config"
	"github.com/malwarebo/statsbot/utils"
)

// AlertSink receives threshold breaches. Satisfied by the webhook manager.
type AlertSink interface {
	SendPerformanceAlert(metric string, value, threshold float64, context map[string]interface{})
}

// Rule compares a sample against a threshold. Extract pulls the observed
// value so one code path serves memory, goroutines and anything added later.
type Rule struct {
	Name      string
	Threshold float64
	Cooldown  time.Duration
	Extract   func(sample RuntimeSample) float64

	lastFired time.Time
}

// Monitor samples the runtime on an interval and forwards breaches to the
// alert sink, rate-limited per rule by its cooldown.
type Monitor struct {
	cfg     config.MonitoringConfig
	sampler *Sampler
	sink    AlertSink
	logger  *utils.Logger

	mu      sync.Mutex
	rules   []*Rule
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewMonitor(cfg config.MonitoringConfig, sampler *Sampler, sink AlertSink) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		sampler: sampler,
		sink:    sink,
		logger:  utils.NewLogger("monitoring"),
	}
	m.rules = defaultRules(cfg)
	return m
}

func defaultRules(cfg config.MonitoringConfig) []*Rule {
	memory := func(sample RuntimeSample) float64 { return sample.MemoryPercent }
	return []*Rule{
		{
			Name:      "memory_usage",
			Threshold: cfg.MemoryWarningThreshold,
			Cooldown:  5 * time.Minute,
			Extract:   memory,
		},
		{
			Name:      "memory_usage_critical",
			Threshold: cfg.MemoryCriticalThreshold,
			Cooldown:  time.Minute,
			Extract:   memory,
		},
		{
			Name:      "goroutines",
			Threshold: float64(cfg.GoroutineThreshold),
			Cooldown:  5 * time.Minute,
			Extract:   func(sample RuntimeSample) float64 { return float64(sample.Goroutines) },
		},
	}
}

func (m *Monitor) AddRule(rule *Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || !m.cfg.Enabled {
		return
	}
	m.started = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.run(ctx)
}

func (m *Monitor) Stop() {
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
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(m.sampler.Sample())
		}
	}
}

// Check evaluates every rule against one sample. Exposed so tests can drive
// it without the ticker.
func (m *Monitor) Check(sample RuntimeSample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, rule := range m.rules {
		if rule.Threshold <= 0 {
			continue
		}
		value := rule.Extract(sample)
		if value < rule.Threshold {
			continue
		}
		if now.Sub(rule.lastFired) < rule.Cooldown {
			continue
		}
		rule.lastFired = now

		m.logger.Warn(context.Background(), "Performance threshold exceeded", map[string]interface{}{
			"metric":    rule.Name,
			"value":     value,
			"threshold": rule.Threshold,
		})
		m.sink.SendPerformanceAlert(rule.Name, value, rule.Threshold, map[string]interface{}{
			"goroutines": sample.Goroutines,
			"heap_alloc": sample.HeapAlloc,
			"uptime":     sample.Uptime.Round(time.Second).String(),
		})
	}
}
