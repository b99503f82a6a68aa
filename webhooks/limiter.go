package webhooks

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/malwarebo/statsbot/config"
	"github.com/malwarebo/statsbot/utils"
)

// queuedTask records when a task entered the queue so the batch timeout is
// measured from the true enqueue time, not from the last drain.
type queuedTask struct {
	task *Task
	at   time.Time
}

// taskQueue is a bounded FIFO with priority promotion. Priority tasks are
// kept ahead of non-priority tasks; when the queue is full the oldest
// non-priority task is evicted first, the oldest priority task only as a last
// resort.
type taskQueue struct {
	mu       sync.Mutex
	tasks    []queuedTask
	priority int // number of leading priority tasks
	capacity int
	wake     chan struct{}
}

func newTaskQueue(capacity int) *taskQueue {
	return &taskQueue{
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// push enqueues a task and returns the task that had to be dropped to make
// room, if any.
func (q *taskQueue) push(task *Task) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var dropped *Task
	if len(q.tasks) >= q.capacity {
		if q.priority < len(q.tasks) {
			// Oldest non-priority task sits right after the priority block.
			dropped = q.tasks[q.priority].task
			q.tasks = append(q.tasks[:q.priority], q.tasks[q.priority+1:]...)
		} else {
			dropped = q.tasks[0].task
			q.tasks = q.tasks[1:]
			q.priority--
		}
	}

	entry := queuedTask{task: task, at: time.Now()}
	if task.Priority {
		q.tasks = append(q.tasks[:q.priority], append([]queuedTask{entry}, q.tasks[q.priority:]...)...)
		q.priority++
	} else {
		q.tasks = append(q.tasks, entry)
	}

	return dropped
}

// drain removes and returns up to n tasks in delivery order.
func (q *taskQueue) drain(n int) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || n > len(q.tasks) {
		n = len(q.tasks)
	}
	batch := make([]*Task, n)
	for i, entry := range q.tasks[:n] {
		batch[i] = entry.task
	}
	q.tasks = append([]queuedTask(nil), q.tasks[n:]...)
	if q.priority > n {
		q.priority -= n
	} else {
		q.priority = 0
	}
	return batch
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *taskQueue) hasPriority() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.priority > 0
}

// oldestAge reports how long the longest-waiting task has been queued.
// Priority promotion reorders the slice, so the minimum enqueue time is
// scanned rather than read from the head.
func (q *taskQueue) oldestAge() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return 0, false
	}
	oldest := q.tasks[0].at
	for _, entry := range q.tasks[1:] {
		if entry.at.Before(oldest) {
			oldest = entry.at
		}
	}
	return time.Since(oldest), true
}

func (q *taskQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// destination owns one webhook endpoint: its queue, its rate limiter and its
// delivery client. Exactly one flush loop runs per destination, so queue and
// circuit state are never shared across destinations.
type destination struct {
	url     string
	queue   *taskQueue
	limiter *rate.Limiter
	client  *Client
	cfg     config.WebhookConfig
	logger  *utils.Logger

	statsMu   sync.Mutex
	delivered int64
	failed    int64
	dropped   int64
}

func newDestination(url string, cfg config.WebhookConfig, logger *utils.Logger) *destination {
	// Token bucket with burst 1 keeps every rolling 60s window at or below
	// the configured ceiling.
	limit := rate.Limit(float64(cfg.MaxRequestsPerMinute) / 60.0)

	return &destination{
		url:     url,
		queue:   newTaskQueue(cfg.QueueSize),
		limiter: rate.NewLimiter(limit, 1),
		client:  NewClient(url, cfg, logger),
		cfg:     cfg,
		logger:  logger,
	}
}

// enqueue adds a task and wakes the flush loop. The wake channel coalesces,
// so signaling on every enqueue is cheap and leaves no window where a task
// lands without the loop noticing; the loop decides whether a flush is due or
// only the batch timer needs re-arming.
func (d *destination) enqueue(task *Task) {
	dropped := d.queue.push(task)
	if dropped != nil {
		d.recordDropped()
		d.logger.Warn(context.Background(), "Webhook queue full, dropped oldest task", map[string]interface{}{
			"component": PipelineComponent,
			"priority":  dropped.Priority,
		})
	}

	d.queue.signal()
}

// run is the flush loop. It wakes on batch-size/priority signals, on the
// batch timeout of the oldest queued task, and drains best-effort within the
// shutdown timeout once ctx is cancelled.
func (d *destination) run(ctx context.Context) {
	for {
		var timer *time.Timer
		var timeout <-chan time.Time
		if age, ok := d.queue.oldestAge(); ok {
			remaining := d.cfg.BatchTimeout - age
			if remaining < 0 {
				remaining = 0
			}
			timer = time.NewTimer(remaining)
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			d.drainOnShutdown()
			return
		case <-d.queue.wake:
			// A wake either means a flush is due now, or a task landed and
			// the loop only needs to re-arm the batch timer.
			if timer != nil {
				timer.Stop()
			}
			d.flushBacklog(ctx)
		case <-timeout:
			d.flush(ctx)
			d.flushBacklog(ctx)
		}
	}
}

// flushBacklog keeps flushing while a full batch or a priority task is
// waiting. A burst larger than one batch drains back to back instead of
// paying a batch timeout per batch; anything smaller is left for the timer.
func (d *destination) flushBacklog(ctx context.Context) {
	for ctx.Err() == nil && (d.queue.len() >= d.cfg.BatchSize || d.queue.hasPriority()) {
		d.flush(ctx)
	}
}

// flush delivers one batch, combining queued messages into as few requests
// as the Discord limits allow and never exceeding the per-minute ceiling.
func (d *destination) flush(ctx context.Context) {
	batch := d.queue.drain(d.cfg.BatchSize)
	if len(batch) == 0 {
		return
	}

	messages := make([]Message, 0, len(batch))
	for _, task := range batch {
		messages = append(messages, task.Message)
	}

	for _, payload := range CombineMessages(messages) {
		if err := d.limiter.Wait(ctx); err != nil {
			// Shutdown while waiting for a token; hand the payload to the
			// fallback path instead of losing it.
			d.fallback(payload, err)
			continue
		}

		if err := d.client.Deliver(ctx, payload); err != nil {
			d.recordFailed()
			d.fallback(payload, err)
			continue
		}
		d.recordDelivered()
	}
}

// drainOnShutdown makes a bounded best-effort pass over whatever is still
// queued, then routes the rest to fallback logging.
func (d *destination) drainOnShutdown() {
	deadline, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()

	for d.queue.len() > 0 {
		if deadline.Err() != nil {
			break
		}
		d.flush(deadline)
	}

	for _, task := range d.queue.drain(0) {
		d.fallback(task.Message, context.DeadlineExceeded)
	}
}

// fallback writes an undeliverable payload through the local logger. Tagged
// with the pipeline component so it can never re-enter the webhook path.
func (d *destination) fallback(msg Message, cause error) {
	summary := msg.Content
	if summary == "" && len(msg.Embeds) > 0 {
		summary = msg.Embeds[0].Title + ": " + msg.Embeds[0].Description
	}

	d.logger.Error(context.Background(), "Webhook delivery failed, logged locally", map[string]interface{}{
		"component": PipelineComponent,
		"error":     cause.Error(),
		"payload":   summary,
	})
}

func (d *destination) recordDelivered() {
	d.statsMu.Lock()
	d.delivered++
	d.statsMu.Unlock()
}

func (d *destination) recordFailed() {
	d.statsMu.Lock()
	d.failed++
	d.statsMu.Unlock()
}

func (d *destination) recordDropped() {
	d.statsMu.Lock()
	d.dropped++
	d.statsMu.Unlock()
}

func (d *destination) stats() (delivered, failed, dropped int64) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.delivered, d.failed, d.dropped
}
