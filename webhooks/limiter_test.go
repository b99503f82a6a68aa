package webhooks

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/malwarebo/statsbot/config"
	"github.com/malwarebo/statsbot/utils"
)

func TestTaskQueue_FIFOOrder(t *testing.T) {
	q := newTaskQueue(10)
	q.push(&Task{Message: Message{Content: "a"}})
	q.push(&Task{Message: Message{Content: "b"}})
	q.push(&Task{Message: Message{Content: "c"}})

	batch := q.drain(0)
	if len(batch) != 3 {
		t.Fatalf("len(batch) = %d, want 3", len(batch))
	}
	for i, want := range []string{"a", "b", "c"} {
		if batch[i].Message.Content != want {
			t.Errorf("batch[%d] = %q, want %q", i, batch[i].Message.Content, want)
		}
	}
}

func TestTaskQueue_PriorityAheadOfNonPriority(t *testing.T) {
	q := newTaskQueue(10)
	q.push(&Task{Message: Message{Content: "normal"}})
	q.push(&Task{Message: Message{Content: "urgent"}, Priority: true})

	batch := q.drain(0)
	if batch[0].Message.Content != "urgent" {
		t.Errorf("batch[0] = %q, want %q", batch[0].Message.Content, "urgent")
	}
}

func TestTaskQueue_PriorityOrderPreservedAmongPriorities(t *testing.T) {
	q := newTaskQueue(10)
	q.push(&Task{Message: Message{Content: "p1"}, Priority: true})
	q.push(&Task{Message: Message{Content: "normal"}})
	q.push(&Task{Message: Message{Content: "p2"}, Priority: true})

	batch := q.drain(0)
	want := []string{"p1", "p2", "normal"}
	for i, w := range want {
		if batch[i].Message.Content != w {
			t.Errorf("batch[%d] = %q, want %q", i, batch[i].Message.Content, w)
		}
	}
}

func TestTaskQueue_DropsOldestNonPriorityFirst(t *testing.T) {
	q := newTaskQueue(3)
	q.push(&Task{Message: Message{Content: "p1"}, Priority: true})
	q.push(&Task{Message: Message{Content: "n1"}})
	q.push(&Task{Message: Message{Content: "n2"}})

	dropped := q.push(&Task{Message: Message{Content: "n3"}})

	if dropped == nil || dropped.Message.Content != "n1" {
		t.Fatalf("dropped = %v, want oldest non-priority n1", dropped)
	}

	batch := q.drain(0)
	want := []string{"p1", "n2", "n3"}
	for i, w := range want {
		if batch[i].Message.Content != w {
			t.Errorf("batch[%d] = %q, want %q", i, batch[i].Message.Content, w)
		}
	}
}

func TestTaskQueue_DropsPriorityOnlyAsLastResort(t *testing.T) {
	q := newTaskQueue(2)
	q.push(&Task{Message: Message{Content: "p1"}, Priority: true})
	q.push(&Task{Message: Message{Content: "p2"}, Priority: true})

	dropped := q.push(&Task{Message: Message{Content: "p3"}, Priority: true})

	if dropped == nil || dropped.Message.Content != "p1" {
		t.Fatalf("dropped = %v, want oldest priority p1", dropped)
	}

	batch := q.drain(0)
	want := []string{"p2", "p3"}
	for i, w := range want {
		if batch[i].Message.Content != w {
			t.Errorf("batch[%d] = %q, want %q", i, batch[i].Message.Content, w)
		}
	}
}

func TestTaskQueue_DrainKeepsOldestEnqueueTime(t *testing.T) {
	q := newTaskQueue(10)
	q.push(&Task{Message: Message{Content: "a"}})
	q.push(&Task{Message: Message{Content: "b"}})

	time.Sleep(60 * time.Millisecond)
	q.drain(1)

	age, ok := q.oldestAge()
	if !ok {
		t.Fatal("oldestAge() reported empty queue")
	}
	if age < 50*time.Millisecond {
		t.Errorf("age = %v, want the remaining task's original enqueue time, not the drain time", age)
	}
}

func TestTaskQueue_DrainLimitsBatch(t *testing.T) {
	q := newTaskQueue(10)
	for i := 0; i < 5; i++ {
		q.push(&Task{Message: Message{Content: "x"}})
	}

	if got := len(q.drain(2)); got != 2 {
		t.Errorf("len(drain(2)) = %d, want 2", got)
	}
	if got := q.len(); got != 3 {
		t.Errorf("len() = %d, want 3 remaining", got)
	}
}

func destinationConfig() config.WebhookConfig {
	return config.WebhookConfig{
		MaxRequestsPerMinute: 6000,
		BatchSize:            5,
		BatchTimeout:         50 * time.Millisecond,
		QueueSize:            100,
		MaxMessageLength:     2000,
		FailureThreshold:     3,
		Cooldown:             time.Second,
		MaxAttempts:          1,
		BaseDelay:            time.Millisecond,
		MaxDelay:             5 * time.Millisecond,
		ShutdownTimeout:      time.Second,
	}
}

func TestDestination_FlushCombinesBatch(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := newDestination(server.URL, destinationConfig(), utils.NewLogger("test"))
	for i := 0; i < 3; i++ {
		d.enqueue(&Task{Message: Message{Content: "line"}, URL: server.URL})
	}

	d.flush(context.Background())

	if got := atomic.LoadInt64(&requests); got != 1 {
		t.Errorf("requests = %d, want 1 combined delivery", got)
	}
	delivered, failed, _ := d.stats()
	if delivered != 1 || failed != 0 {
		t.Errorf("stats = (%d, %d), want (1, 0)", delivered, failed)
	}
}

func TestDestination_RunFlushesOnBatchTimeout(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := newDestination(server.URL, destinationConfig(), utils.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()

	d.enqueue(&Task{Message: Message{Content: "single"}, URL: server.URL})

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&requests) == 0 {
		select {
		case <-deadline:
			t.Fatal("batch timeout never triggered a flush")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestDestination_RunDrainsBurstWithoutTimeoutPerBatch(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := destinationConfig()
	cfg.BatchSize = 2
	cfg.BatchTimeout = 2 * time.Second

	d := newDestination(server.URL, cfg, utils.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()

	start := time.Now()
	for i := 0; i < 6; i++ {
		d.enqueue(&Task{Message: Message{Content: "burst"}, URL: server.URL})
	}

	deadline := time.After(time.Second)
	for atomic.LoadInt64(&requests) < 3 {
		select {
		case <-deadline:
			t.Fatalf("requests = %d after %v, want 3 back-to-back batches", atomic.LoadInt64(&requests), time.Since(start))
		case <-time.After(10 * time.Millisecond):
		}
	}
	if elapsed := time.Since(start); elapsed >= cfg.BatchTimeout {
		t.Errorf("burst drained in %v, want well under the %v batch timeout", elapsed, cfg.BatchTimeout)
	}

	cancel()
	<-done
}

func TestDestination_EnqueueAlwaysWakesFlushLoop(t *testing.T) {
	d := newDestination("https://discord.com/api/webhooks/1/t", destinationConfig(), utils.NewLogger("test"))

	d.enqueue(&Task{Message: Message{Content: "a"}})
	select {
	case <-d.queue.wake:
	default:
		t.Fatal("no wake pending after first enqueue")
	}

	// The wake above is consumed; a second sub-batch enqueue must leave
	// another one pending so the flush loop can re-arm its timer.
	d.enqueue(&Task{Message: Message{Content: "b"}})
	select {
	case <-d.queue.wake:
	default:
		t.Fatal("no wake pending after second enqueue")
	}
}

func TestDestination_RateCeilingPacesDeliveries(t *testing.T) {
	var mu sync.Mutex
	var arrivals []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := destinationConfig()
	cfg.MaxRequestsPerMinute = 600 // one token every 100ms, burst 1
	cfg.BatchSize = 1

	d := newDestination(server.URL, cfg, utils.NewLogger("test"))
	for i := 0; i < 3; i++ {
		d.queue.push(&Task{Message: Message{Content: "paced"}, URL: server.URL})
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		d.flush(context.Background())
	}
	elapsed := time.Since(start)

	mu.Lock()
	defer mu.Unlock()
	if len(arrivals) != 3 {
		t.Fatalf("requests = %d, want 3", len(arrivals))
	}
	for i := 1; i < len(arrivals); i++ {
		if gap := arrivals[i].Sub(arrivals[i-1]); gap < 80*time.Millisecond {
			t.Errorf("gap between request %d and %d = %v, want the 100ms token spacing", i-1, i, gap)
		}
	}
	if elapsed < 180*time.Millisecond {
		t.Errorf("3 deliveries completed in %v, want the ceiling to stretch them past 180ms", elapsed)
	}
}

func TestDestination_ShutdownDrainFallsBackWhenCeilingBlocks(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := destinationConfig()
	cfg.MaxRequestsPerMinute = 60 // one token per second
	cfg.BatchSize = 1
	cfg.ShutdownTimeout = 100 * time.Millisecond

	d := newDestination(server.URL, cfg, utils.NewLogger("test"))
	d.queue.push(&Task{Message: Message{Content: "delivered"}, URL: server.URL})
	d.queue.push(&Task{Message: Message{Content: "stranded"}, URL: server.URL})

	d.drainOnShutdown()

	if got := atomic.LoadInt64(&requests); got != 1 {
		t.Errorf("requests = %d, want 1 before the shutdown deadline", got)
	}
	if d.queue.len() != 0 {
		t.Errorf("queue depth = %d, want 0 after drain", d.queue.len())
	}
	out := buf.String()
	if !strings.Contains(out, "Webhook delivery failed, logged locally") {
		t.Error("stranded task was not routed to the fallback logger")
	}
	if !strings.Contains(out, "stranded") {
		t.Error("fallback log does not carry the undelivered payload")
	}
}

func TestDestination_FailedDeliveryFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := newDestination(server.URL, destinationConfig(), utils.NewLogger("test"))
	d.enqueue(&Task{Message: Message{Content: "doomed"}, URL: server.URL})

	d.flush(context.Background())

	_, failed, _ := d.stats()
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if d.queue.len() != 0 {
		t.Errorf("queue depth = %d, want 0 after fallback", d.queue.len())
	}
}

func TestDestination_DropRecordsStats(t *testing.T) {
	cfg := destinationConfig()
	cfg.QueueSize = 2
	d := newDestination("https://discord.com/api/webhooks/1/t", cfg, utils.NewLogger("test"))

	for i := 0; i < 4; i++ {
		d.enqueue(&Task{Message: Message{Content: "x"}})
	}

	_, _, dropped := d.stats()
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
}
