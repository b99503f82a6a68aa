package api

import (
	"net/http"
	"time"

	"github.com/malwarebo/statsbot/monitoring"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

type MetricsResponse struct {
	GoRoutines int    `json:"goroutines"`
	Memory     Memory `json:"memory"`
	Uptime     string `json:"uptime"`
}

type Memory struct {
	HeapAlloc uint64  `json:"heap_alloc"`
	HeapSys   uint64  `json:"heap_sys"`
	Percent   float64 `json:"percent"`
	NumGC     uint32  `json:"num_gc"`
}

var startTime = time.Now()

func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime).String(),
	})
}

type MetricsHandler struct {
	sampler *monitoring.Sampler
}

func CreateMetricsHandler(sampler *monitoring.Sampler) *MetricsHandler {
	return &MetricsHandler{sampler: sampler}
}

func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	sample := h.sampler.Sample()

	writeJSON(w, http.StatusOK, MetricsResponse{
		GoRoutines: sample.Goroutines,
		Memory: Memory{
			HeapAlloc: sample.HeapAlloc,
			HeapSys:   sample.HeapSys,
			Percent:   sample.MemoryPercent,
			NumGC:     sample.GCs,
		},
		Uptime: sample.Uptime.String(),
	})
}
