package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
//
// Every collector lives on a private registry so several instances can
// coexist in one process (tests build one per server). All Record methods are
// safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	CommandsTotal     *prometheus.CounterVec
	RobotActions      *prometheus.CounterVec
	OCRDuration       prometheus.Histogram
	OCRWords          prometheus.Histogram
	OCRClicks         *prometheus.CounterVec
	PermissionChecks  *prometheus.CounterVec
	AIRequests        *prometheus.CounterVec
	QueueRunsActive   prometheus.Gauge
	KillSwitchEngaged prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON health endpoint.
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	CommandsRun       int64   `json:"commands_run"`
	CommandsFailed    int64   `json:"commands_failed"`
	RobotActions      int64   `json:"robot_actions"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comet_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "comet_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comet_commands_total",
				Help: "Commands run by the sequencer, by type and final status",
			},
			[]string{"type", "status"},
		),
		RobotActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comet_robot_actions_total",
				Help: "Desktop actions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		OCRDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "comet_ocr_duration_seconds",
				Help:    "Capture plus recognition time",
				Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16},
			},
		),
		OCRWords: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "comet_ocr_words",
				Help:    "Words kept per OCR pass",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		OCRClicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comet_ocr_clicks_total",
				Help: "OCR click resolutions by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		PermissionChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comet_permission_checks_total",
				Help: "Permission gate decisions",
			},
			[]string{"key", "granted"},
		),
		AIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comet_ai_requests_total",
				Help: "Model calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		QueueRunsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "comet_queue_runs_active",
				Help: "Command queues currently executing",
			},
		),
		KillSwitchEngaged: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "comet_kill_switch_engaged",
				Help: "1 while the robot kill switch is engaged",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "comet_ws_connections",
				Help: "Number of active bridge connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comet_ws_messages_total",
				Help: "Total number of bridge messages",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "comet_uptime_seconds",
			Help: "Backend uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCommand records the final status of a queued command
func (m *Metrics) RecordCommand(cmdType, status string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(cmdType, status).Inc()

	m.mu.Lock()
	m.snapshot.CommandsRun++
	if status == "failed" {
		m.snapshot.CommandsFailed++
	}
	m.mu.Unlock()
}

// RecordRobotAction records one executor outcome (executed, denied, blocked, ...)
func (m *Metrics) RecordRobotAction(kind, outcome string) {
	if m == nil {
		return
	}
	m.RobotActions.WithLabelValues(kind, outcome).Inc()
	if outcome == "executed" {
		m.mu.Lock()
		m.snapshot.RobotActions++
		m.mu.Unlock()
	}
}

// RecordOCR records one capture+recognition pass
func (m *Metrics) RecordOCR(duration time.Duration, words int) {
	if m == nil {
		return
	}
	m.OCRDuration.Observe(duration.Seconds())
	m.OCRWords.Observe(float64(words))
}

// RecordOCRClick records a resolver outcome
func (m *Metrics) RecordOCRClick(method string, success bool) {
	if m == nil {
		return
	}
	m.OCRClicks.WithLabelValues(method, outcome(success)).Inc()
}

// RecordPermissionCheck records a permission gate decision
func (m *Metrics) RecordPermissionCheck(key string, granted bool) {
	if m == nil {
		return
	}
	g := "false"
	if granted {
		g = "true"
	}
	m.PermissionChecks.WithLabelValues(key, g).Inc()
}

// RecordAIRequest records a model call
func (m *Metrics) RecordAIRequest(provider string, success bool) {
	if m == nil {
		return
	}
	m.AIRequests.WithLabelValues(provider, outcome(success)).Inc()
}

// SetKillSwitch mirrors the executor kill switch
func (m *Metrics) SetKillSwitch(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.KillSwitchEngaged.Set(1)
		return
	}
	m.KillSwitchEngaged.Set(0)
}

// QueueStarted increments the active queue gauge
func (m *Metrics) QueueStarted() {
	if m == nil {
		return
	}
	m.QueueRunsActive.Inc()
}

// QueueFinished decrements the active queue gauge
func (m *Metrics) QueueFinished() {
	if m == nil {
		return
	}
	m.QueueRunsActive.Dec()
}

// RecordWSMessage records a bridge message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments bridge connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements bridge connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
