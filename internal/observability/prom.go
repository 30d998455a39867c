package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jobsheet"

type Prom struct {
	// HTTP
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Worker
	JobDuration  *prometheus.HistogramVec
	JobResults   *prometheus.CounterVec
	JobsInFlight prometheus.Gauge

	// Sheet
	LoginLinks *prometheus.CounterVec
	CellEdits  *prometheus.CounterVec
	RowInserts *prometheus.CounterVec
}

func counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func histogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: counter("", "http_requests_total", "HTTP requests by route and status.",
			"method", "route", "status"),
		RequestsDuration: histogram("", "http_request_duration_seconds", "HTTP request latency.",
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			"method", "route", "status"),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "HTTP requests being served.",
		}, []string{"method", "route"}),

		DbQueryDuration: histogram("db", "query_duration_seconds", "Repository operation latency by logical op.",
			[]float64{0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
			"op", "status"),
		DbErrorsTotal: counter("db", "errors_total", "Repository errors by logical op and class.",
			"op", "class"),

		// result=done|retry|failed
		JobDuration: histogram("jobs", "duration_seconds", "Job run time by type and result.",
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 3, 10, 30},
			"job_type", "result"),
		JobResults: counter("jobs", "results_total", "Job outcomes by type and result.",
			"job_type", "result"),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Jobs executing in this process.",
		}),

		// stage=issue|consume
		LoginLinks: counter("auth", "login_links_total", "Login link events by stage and result.",
			"stage", "result"),
		// result=ok|forbidden|not_found|invalid|error
		CellEdits: counter("sheet", "cell_edits_total", "Single cell updates by column and result.",
			"column", "result"),
		RowInserts: counter("sheet", "row_inserts_total", "Row inserts by result.",
			"result"),
	}

	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.JobDuration, p.JobResults, p.JobsInFlight,
		p.LoginLinks, p.CellEdits, p.RowInserts,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		inFlight := p.InFlight.WithLabelValues(method, route)
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
	}
}

// ObserveLoginLink counts one login link event. Safe on a nil receiver.
func (p *Prom) ObserveLoginLink(stage string, err error) {
	if p == nil {
		return
	}
	p.LoginLinks.WithLabelValues(stage, okOrError(err)).Inc()
}

// ObserveCellEdit counts one PATCH outcome. Safe on a nil receiver.
func (p *Prom) ObserveCellEdit(column, result string) {
	if p == nil {
		return
	}
	p.CellEdits.WithLabelValues(column, result).Inc()
}

// ObserveRowInsert counts one insert outcome. Safe on a nil receiver.
func (p *Prom) ObserveRowInsert(err error) {
	if p == nil {
		return
	}
	p.RowInserts.WithLabelValues(okOrError(err)).Inc()
}

func okOrError(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
