package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	IssueOutcomeNew      = "new"
	IssueOutcomeExisting = "existing"
	IssueOutcomeFailed   = "failed"

	AcceptPathPassword  = "password"
	AcceptPathAutomatic = "automatic"

	RedeemResultOK      = "ok"
	RedeemResultExpired = "expired"
	RedeemResultError   = "error"

	JobOutcomeOK      = "ok"
	JobOutcomeError   = "error"
	JobOutcomeTimeout = "timeout"
)

// Config carries the constant labels stamped on every series.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics exposes the invitation lifecycle instruments.
type Metrics struct {
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	invitationsIssued   *prometheus.CounterVec
	invitationsAccepted *prometheus.CounterVec
	acceptanceFailures  *prometheus.CounterVec
	codeRedemptions     *prometheus.CounterVec
	notificationErrors  prometheus.Counter
	rateLimitDenied     *prometheus.CounterVec
	jobRuns             *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
	jobPurged           *prometheus.CounterVec
}

// New registers the instruments on registerer, falling back to the default registry.
func New(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "identity"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "identity_http_requests_total",
			Help:        "HTTP requests by route and status.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "identity_http_request_duration_seconds",
			Help:        "HTTP request latency by route.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"method", "route"}),
		invitationsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "identity_invitations_issued_total",
			Help:        "Invitations issued by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		invitationsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "identity_invitations_accepted_total",
			Help:        "Invitations accepted by completion path.",
			ConstLabels: constLabels,
		}, []string{"path"}),
		acceptanceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "identity_invitation_acceptance_failures_total",
			Help:        "Invitation acceptance failures by reason code.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		codeRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "identity_code_redemptions_total",
			Help:        "Expiring code redemptions by backend and result.",
			ConstLabels: constLabels,
		}, []string{"backend", "result"}),
		notificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "identity_invitation_notification_errors_total",
			Help:        "Invitation messages that could not be delivered.",
			ConstLabels: constLabels,
		}),
		rateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "identity_rate_limit_denied_total",
			Help:        "Requests rejected by the rate limiter by route and reason.",
			ConstLabels: constLabels,
		}, []string{"route", "reason"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "identity_scheduler_job_runs_total",
			Help:        "Scheduler job runs by job and outcome.",
			ConstLabels: constLabels,
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "identity_scheduler_job_duration_seconds",
			Help:        "Scheduler job duration.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "identity_scheduler_purged_rows_total",
			Help:        "Rows removed by scheduler jobs.",
			ConstLabels: constLabels,
		}, []string{"job"}),
	}

	registerer.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.invitationsIssued,
		m.invitationsAccepted,
		m.acceptanceFailures,
		m.codeRedemptions,
		m.notificationErrors,
		m.rateLimitDenied,
		m.jobRuns,
		m.jobDuration,
		m.jobPurged,
	)
	return m
}

func (m *Metrics) RecordInvitationIssued(outcome string) {
	if m == nil {
		return
	}
	m.invitationsIssued.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordInvitationAccepted(path string) {
	if m == nil {
		return
	}
	m.invitationsAccepted.WithLabelValues(path).Inc()
}

func (m *Metrics) RecordAcceptanceFailure(reason string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(reason) == "" {
		reason = "unknown"
	}
	m.acceptanceFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCodeRedemption(backend, result string) {
	if m == nil {
		return
	}
	m.codeRedemptions.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) RecordNotificationError() {
	if m == nil {
		return
	}
	m.notificationErrors.Inc()
}

func (m *Metrics) RecordRateLimitDenied(route, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(route, reason).Inc()
}

func (m *Metrics) RecordJobRun(job, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	m.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordPurged(job string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.jobPurged.WithLabelValues(job).Add(float64(rows))
}

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
