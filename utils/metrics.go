package utils

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Counter: общее количество HTTP запросов
	ReqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Histogram: время выполнения запросов
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "app_request_duration_seconds",
			Help: "Request duration seconds",
		},
		[]string{"method", "path"},
	)

	ErrorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_errors_total",
			Help: "Total app errors",
		},
		[]string{"handler", "type"},
	)

	// Domain counters for the chain-session engine and XP pipeline.
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "app_chain_sessions_started_total",
			Help: "Chain sessions created",
		},
	)

	SessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_chain_sessions_finished_total",
			Help: "Chain sessions reaching a terminal state",
		},
		[]string{"status"}, // completed | abandoned
	)

	XPAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_xp_awarded_total",
			Help: "XP credited to profiles",
		},
		[]string{"source"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(
		ReqCount, ReqDuration, ErrorCount,
		SessionsStarted, SessionsFinished, XPAwarded,
	)
}
