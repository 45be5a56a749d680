// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttendanceMarked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mess",
		Name:      "attendance_rows_marked_total",
		Help:      "Attendance rows written by MarkAttendance.",
	})

	BillsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mess",
		Name:      "bills_generated_total",
		Help:      "Bills written by monthly generation, by outcome.",
	}, []string{"outcome"})

	PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mess",
		Name:      "payments_recorded_total",
		Help:      "Payments recorded against bills.",
	})

	PaymentAmount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mess",
		Name:      "payment_amount_total",
		Help:      "Sum of recorded payment amounts.",
	})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mess",
		Name:      "outbox_events_total",
		Help:      "Bill events handled by the outbox dispatcher, by result.",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mess",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})
)
