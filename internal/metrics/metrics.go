// Package metrics содержит счётчики Prometheus для ключевых операций.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GrantsTotal количество выдач подписки по источнику (gateway, manual).
	GrantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_grants_total",
		Help: "Total number of subscription grants by source.",
	}, []string{"source"})

	// WebhookEventsTotal количество обработанных webhook-событий по исходу.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Total number of payment webhook events by outcome.",
	}, []string{"outcome"})

	// BroadcastSendsTotal количество отправленных сообщений рассылки по статусу.
	BroadcastSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_sends_total",
		Help: "Total number of broadcast messages sent by status.",
	}, []string{"status"})
)
