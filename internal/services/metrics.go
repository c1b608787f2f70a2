package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rechargeOrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recharge_orders_created_total",
		Help: "Recharge orders created",
	})

	// source is notify for gateway callbacks, manual for admin and CLI decisions.
	rechargeSettlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recharge_settlements_total",
		Help: "Recharge orders moved to a terminal state",
	}, []string{"decision", "source"})

	rechargeNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recharge_notify_total",
		Help: "Gateway notifications by outcome",
	}, []string{"outcome"})

	ledgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "points_ledger_entries_total",
		Help: "Ledger entries appended",
	}, []string{"direction"})
)

func observeLedgerEntry(delta int64) {
	if delta >= 0 {
		ledgerEntries.WithLabelValues("credit").Inc()
	} else {
		ledgerEntries.WithLabelValues("debit").Inc()
	}
}
