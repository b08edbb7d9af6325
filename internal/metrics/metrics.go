// Package metrics exposes Prometheus counters for the commerce ledger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersCreated counts order creations by kind and payment method.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_orders_created_total",
		Help: "Orders created, by kind and payment method.",
	}, []string{"kind", "payment_method"})

	// OrdersSettled counts orders reaching a terminal status.
	OrdersSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_orders_settled_total",
		Help: "Orders settled into a terminal status.",
	}, []string{"status"})

	// CoinsCredited counts coins added to user balances by transaction kind.
	CoinsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_coins_credited_total",
		Help: "Coins credited to balances, by transaction kind.",
	}, []string{"kind"})

	// CoinsDebited counts coins removed from user balances by transaction kind.
	CoinsDebited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_coins_debited_total",
		Help: "Coins debited from balances, by transaction kind.",
	}, []string{"kind"})

	// WebhookReplays counts payment callbacks dropped as duplicates.
	WebhookReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_webhook_replays_total",
		Help: "Payment callbacks ignored because the external tx id was already settled.",
	}, []string{"source"})

	// InsufficientBalance counts debits rejected for lack of coins.
	InsufficientBalance = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commerce_insufficient_balance_total",
		Help: "Debits rejected because the balance did not cover them.",
	})

	// StaleOrdersSwept counts pending orders expired by the sweeper.
	StaleOrdersSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commerce_stale_orders_swept_total",
		Help: "Pending orders marked failed by the stale-order sweeper.",
	})

	// VoucherEvaluations counts voucher evaluations by outcome reason.
	VoucherEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_voucher_evaluations_total",
		Help: "Voucher evaluations, by outcome.",
	}, []string{"outcome"})
)

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
