package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts completed reconciliation cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgewatch_cycles_total",
			Help: "Total number of bridge reconciliation cycles",
		},
		[]string{"outcome"},
	)

	// CycleDuration tracks reconciliation cycle duration.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridgewatch_cycle_duration_seconds",
			Help:    "Bridge reconciliation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RPCCallsTotal counts successful RPC calls per endpoint and method.
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgewatch_rpc_calls_total",
			Help: "Total number of successful RPC calls",
		},
		[]string{"endpoint", "method"},
	)

	// RPCErrorsTotal counts failed RPC calls per endpoint and method.
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgewatch_rpc_errors_total",
			Help: "Total number of failed RPC calls",
		},
		[]string{"endpoint", "method"},
	)

	// RPCLatency tracks RPC call latency per endpoint and method.
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridgewatch_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// CacheEntries tracks the current size of each status cache table.
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridgewatch_cache_entries",
			Help: "Current number of entries per status cache table",
		},
		[]string{"table"},
	)

	// PurgedTotal counts entries purged after reaching finality.
	PurgedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgewatch_purged_total",
			Help: "Total number of cache entries purged at finality",
		},
		[]string{"table"},
	)

	// ChainTipHeight tracks the explorer chain tip seen by the last cycle.
	ChainTipHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridgewatch_chain_tip_height",
			Help: "Chain tip height from the last reconciliation cycle",
		},
	)

	// WithdrawalRequestsIndexed counts withdrawal-request logs persisted.
	WithdrawalRequestsIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridgewatch_withdrawal_requests_indexed_total",
			Help: "Total number of withdrawal request logs indexed",
		},
	)

	// IndexerLastScannedBlock tracks the indexer scan cursor.
	IndexerLastScannedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridgewatch_indexer_last_scanned_block",
			Help: "Last block scanned by the withdrawal-request indexer",
		},
	)

	// DBConnectionPoolUsage tracks database pool utilization percentage.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridgewatch_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
