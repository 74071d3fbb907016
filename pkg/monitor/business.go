package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	ProposalsCreatedTotal *prometheus.CounterVec // label: initial_status
	SignaturesTotal       *prometheus.CounterVec // label: result (accepted / rejected reason)
	SubmissionsTotal      *prometheus.CounterVec // label: outcome (submitted / failed)
	BroadcastDuration     prometheus.Histogram
	ExpiredTotal          prometheus.Counter
	OutboxRelayedTotal    *prometheus.CounterVec // label: result
	ExpireSweepsTotal     *prometheus.CounterVec // label: trigger (cron / http / worker)
}

// Business 全局业务指标实例，Init 时注册到 Prometheus
var Business = newBusinessMetrics()

func newBusinessMetrics() *BusinessMetrics {
	return &BusinessMetrics{
		ProposalsCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisig_proposals_created_total",
			Help: "Total number of multisig proposals created",
		}, []string{"initial_status"}),
		SignaturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisig_signatures_total",
			Help: "Signature submissions by result",
		}, []string{"result"}),
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisig_submissions_total",
			Help: "Network submissions by outcome",
		}, []string{"outcome"}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "multisig_broadcast_duration_seconds",
			Help:    "Duration of ledger broadcast calls",
			Buckets: prometheus.DefBuckets,
		}),
		ExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multisig_expired_total",
			Help: "Total number of proposals expired",
		}),
		OutboxRelayedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisig_outbox_relayed_total",
			Help: "Outbox messages relayed to the message queue",
		}, []string{"result"}),
		ExpireSweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisig_expire_sweeps_total",
			Help: "Expire sweeps by trigger",
		}, []string{"trigger"}),
	}
}

func (m *BusinessMetrics) register(r prometheus.Registerer) {
	r.MustRegister(
		m.ProposalsCreatedTotal,
		m.SignaturesTotal,
		m.SubmissionsTotal,
		m.BroadcastDuration,
		m.ExpiredTotal,
		m.OutboxRelayedTotal,
		m.ExpireSweepsTotal,
	)
}
