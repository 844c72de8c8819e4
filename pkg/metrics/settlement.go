package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts settlement outcomes.
type SettlementMetrics struct {
	settled  prometheus.Counter
	refunds  prometheus.Counter
	capped   prometheus.Counter
	failures prometheus.Counter
	royalty  prometheus.Counter
}

func settlementCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      name,
		Help:      help,
	})
}

// NewSettlementMetrics registers the settlement counters on reg.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		settled:  settlementCounter("completed_total", "Designs settled."),
		refunds:  settlementCounter("refunds_issued_total", "Tier difference refunds issued as store credit."),
		capped:   settlementCounter("payouts_capped_total", "Royalty payouts reduced by the quarterly cap."),
		failures: settlementCounter("failures_total", "Settlement attempts rolled back."),
		royalty:  settlementCounter("royalty_cents_total", "Royalty owed to designers, in cents."),
	}
	reg.MustRegister(m.settled, m.refunds, m.capped, m.failures, m.royalty)
	return m
}

// ObserveSettled records one completed settlement.
func (s *SettlementMetrics) ObserveSettled(refunds int, capped bool, royaltyCents int64) {
	if s == nil || s.settled == nil {
		return
	}
	s.settled.Inc()
	s.refunds.Add(float64(refunds))
	if capped {
		s.capped.Inc()
	}
	if royaltyCents > 0 {
		s.royalty.Add(float64(royaltyCents))
	}
}

// IncFailure records a rolled back settlement.
func (s *SettlementMetrics) IncFailure() {
	if s == nil || s.failures == nil {
		return
	}
	s.failures.Inc()
}
