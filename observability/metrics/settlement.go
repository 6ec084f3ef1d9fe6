package metrics

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onda-protocol/onda-program-library-sub000/core/events"
)

// SettlementMetrics tracks value moved by committed settlements.
type SettlementMetrics struct {
	royaltiesPaid    *prometheus.CounterVec
	escrowReleased   *prometheus.CounterVec
	escrowRefunded   *prometheus.CounterVec
	forcedSettlement prometheus.Counter
	defaults         prometheus.Counter
}

var (
	settlementOnce     sync.Once
	settlementRegistry *SettlementMetrics
)

func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			royaltiesPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onda",
				Subsystem: "settlement",
				Name:      "royalties_paid_total",
				Help:      "Royalty units paid to creators by instrument.",
			}, []string{"instrument"}),
			escrowReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onda",
				Subsystem: "settlement",
				Name:      "escrow_released_total",
				Help:      "Earned rental escrow released to lenders by trigger.",
			}, []string{"trigger"}),
			escrowRefunded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onda",
				Subsystem: "settlement",
				Name:      "escrow_refunded_total",
				Help:      "Unearned rental escrow returned to borrowers by trigger.",
			}, []string{"trigger"}),
			forcedSettlement: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "onda",
				Subsystem: "settlement",
				Name:      "forced_rental_settlements_total",
				Help:      "Rentals ended early by an exercise or repossession.",
			}),
			defaults: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "onda",
				Subsystem: "settlement",
				Name:      "loan_defaults_total",
				Help:      "Loans repossessed after their duration elapsed.",
			}),
		}
		prometheus.MustRegister(
			settlementRegistry.royaltiesPaid,
			settlementRegistry.escrowReleased,
			settlementRegistry.escrowRefunded,
			settlementRegistry.forcedSettlement,
			settlementRegistry.defaults,
		)
	})
	return settlementRegistry
}

// Emit folds the amounts carried by a committed event into the counters.
func (m *SettlementMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	typed, ok := evt.(events.Typed)
	if !ok || typed.Evt == nil {
		return
	}
	attrs := typed.Evt.Attributes
	eventType := typed.Evt.Type
	instrument := eventType
	if idx := strings.IndexByte(eventType, '.'); idx > 0 {
		instrument = eventType[:idx]
	}
	if fee := amount(attrs, "royalty") + amount(attrs, "creatorFee"); fee > 0 {
		m.royaltiesPaid.WithLabelValues(instrument).Add(float64(fee))
	}
	switch eventType {
	case "rental.escrow_withdrawn", "rental.recovered", "rental.settled":
		trigger := strings.TrimPrefix(eventType, "rental.")
		m.escrowReleased.WithLabelValues(trigger).Add(float64(amount(attrs, "toLender")))
		m.escrowRefunded.WithLabelValues(trigger).Add(float64(amount(attrs, "toBorrower")))
		if eventType == "rental.settled" {
			m.forcedSettlement.Inc()
		}
	case "loan.repossessed":
		m.defaults.Inc()
	}
}

func amount(attrs map[string]string, key string) uint64 {
	raw, ok := attrs[key]
	if !ok {
		return 0
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
