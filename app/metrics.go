package app

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	txs    *prometheus.CounterVec
	votes  *prometheus.CounterVec
	height prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		txs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govledger_instructions_total",
				Help: "Executed instructions by name and result.",
			},
			[]string{"instruction", "result"},
		),
		votes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govledger_votes_total",
				Help: "Votes cast by choice.",
			},
			[]string{"choice"},
		),
		height: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "govledger_committed_height",
				Help: "Last committed block height.",
			},
		),
	}
}

func (m *metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.txs, m.votes, m.height)
}

// countTx records an instruction result when count is set.
func (m *metrics) countTx(count bool, instruction, result string) {
	if count {
		m.txs.WithLabelValues(instruction, result).Inc()
	}
}
