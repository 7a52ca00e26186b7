package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline reúne os contadores do fluxo game -> entropy -> settlement
type Pipeline struct {
	GamesSeen   prometheus.Counter
	Requests    prometheus.Counter
	Settlements *prometheus.CounterVec // label result: settled | abandoned
	Errors      *prometheus.CounterVec // label stage
	Pending     prometheus.Gauge
}

// NewPipeline cria e registra os coletores no registry informado
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		GamesSeen:   prometheus.NewCounter(prometheus.CounterOpts{Name: "entropy_games_seen_total", Help: "eventos GamePlayed observados"}),
		Requests:    prometheus.NewCounter(prometheus.CounterOpts{Name: "entropy_requests_total", Help: "pedidos de entropy confirmados"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "entropy_settlements_total", Help: "settlements por resultado"}, []string{"result"}),
		Errors:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "entropy_errors_total", Help: "erros por estágio"}, []string{"stage"}),
		Pending:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "entropy_pending_requests", Help: "entradas na tabela de pendentes"}),
	}
	reg.MustRegister(p.GamesSeen, p.Requests, p.Settlements, p.Errors, p.Pending)
	return p
}
