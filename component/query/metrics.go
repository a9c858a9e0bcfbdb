package query

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	queryTotal      prometheus.Counter
	fetchTotal      prometheus.Counter
	fetchErrorTotal prometheus.Counter
	invalidateTotal prometheus.Counter
	mutationTotal   *prometheus.CounterVec
	entries         prometheus.GaugeFunc
}

func newMetrics(size func() float64) *metrics {
	return &metrics{
		queryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "query_total",
			Help: "The total number of queries",
		}),
		fetchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "query_fetch_total",
			Help: "The total number of fetches sent to the controller",
		}),
		fetchErrorTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "query_fetch_error_total",
			Help: "The total number of failed fetches",
		}),
		invalidateTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "query_invalidate_total",
			Help: "The total number of invalidated entries",
		}),
		mutationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mutation_total",
			Help: "The total number of mutations by result",
		}, []string{"result"}),
		entries: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "query_entries",
			Help: "Current number of cached query entries",
		}, size),
	}
}

// RegMetricsTo registers the query cache collectors to r
func (c *Client) RegMetricsTo(r prometheus.Registerer) error {
	m := c.metrics
	for _, collector := range [...]prometheus.Collector{m.queryTotal, m.fetchTotal, m.fetchErrorTotal, m.invalidateTotal, m.mutationTotal, m.entries} {
		if err := r.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
