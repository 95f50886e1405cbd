package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Conversions      prometheus.Counter
	ConversionErrors *prometheus.CounterVec
	Connections      prometheus.Counter
	BytesSent        prometheus.Counter
	CacheHits        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Conversions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flatelf_conversions_total",
			Help: "Total number of successful ELF to flat image conversions",
		}),
		ConversionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flatelf_conversion_errors_total",
			Help: "Total number of failed conversions",
		}, []string{"error"}),
		Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flatelf_connections_total",
			Help: "Total number of accepted TCP connections",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flatelf_sent_bytes_total",
			Help: "Total number of FLATELF bytes written to connections",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flatelf_cache_hits_total",
			Help: "Total number of conversions served from the image cache",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Conversions,
			m.ConversionErrors,
			m.Connections,
			m.BytesSent,
			m.CacheHits,
		)
	}

	return m
}
