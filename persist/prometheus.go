package persist

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports a Store's Metrics as Prometheus series, letting a
// deployment scrape durableset_flushes_total{owner="N"} alongside whatever
// else the process already exports.
type Collector struct {
	store *Store

	flushDesc      *prometheus.Desc
	casRetryDesc   *prometheus.Desc
	casSuccessDesc *prometheus.Desc
	activeDesc     *prometheus.Desc
}

// NewCollector builds a Collector over store. The returned value
// implements prometheus.Collector and can be passed to
// prometheus.Registry.MustRegister.
func NewCollector(store *Store) *Collector {
	return &Collector{
		store: store,
		flushDesc: prometheus.NewDesc(
			"durableset_flushes_total",
			"Number of persistent-cell flushes issued, by owner.",
			[]string{"owner"}, nil,
		),
		casRetryDesc: prometheus.NewDesc(
			"durableset_cas_retries_total",
			"Number of failed CAS attempts across all lock-free insert calls.",
			nil, nil,
		),
		casSuccessDesc: prometheus.NewDesc(
			"durableset_cas_successes_total",
			"Number of winning CAS attempts across all lock-free insert calls.",
			nil, nil,
		),
		activeDesc: prometheus.NewDesc(
			"durableset_active_items",
			"Current number of live items in the set.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.flushDesc
	ch <- c.casRetryDesc
	ch <- c.casSuccessDesc
	ch <- c.activeDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.store.Metrics()
	for owner, n := range m.PerOwnerFlushes() {
		ch <- prometheus.MustNewConstMetric(
			c.flushDesc, prometheus.CounterValue, float64(n), ownerLabel(owner),
		)
	}
	retries, successes := m.InsertCASStats()
	ch <- prometheus.MustNewConstMetric(c.casRetryDesc, prometheus.CounterValue, float64(retries))
	ch <- prometheus.MustNewConstMetric(c.casSuccessDesc, prometheus.CounterValue, float64(successes))
	ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(m.Len()))
}

func ownerLabel(owner int) string {
	return strconv.Itoa(owner)
}
