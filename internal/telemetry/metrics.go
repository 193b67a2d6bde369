package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "firstrung_"

// Funnel stages as exported in the stage label.
const (
	StageRaw            = "raw"
	StageEligible       = "eligible"
	StageCareerTagged   = "career_tagged"
	StageLocationTagged = "location_tagged"
)

// Metrics exports funnel counters to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	records *prometheus.CounterVec
	writes  *prometheus.CounterVec
	alarms  *prometheus.CounterVec
}

// NewMetrics registers the funnel collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "funnel_records_total",
				Help: "Candidate records that reached each funnel stage",
			},
			[]string{"source", "stage"},
		),
		writes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "upserts_total",
				Help: "Posting writes by outcome",
			},
			[]string{"source", "result"},
		),
		alarms: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "funnel_alarms_total",
				Help: "Advisory funnel threshold breaches",
			},
			[]string{"source", "kind"},
		),
	}
}

func (m *Metrics) stage(source, stage string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(source, stage).Inc()
}

func (m *Metrics) upserts(source string, inserted, updated, failed int) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(source, "inserted").Add(float64(inserted))
	m.writes.WithLabelValues(source, "updated").Add(float64(updated))
	m.writes.WithLabelValues(source, "error").Add(float64(failed))
}

func (m *Metrics) alarm(source string, kind AlarmKind) {
	if m == nil {
		return
	}
	m.alarms.WithLabelValues(source, string(kind)).Inc()
}
