package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatcher activity for Prometheus. It implements the
// dispatcher's Recorder interface.
type Metrics struct {
	cycles        prometheus.Counter
	requests      prometheus.Counter
	splits        prometheus.Counter
	geocodeErrors prometheus.Counter
	notifications *prometheus.CounterVec
}

// New registers the dispatch collectors on the provided registerer. If reg is
// nil, the default registerer is used. Already registered collectors are
// reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_cycles_total",
			Help: "Total number of dispatch cycles run",
		}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_requests_processed_total",
			Help: "Total number of help requests processed",
		}),
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_requests_split_total",
			Help: "Total number of multi-task requests split",
		}),
		geocodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_geocode_errors_total",
			Help: "Total number of failed geocoding attempts for requests",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_notifications_total",
			Help: "Total number of chat notification attempts",
		}, []string{"status"}),
	}

	if err := register(reg, &m.cycles); err != nil {
		return nil, err
	}
	if err := register(reg, &m.requests); err != nil {
		return nil, err
	}
	if err := register(reg, &m.splits); err != nil {
		return nil, err
	}
	if err := register(reg, &m.geocodeErrors); err != nil {
		return nil, err
	}
	if err := reg.Register(m.notifications); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			m.notifications = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.Counter) error {
	if err := reg.Register(*c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*c = are.ExistingCollector.(prometheus.Counter)
			return nil
		}
		return err
	}
	return nil
}

func (m *Metrics) CycleRan() { m.cycles.Inc() }

func (m *Metrics) RequestProcessed() { m.requests.Inc() }

func (m *Metrics) RequestSplit() { m.splits.Inc() }

func (m *Metrics) GeocodeErrored() { m.geocodeErrors.Inc() }

func (m *Metrics) NotificationSent(status string) {
	m.notifications.WithLabelValues(status).Inc()
}
