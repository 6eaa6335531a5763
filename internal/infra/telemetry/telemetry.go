package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "goshopper"

// Metrics holds the account domain counters.
type Metrics struct {
	LoginAttempts     *prometheus.CounterVec
	Lockouts          prometheus.Counter
	RegistrationSteps *prometheus.CounterVec
	OTPSent           prometheus.Counter
	Payments          *prometheus.CounterVec
	EventFailures     *prometheus.CounterVec
}

// NewMetrics registers the domain counters on reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Sign-in attempts by result",
		}, []string{"result"}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_lockouts_total",
			Help:      "Identifiers locked after repeated failures",
		}),
		RegistrationSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_steps_total",
			Help:      "Registration steps by step and outcome",
		}, []string{"step", "outcome"}),
		OTPSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_sent_total",
			Help:      "One-time codes sent",
		}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment transitions by status",
		}, []string{"status"}),
		EventFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_delivery_failures_total",
			Help:      "Domain events the broker rejected, by topic",
		}, []string{"topic"}),
	}
	reg.MustRegister(m.LoginAttempts, m.Lockouts, m.RegistrationSteps, m.OTPSent, m.Payments, m.EventFailures)
	return m
}

// ObserveLogin counts a sign-in result. Safe on a nil receiver.
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLockout() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

func (m *Metrics) ObserveRegistrationStep(step, outcome string) {
	if m == nil {
		return
	}
	m.RegistrationSteps.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) ObserveOTPSent() {
	if m == nil {
		return
	}
	m.OTPSent.Inc()
}

func (m *Metrics) ObservePayment(status string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(status).Inc()
}

// ObserveEventFailure has the shape of a kafka delivery failure hook.
func (m *Metrics) ObserveEventFailure(topic string, _ error) {
	if m == nil {
		return
	}
	m.EventFailures.WithLabelValues(topic).Inc()
}
