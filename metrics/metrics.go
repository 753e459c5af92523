// Package metrics holds the Prometheus collectors of the service and the
// server that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "envelope_registry"

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "State-mutating messages handled, by message type and result.",
	}, []string{"type", "result"})

	validationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "envelope_validations_total",
		Help:      "Envelope validations, by result.",
	}, []string{"result"})

	keysRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recipient_keys_registered_total",
		Help:      "Recipient keys registered.",
	})

	keysRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recipient_keys_revoked_total",
		Help:      "Recipient keys revoked.",
	})

	envelopesAcceptedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "envelopes_accepted_total",
		Help:      "Envelopes accepted into committed state.",
	})
)

// Registry is the registry every collector of this package is registered with.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		messagesTotal,
		validationsTotal,
		keysRegisteredTotal,
		keysRevokedTotal,
		envelopesAcceptedTotal,
		collectors.NewGoCollector(),
	)
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObserveMessage records a handled message.
func ObserveMessage(msgType string, err error) {
	messagesTotal.WithLabelValues(msgType, resultOf(err)).Inc()
}

// ObserveValidation records the outcome of an envelope validation.
func ObserveValidation(valid bool) {
	result := ResultOK
	if !valid {
		result = ResultRejected
	}
	validationsTotal.WithLabelValues(result).Inc()
}

func IncKeysRegistered() { keysRegisteredTotal.Inc() }

func IncKeysRevoked() { keysRevokedTotal.Inc() }

func IncEnvelopesAccepted() { envelopesAcceptedTotal.Inc() }
