// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/eigenlayer/utils/wrappers"
)

const resultLabel = "result"

var resultLabels = []string{resultLabel}

// Metrics tracks the committed operations of the eigenlayer engine.
type Metrics struct {
	numRegistered metric.Counter
	numRestaked   metric.Counter
	numExecuted   metric.Counter

	numVerifications metric.CounterVec
}

// New creates engine metrics registered on registerer.
func New(registerer metric.Registerer) (*Metrics, error) {
	m := &Metrics{
		numRegistered: metric.NewCounter(metric.CounterOpts{
			Name: "validators_registered",
			Help: "number of validators registered",
		}),
		numRestaked: metric.NewCounter(metric.CounterOpts{
			Name: "restakes_committed",
			Help: "number of restake operations committed",
		}),
		numExecuted: metric.NewCounter(metric.CounterOpts{
			Name: "actorx_operations_executed",
			Help: "number of ActorX operations executed",
		}),
		numVerifications: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "validator_verifications",
				Help: "number of validator verification decisions by result",
			},
			resultLabels,
		),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(metric.AsCollector(m.numRegistered)),
		registerer.Register(metric.AsCollector(m.numRestaked)),
		registerer.Register(metric.AsCollector(m.numExecuted)),
		registerer.Register(metric.AsCollector(m.numVerifications)),
	)
	return m, errs.Err
}

func (m *Metrics) MarkRegistered() {
	m.numRegistered.Inc()
}

func (m *Metrics) MarkRestaked() {
	m.numRestaked.Inc()
}

func (m *Metrics) MarkExecuted() {
	m.numExecuted.Inc()
}

func (m *Metrics) MarkVerified(verified bool) {
	result := "failed"
	if verified {
		result = "verified"
	}
	m.numVerifications.With(metric.Labels{resultLabel: result}).Inc()
}
