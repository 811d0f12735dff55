// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/googlegenomics/refgen/lookup"
)

type metrics struct {
	inferences *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer, cache *lookup.Cache) *metrics {
	m := &metrics{
		inferences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refgen",
			Name:      "inferences_total",
			Help:      "Inference results by endpoint and result kind.",
		}, []string{"endpoint", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "refgen",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving inference requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	reg.MustRegister(m.inferences, m.duration)
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "refgen",
		Name:      "table_loads_total",
		Help:      "Lookup tables read from storage.",
	}, func() float64 { return float64(cache.Loads()) }))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "refgen",
		Name:      "tables_cached",
		Help:      "Lookup tables held in memory.",
	}, func() float64 { return float64(cache.Len()) }))
	return m
}
