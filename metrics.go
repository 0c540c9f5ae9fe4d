/*
Copyright © 2024 the obs2ioda authors.
This file is part of obs2ioda.

obs2ioda is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

obs2ioda is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with obs2ioda.  If not, see <http://www.gnu.org/licenses/>.
*/

package obs2ioda

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts name resolutions and conversion results. A nil *Metrics
// records nothing.
type Metrics struct {
	resolutions      *prometheus.CounterVec // By kind, outcome and rule
	channelInstances prometheus.Counter
	files            *prometheus.CounterVec // By status (converted/failed)
}

// NewMetrics creates the obs2ioda metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obs2ioda",
			Subsystem: "schema",
			Name:      "resolutions_total",
			Help:      "Total number of name resolutions",
		}, []string{"kind", "outcome", "rule"}),

		channelInstances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "obs2ioda",
			Subsystem: "assembly",
			Name:      "channel_instances_total",
			Help:      "Total number of legacy channel variables folded into multi-channel variables",
		}),

		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obs2ioda",
			Subsystem: "convert",
			Name:      "files_total",
			Help:      "Total number of converted files",
		}, []string{"status"}),
	}
	for _, c := range []prometheus.Collector{m.resolutions, m.channelInstances, m.files} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) resolved(kind Kind, l Lookup) {
	if m == nil {
		return
	}
	rule := l.Rule
	if rule == "" {
		rule = "exact"
	}
	m.resolutions.WithLabelValues(kind.String(), l.Outcome.String(), rule).Inc()
}

func (m *Metrics) channelInstance() {
	if m == nil {
		return
	}
	m.channelInstances.Inc()
}

// FileDone records the result of converting one file.
func (m *Metrics) FileDone(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.files.WithLabelValues("failed").Inc()
		return
	}
	m.files.WithLabelValues("converted").Inc()
}
