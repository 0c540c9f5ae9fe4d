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

package obs2iodautil

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/NCAR/obs2ioda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	registry = prometheus.NewRegistry()
	metrics  *obs2ioda.Metrics
)

func init() {
	var err error
	if metrics, err = obs2ioda.NewMetrics(registry); err != nil {
		panic(err)
	}
}

// writeMetrics writes the current metrics to the file at path in the
// Prometheus text format. Nothing is written if path is empty.
func writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	mfs, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("obs2ioda: gathering metrics: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("obs2ioda: writing metrics: %v", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			f.Close()
			return fmt.Errorf("obs2ioda: writing metrics: %v", err)
		}
	}
	return f.Close()
}

// Resolve writes a table giving, for each raw name, its canonical name,
// the group encoded in it, its zero-based channel index, whether it was
// found in the schema or created, and the rule that matched it. A name
// with an invalid channel number shows the error in its INDEX column.
func Resolve(w io.Writer, s *obs2ioda.Schema, kind obs2ioda.Kind, names []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCANONICAL\tGROUP\tINDEX\tOUTCOME\tRULE")
	for _, n := range names {
		l := s.Resolve(kind, n)
		group, index, rule := "-", "-", "-"
		if kind == obs2ioda.VariableKind {
			if g, ok := s.GroupOf(n); ok {
				group = g
			}
			if s.IsChannelVariable(n) {
				if i, err := s.ChannelIndex(n); err != nil {
					index = "error: " + err.Error()
				} else {
					index = strconv.Itoa(i)
				}
			}
		}
		if l.Rule != "" {
			rule = l.Rule
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\t%s\n", n, l.Name(), group, index, l.Outcome, rule)
	}
	return tw.Flush()
}

// PrintSchema writes the schema document as YAML followed by the schema
// fingerprint.
func PrintSchema(w io.Writer, s *obs2ioda.Schema) error {
	b, err := s.Document().Marshal()
	if err != nil {
		return fmt.Errorf("obs2ioda: rendering schema: %v", err)
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "# fingerprint: %s\n", s.Fingerprint())
	return err
}
