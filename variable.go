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
	"fmt"
	"slices"
	"sort"
)

// ChannelDimension is the name of the dimension that indexes the channels
// of a multi-channel variable.
const ChannelDimension = "Channel"

// A Variable is a variable node of the assembly tree.
type Variable struct {
	schema    *Schema
	component *Component
	channel   bool

	dims []string

	// instances maps each recorded channel index to the legacy name
	// that declared it.
	instances map[int]string
}

func newVariable(s *Schema, res resolution) *Variable {
	v := &Variable{
		schema:    s,
		component: res.Component,
		channel:   res.channel(),
	}
	if v.channel {
		v.instances = make(map[int]string)
	}
	return v
}

// Name returns the canonical name of the variable.
func (v *Variable) Name() string { return v.component.Name() }

// Component returns the schema component of the variable.
func (v *Variable) Component() *Component { return v.component }

// IsChannel reports whether the variable consolidates legacy
// one-variable-per-channel data.
func (v *Variable) IsChannel() bool { return v.channel }

// ChannelIndex returns the zero-based channel index of the legacy name raw.
// It fails if raw resolves to a different variable, if v is not a channel
// variable, or if raw carries no channel number.
func (v *Variable) ChannelIndex(raw string) (int, error) {
	res := v.schema.resolve(VariableKind, raw)
	if res.Name() != v.Name() {
		return -1, fmt.Errorf("obs2ioda: variable %q: %q resolves to %q: %w",
			v.Name(), raw, res.Name(), ErrVariableMismatch)
	}
	if !v.channel {
		return -1, variableError(v.Name(), ErrNotChannelVariable)
	}
	if !res.channel() {
		return -1, fmt.Errorf("obs2ioda: variable %q: %q: %w", v.Name(), raw, ErrMissingChannelIndex)
	}
	return res.channelIndex(raw)
}

// AddChannelInstance records the legacy channel variable raw as one channel
// of v and returns the channel count. Recording the same channel index
// twice does not change the count.
func (v *Variable) AddChannelInstance(raw string) (int, error) {
	i, err := v.ChannelIndex(raw)
	if err != nil {
		return 0, err
	}
	if _, ok := v.instances[i]; !ok {
		v.instances[i] = raw
		v.schema.Metrics.channelInstance()
	}
	return len(v.instances), nil
}

// ChannelCount returns the number of distinct channels recorded.
func (v *Variable) ChannelCount() int { return len(v.instances) }

// ChannelIndices returns the recorded channel indices in increasing order.
func (v *Variable) ChannelIndices() []int {
	o := make([]int, 0, len(v.instances))
	for i := range v.instances {
		o = append(o, i)
	}
	sort.Ints(o)
	return o
}

// CheckChannels returns an error if the recorded channel indices do not
// run contiguously from zero.
func (v *Variable) CheckChannels() error {
	for i, idx := range v.ChannelIndices() {
		if idx != i {
			return fmt.Errorf("obs2ioda: variable %q: channel %d missing below channel %d: %w",
				v.Name(), i+1, idx+1, ErrChannelGap)
		}
	}
	return nil
}

// AddDimension appends the dimension name to the variable's declared
// dimensions. The canonical dimension name must belong to one of the
// variable's declared dimension sets. Adding a dimension twice is a no-op.
func (v *Variable) AddDimension(name string) error {
	dim := v.schema.ResolveName(DimensionKind, name)
	if !v.schema.validDimension(v.component, dim) {
		return fmt.Errorf("obs2ioda: variable %q: dimension %q (%s): %w",
			v.Name(), dim, name, ErrInvalidDimension)
	}
	if !slices.Contains(v.dims, dim) {
		v.dims = append(v.dims, dim)
	}
	return nil
}

// Dimensions returns the canonical dimension names of the variable. Channel
// variables have a trailing channel dimension.
func (v *Variable) Dimensions() []string {
	o := append([]string(nil), v.dims...)
	if ch := v.schema.canonical(DimensionKind, ChannelDimension); v.channel && !slices.Contains(o, ch) {
		o = append(o, ch)
	}
	return o
}
