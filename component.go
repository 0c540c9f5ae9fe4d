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

// Package obs2ioda resolves legacy IODA observation names to their current
// canonical form and assembles the group, dimension and variable layout of
// an IODA v3 container, folding one-variable-per-channel legacy encodings
// into single multi-channel variables.
package obs2ioda

import (
	"fmt"
	"strings"
)

// Kind identifies the kind of a schema component.
type Kind int

// These are the kinds of schema components.
const (
	AttributeKind Kind = iota
	GroupKind
	DimensionKind
	VariableKind
)

// Kinds holds every Kind in the order the schema document lists them.
var Kinds = []Kind{AttributeKind, GroupKind, DimensionKind, VariableKind}

var kindNames = [...]string{"Attribute", "Group", "Dimension", "Variable"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the Kind named by s. Matching is case-insensitive and
// accepts the plural category names used in schema documents.
func ParseKind(s string) (Kind, error) {
	ls := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for i, n := range kindNames {
		if strings.ToLower(n) == ls {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("obs2ioda: unknown component kind %q", s)
}

// A Component is a single schema entity: its canonical name followed by every
// historical spelling that should resolve to it.
type Component struct {
	kind  Kind
	name  string
	names []string

	// Each element is one acceptable combination of dimension names.
	// Only variables carry these.
	dimensionSets [][]string
}

func newComponent(kind Kind, names []string, dimensionSets [][]string) *Component {
	c := &Component{
		kind:  kind,
		name:  names[0],
		names: append([]string(nil), names...),
	}
	for _, s := range dimensionSets {
		c.dimensionSets = append(c.dimensionSets, append([]string(nil), s...))
	}
	return c
}

// Kind returns the component's kind.
func (c *Component) Kind() Kind { return c.kind }

// Name returns the canonical name, which is the first alias.
func (c *Component) Name() string { return c.name }

// Aliases returns every known name of the component, canonical first.
func (c *Component) Aliases() []string {
	return append([]string(nil), c.names...)
}

// DimensionSets returns the acceptable dimension combinations declared
// for a variable.
func (c *Component) DimensionSets() [][]string {
	o := make([][]string, len(c.dimensionSets))
	for i, s := range c.dimensionSets {
		o[i] = append([]string(nil), s...)
	}
	return o
}

// Outcome tells whether a lookup matched a known component or created
// a placeholder for an unknown name.
type Outcome int

// These are the possible lookup outcomes.
const (
	Found Outcome = iota
	Created
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Created:
		return "created"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Lookup is the result of resolving a name against a Schema.
type Lookup struct {
	Component *Component
	Outcome   Outcome

	// Rule is the tag of the rule that derived Base from the raw name.
	// It is empty when the raw name was looked up directly.
	Rule string

	// Base is the name the registry was queried with.
	Base string
}

// Name returns the canonical name of the looked-up component.
func (l Lookup) Name() string { return l.Component.Name() }
