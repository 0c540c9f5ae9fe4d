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
	"path"
)

// A Dimension is a named, sized dimension of a group.
type Dimension struct {
	Name string
	Size int
}

// A Group is a node of the assembly tree. It owns its child groups,
// dimensions and variables, which are kept in insertion order and are
// unique by canonical name.
type Group struct {
	schema *Schema
	name   string

	groups []*Group
	dims   []Dimension
	vars   []*Variable

	groupIndex map[string]int
	dimIndex   map[string]int
	varIndex   map[string]int
}

func newGroup(s *Schema, name string) *Group {
	return &Group{
		schema:     s,
		name:       name,
		groupIndex: make(map[string]int),
		dimIndex:   make(map[string]int),
		varIndex:   make(map[string]int),
	}
}

// Name returns the canonical name of the group. The root group's name
// is empty.
func (g *Group) Name() string { return g.name }

// AddGroup returns the child group raw refers to, creating it if needed.
func (g *Group) AddGroup(raw string) *Group {
	name := g.schema.ResolveName(GroupKind, raw)
	if i, ok := g.groupIndex[name]; ok {
		return g.groups[i]
	}
	c := newGroup(g.schema, name)
	g.groupIndex[name] = len(g.groups)
	g.groups = append(g.groups, c)
	return c
}

// Group returns the child group raw refers to.
func (g *Group) Group(raw string) (*Group, error) {
	name := g.schema.ResolveName(GroupKind, raw)
	i, ok := g.groupIndex[name]
	if !ok {
		return nil, fmt.Errorf("obs2ioda: group %q (%s) in %q: %w", name, raw, g.name, ErrGroupNotFound)
	}
	return g.groups[i], nil
}

// Groups returns the child groups in insertion order.
func (g *Group) Groups() []*Group { return append([]*Group(nil), g.groups...) }

// AddDimension adds the dimension raw refers to and returns it. If the
// group already holds the dimension, the existing one is returned
// unchanged.
func (g *Group) AddDimension(raw string, size int) Dimension {
	name := g.schema.ResolveName(DimensionKind, raw)
	if i, ok := g.dimIndex[name]; ok {
		return g.dims[i]
	}
	g.dimIndex[name] = len(g.dims)
	g.dims = append(g.dims, Dimension{Name: name, Size: size})
	return g.dims[len(g.dims)-1]
}

// Dimension returns the dimension raw refers to.
func (g *Group) Dimension(raw string) (Dimension, error) {
	name := g.schema.ResolveName(DimensionKind, raw)
	i, ok := g.dimIndex[name]
	if !ok {
		return Dimension{}, fmt.Errorf("obs2ioda: dimension %q (%s) in group %q: %w", name, raw, g.name, ErrDimensionNotFound)
	}
	return g.dims[i], nil
}

// Dimensions returns the group's dimensions in insertion order.
func (g *Group) Dimensions() []Dimension { return append([]Dimension(nil), g.dims...) }

// resize sets the size of a canonical dimension, adding it if needed.
func (g *Group) resize(name string, size int) {
	if i, ok := g.dimIndex[name]; ok {
		g.dims[i].Size = size
		return
	}
	g.dimIndex[name] = len(g.dims)
	g.dims = append(g.dims, Dimension{Name: name, Size: size})
}

// AddVariable adds the variable raw refers to with the given dimensions
// and returns it. If the group already holds the variable, its dimensions
// are left alone. A legacy channel variable name records one more channel
// of the existing variable instead.
func (g *Group) AddVariable(raw string, dims ...string) (*Variable, error) {
	res := g.schema.resolve(VariableKind, raw)
	g.schema.Metrics.resolved(VariableKind, res.Lookup)
	if i, ok := g.varIndex[res.Name()]; ok {
		v := g.vars[i]
		if res.channel() {
			if _, err := v.AddChannelInstance(raw); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
	v := newVariable(g.schema, res)
	for _, d := range dims {
		if err := v.AddDimension(d); err != nil {
			return nil, err
		}
	}
	if v.channel {
		if _, err := v.AddChannelInstance(raw); err != nil {
			return nil, err
		}
	}
	g.varIndex[v.Name()] = len(g.vars)
	g.vars = append(g.vars, v)
	return v, nil
}

// Variable returns the variable raw refers to.
func (g *Group) Variable(raw string) (*Variable, error) {
	name := g.schema.resolve(VariableKind, raw).Name()
	i, ok := g.varIndex[name]
	if !ok {
		return nil, fmt.Errorf("obs2ioda: variable %q (%s) in group %q: %w", name, raw, g.name, ErrVariableNotFound)
	}
	return g.vars[i], nil
}

// Variables returns the group's variables in insertion order.
func (g *Group) Variables() []*Variable { return append([]*Variable(nil), g.vars...) }

// Walk calls fn for g and then for each descendant group, depth first.
// The path of g is empty; descendants are joined with "/".
func (g *Group) Walk(fn func(path string, g *Group) error) error {
	return g.walk("", fn)
}

func (g *Group) walk(p string, fn func(string, *Group) error) error {
	if err := fn(p, g); err != nil {
		return err
	}
	for _, c := range g.groups {
		if err := c.walk(path.Join(p, c.name), fn); err != nil {
			return err
		}
	}
	return nil
}
