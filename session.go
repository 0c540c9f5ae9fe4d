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
	"errors"
	"strings"
)

// A Session assembles the group, dimension and variable layout of one
// container from the names a decoder emits. It is not safe for concurrent
// use.
type Session struct {
	schema *Schema
	root   *Group
}

// NewSession returns an empty session that resolves names with s.
func NewSession(s *Schema) *Session {
	return &Session{schema: s, root: newGroup(s, "")}
}

// Schema returns the schema the session resolves names with.
func (s *Session) Schema() *Schema { return s.schema }

// Root returns the root group.
func (s *Session) Root() *Group { return s.root }

// ResolveName returns the canonical name of raw.
func (s *Session) ResolveName(kind Kind, raw string) string {
	return s.schema.ResolveName(kind, raw)
}

// ResolveGroupOf returns the canonical group encoded in a legacy variable
// name, and false if raw carries no group.
func (s *Session) ResolveGroupOf(raw string) (string, bool) {
	return s.schema.GroupOf(raw)
}

// IsChannelVariable reports whether raw is a legacy channel variable name.
func (s *Session) IsChannelVariable(raw string) bool {
	return s.schema.IsChannelVariable(raw)
}

// ChannelIndexOf returns the zero-based channel index of the legacy channel
// variable raw.
func (s *Session) ChannelIndexOf(raw string) (int, error) {
	g := s.root
	if name, ok := s.schema.GroupOf(raw); ok {
		var err error
		if g, err = s.root.Group(name); err != nil {
			return s.schema.ChannelIndex(raw)
		}
	}
	if v, err := g.Variable(raw); err == nil {
		return v.ChannelIndex(raw)
	}
	return s.schema.ChannelIndex(raw)
}

// Group returns the group at path, a "/"-separated list of group names.
// The empty path is the root group.
func (s *Session) Group(path string) (*Group, error) {
	g := s.root
	for _, n := range strings.Split(path, "/") {
		if n == "" {
			continue
		}
		var err error
		if g, err = g.Group(n); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// placement returns the group a variable belongs in. A group encoded in a
// legacy name takes precedence over group and is created if missing.
func (s *Session) placement(group, raw string) (*Group, error) {
	if name, ok := s.schema.GroupOf(raw); ok {
		return s.root.AddGroup(name), nil
	}
	return s.Group(group)
}

// DeclareGroup adds a group to the group at parent.
func (s *Session) DeclareGroup(parent, raw string) (*Group, error) {
	p, err := s.Group(parent)
	if err != nil {
		return nil, err
	}
	return p.AddGroup(raw), nil
}

// DeclareDimension adds a dimension to the group at path. Declaring the
// root channel dimension again grows it to size if it is smaller.
func (s *Session) DeclareDimension(group, raw string, size int) (Dimension, error) {
	g, err := s.Group(group)
	if err != nil {
		return Dimension{}, err
	}
	name := s.schema.ResolveName(DimensionKind, raw)
	if g == s.root && name == s.schema.canonical(DimensionKind, ChannelDimension) {
		if d, err := g.Dimension(name); err == nil && d.Size < size {
			g.resize(name, size)
		}
	}
	return g.AddDimension(raw, size), nil
}

// DeclareVariable adds a variable to the group at path, or to the group
// encoded in raw if it is a legacy name. Declaring a further instance of
// a legacy channel variable grows the channel dimension.
func (s *Session) DeclareVariable(group, raw string, dims []string) (*Variable, error) {
	g, err := s.placement(group, raw)
	if err != nil {
		return nil, err
	}
	v, err := g.AddVariable(raw, dims...)
	if err != nil {
		return nil, err
	}
	if v.IsChannel() {
		s.syncChannels()
	}
	return v, nil
}

// DeclareChannelInstance records raw as one channel of its consolidated
// variable, declaring the variable if needed, and returns the variable's
// channel count.
func (s *Session) DeclareChannelInstance(raw string) (int, error) {
	if !s.schema.IsChannelVariable(raw) {
		return 0, variableError(raw, ErrNotChannelVariable)
	}
	g, err := s.placement("", raw)
	if err != nil {
		return 0, err
	}
	v, err := g.Variable(raw)
	switch {
	case errors.Is(err, ErrVariableNotFound):
		if v, err = g.AddVariable(raw); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if _, err := v.AddChannelInstance(raw); err != nil {
			return 0, err
		}
	}
	s.syncChannels()
	return v.ChannelCount(), nil
}

// ChannelCount returns the size of the shared channel dimension: the
// largest channel count of any channel variable, or the declared size if
// that is larger.
func (s *Session) ChannelCount() int {
	d, err := s.root.Dimension(ChannelDimension)
	if err != nil {
		return 0
	}
	return d.Size
}

// syncChannels grows the shared channel dimension to the largest channel
// count in the tree. It never shrinks a declared size.
func (s *Session) syncChannels() {
	n := s.ChannelCount()
	s.root.Walk(func(_ string, g *Group) error {
		for _, v := range g.vars {
			if v.channel && v.ChannelCount() > n {
				n = v.ChannelCount()
			}
		}
		return nil
	})
	s.root.resize(s.schema.canonical(DimensionKind, ChannelDimension), n)
}

// Check verifies that every channel variable's channels are contiguous.
func (s *Session) Check() error {
	var errs Errors
	s.root.Walk(func(_ string, g *Group) error {
		for _, v := range g.vars {
			if err := v.CheckChannels(); err != nil {
				errs = append(errs, err)
			}
		}
		return nil
	})
	return errs.Err()
}
