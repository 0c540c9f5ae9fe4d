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
	"strconv"

	"github.com/NCAR/obs2ioda/internal/hash"
	"github.com/sirupsen/logrus"
)

// A Schema maps every known alias of every component to the component that
// owns it, and resolves raw names to canonical names. Unknown names are
// never rejected: a placeholder component is created for them.
//
// A Schema is not safe for concurrent use. Each open container owns one.
type Schema struct {
	// Log receives placeholder and alias-conflict messages.
	// If nil, logrus.StandardLogger is used.
	Log logrus.FieldLogger

	// Metrics, if non-nil, counts resolutions.
	Metrics *Metrics

	doc        *Document
	byAlias    [len(kindNames)]map[string]*Component
	components [len(kindNames)][]*Component
	rules      [len(kindNames)][]Rule

	// implicit marks the variables created from dimension entries.
	implicit map[*Component]bool
	created  map[*Component]bool
}

// NewSchema builds a Schema from doc. Dimensions are registered as
// variables too, so that coordinate variables such as Location resolve
// like any other variable. When two entries declare the same alias, the
// first one keeps it and a warning is logged.
func NewSchema(doc *Document, log logrus.FieldLogger) (*Schema, error) {
	if err := doc.Check(); err != nil {
		return nil, err
	}
	s := &Schema{
		Log:      log,
		doc:      doc,
		implicit: make(map[*Component]bool),
		created:  make(map[*Component]bool),
	}
	for k := range s.byAlias {
		s.byAlias[k] = make(map[string]*Component)
	}
	for _, k := range Kinds {
		for _, e := range doc.entries(k) {
			var sets [][]string
			for _, ds := range e.Dimensions {
				sets = append(sets, []string(ds))
			}
			s.add(k, e.aliases(k), sets)
		}
	}
	for _, e := range doc.Dimensions {
		c := s.add(VariableKind, e.Dimension, [][]string{{e.Dimension[0]}})
		s.implicit[c] = true
	}
	return s, nil
}

// NewDefaultSchema returns a Schema built from the built-in document with
// the legacy rules registered.
func NewDefaultSchema(log logrus.FieldLogger) *Schema {
	s, err := NewSchema(DefaultDocument(), log)
	if err != nil {
		panic(err)
	}
	s.AddLegacyRules()
	return s
}

func (s *Schema) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// add registers a component under each of its names.
func (s *Schema) add(kind Kind, names []string, sets [][]string) *Component {
	c := newComponent(kind, names, sets)
	s.components[kind] = append(s.components[kind], c)
	for _, n := range names {
		prev, ok := s.byAlias[kind][n]
		if !ok {
			s.byAlias[kind][n] = c
			continue
		}
		if prev != c {
			s.log().WithFields(logrus.Fields{
				"kind":      kind,
				"name":      n,
				"canonical": prev.Name(),
				"ignored":   c.Name(),
			}).Warn("obs2ioda: alias already bound to another component")
		}
	}
	return c
}

// Lookup returns the component that owns name. If there is none, a new
// component whose only alias is name is created and registered.
func (s *Schema) Lookup(kind Kind, name string) Lookup {
	if c, ok := s.byAlias[kind][name]; ok {
		return Lookup{Component: c, Outcome: Found, Base: name}
	}
	c := s.add(kind, []string{name}, nil)
	s.created[c] = true
	s.log().WithFields(logrus.Fields{
		"kind": kind,
		"name": name,
	}).Debug("obs2ioda: created placeholder for unknown name")
	return Lookup{Component: c, Outcome: Created, Base: name}
}

// resolution is a Lookup along with the rule match that produced it.
type resolution struct {
	Lookup
	rule  *Rule
	match []string
}

func (s *Schema) resolve(kind Kind, raw string) resolution {
	if c, ok := s.byAlias[kind][raw]; ok {
		return resolution{Lookup: Lookup{Component: c, Outcome: Found, Base: raw}}
	}
	for _, r := range s.rules[kind] {
		m, ok := r.match(raw)
		if !ok {
			continue
		}
		l := s.Lookup(kind, m[r.Base])
		l.Rule = r.Tag
		r := r
		return resolution{Lookup: l, rule: &r, match: m}
	}
	return resolution{Lookup: s.Lookup(kind, raw)}
}

// channel reports whether the name was recognized by a channel rule.
func (r resolution) channel() bool { return r.rule != nil && r.rule.Index > 0 }

func (r resolution) channelIndex(raw string) (int, error) {
	if !r.channel() {
		return -1, variableError(raw, ErrNotChannelVariable)
	}
	n, err := strconv.Atoi(r.match[r.rule.Index])
	if err != nil || n < 1 {
		return -1, fmt.Errorf("obs2ioda: variable %q: channel number %q: %w",
			raw, r.match[r.rule.Index], ErrMissingChannelIndex)
	}
	return n - 1, nil
}

// Resolve returns the component raw refers to. An exact alias match wins.
// Otherwise the rules registered for kind are tried in registration order
// and the base name extracted by the first matching rule is looked up.
// If no rule matches, raw itself is looked up. Either lookup creates a
// placeholder component when the name is unknown.
func (s *Schema) Resolve(kind Kind, raw string) Lookup {
	l := s.resolve(kind, raw).Lookup
	s.Metrics.resolved(kind, l)
	return l
}

// ResolveName returns the canonical name of the component raw refers to.
func (s *Schema) ResolveName(kind Kind, raw string) string {
	return s.Resolve(kind, raw).Name()
}

// GroupOf returns the canonical name of the group encoded in a legacy
// variable name such as "station_id@MetaData". It returns false if no
// group rule matches.
func (s *Schema) GroupOf(raw string) (string, bool) {
	for _, r := range s.rules[GroupKind] {
		m, ok := r.match(raw)
		if !ok {
			continue
		}
		l := s.Lookup(GroupKind, m[r.Base])
		l.Rule = r.Tag
		s.Metrics.resolved(GroupKind, l)
		return l.Name(), true
	}
	return "", false
}

// IsChannelVariable reports whether raw is a legacy channel variable name.
func (s *Schema) IsChannelVariable(raw string) bool {
	return s.resolve(VariableKind, raw).channel()
}

// ChannelIndex returns the zero-based channel index encoded in a legacy
// channel variable name. Legacy channel numbers start at one.
func (s *Schema) ChannelIndex(raw string) (int, error) {
	return s.resolve(VariableKind, raw).channelIndex(raw)
}

// canonical returns the canonical name of a known alias, or name itself.
// Unlike Lookup it never creates a component.
func (s *Schema) canonical(kind Kind, name string) string {
	if c, ok := s.byAlias[kind][name]; ok {
		return c.Name()
	}
	return name
}

// Known reports whether name is a registered alias of kind.
func (s *Schema) Known(kind Kind, name string) bool {
	_, ok := s.byAlias[kind][name]
	return ok
}

// AddRule appends r to the rules of its kind. Rules are tried in the
// order they were added, so more specific rules must be added first.
// Attribute names are never rewritten, so attribute rules are rejected.
func (s *Schema) AddRule(r Rule) error {
	if r.Expr == nil {
		return fmt.Errorf("obs2ioda: rule %q has no expression", r.Tag)
	}
	if r.Kind == AttributeKind || r.Kind < 0 || int(r.Kind) >= len(kindNames) {
		return fmt.Errorf("obs2ioda: rule %q: rules cannot apply to %v names", r.Tag, r.Kind)
	}
	s.rules[r.Kind] = append(s.rules[r.Kind], r)
	return nil
}

// AddLegacyRules registers the rules that recognize v1 names: the channel
// variable rule, then the general group-qualified variable rule, then the
// group rule.
func (s *Schema) AddLegacyRules() {
	for _, r := range []Rule{ChannelVariableRule(), LegacyVariableRule(), LegacyGroupRule()} {
		if err := s.AddRule(r); err != nil {
			panic(err)
		}
	}
}

// Rules returns the rules registered for kind in the order they are tried.
func (s *Schema) Rules(kind Kind) []Rule {
	return append([]Rule(nil), s.rules[kind]...)
}

// Components returns the components of kind in registration order,
// including placeholders.
func (s *Schema) Components(kind Kind) []*Component {
	return append([]*Component(nil), s.components[kind]...)
}

// Placeholders returns the components of kind that were created for
// unknown names, in creation order.
func (s *Schema) Placeholders(kind Kind) []*Component {
	var o []*Component
	for _, c := range s.components[kind] {
		if s.created[c] {
			o = append(o, c)
		}
	}
	return o
}

// Document returns a document declaring every component currently in the
// schema, placeholders included.
func (s *Schema) Document() *Document {
	d := new(Document)
	for _, k := range Kinds {
		for _, c := range s.components[k] {
			if s.implicit[c] {
				continue
			}
			switch k {
			case AttributeKind:
				d.Attributes = append(d.Attributes, Entry{Attribute: c.Aliases()})
			case GroupKind:
				d.Groups = append(d.Groups, Entry{Group: c.Aliases()})
			case DimensionKind:
				d.Dimensions = append(d.Dimensions, Entry{Dimension: c.Aliases()})
			case VariableKind:
				e := Entry{Variable: c.Aliases()}
				for _, ds := range c.dimensionSets {
					e.Dimensions = append(e.Dimensions, append(AliasList(nil), ds...))
				}
				d.Variables = append(d.Variables, e)
			}
		}
	}
	return d
}

// Fingerprint identifies the source document and rules of the schema.
// Placeholders created during resolution do not change it.
func (s *Schema) Fingerprint() string {
	var rules []string
	for _, k := range Kinds {
		for _, r := range s.rules[k] {
			rules = append(rules, r.String())
		}
	}
	return hash.Fingerprint(s.doc, rules)
}

// validDimension reports whether canonical dimension dim belongs to one of
// the declared dimension sets of c. A component without declared sets
// accepts any dimension.
func (s *Schema) validDimension(c *Component, dim string) bool {
	if len(c.dimensionSets) == 0 {
		return true
	}
	for _, set := range c.dimensionSets {
		for _, n := range set {
			if s.canonical(DimensionKind, n) == dim {
				return true
			}
		}
	}
	return false
}
