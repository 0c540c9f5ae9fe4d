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
	"regexp"
)

// Tags of the built-in rules.
const (
	ChannelRule = "channel"
	LegacyRule  = "legacy"
	GroupRule   = "group"
)

// A Rule derives a base name from a raw name by recognizing a structural
// naming convention. Rules are consulted only when a raw name is not a
// known alias.
type Rule struct {
	// Tag names the rule in logs and lookup results.
	Tag  string
	Kind Kind
	Expr *regexp.Regexp

	// Base is the index of the submatch that holds the base name.
	Base int

	// Index is the index of the submatch that holds a one-based channel
	// number, or zero if the rule does not recognize channels.
	Index int
}

// NewRule compiles expr into a Rule. Base and index are submatch indices;
// index is zero for rules that do not extract a channel number.
func NewRule(tag string, kind Kind, expr string, base, index int) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("obs2ioda: rule %q: %v", tag, err)
	}
	n := re.NumSubexp()
	if base < 1 || base > n {
		return Rule{}, fmt.Errorf("obs2ioda: rule %q: base submatch %d out of range [1, %d]", tag, base, n)
	}
	if index < 0 || index > n || (index != 0 && index == base) {
		return Rule{}, fmt.Errorf("obs2ioda: rule %q: invalid index submatch %d", tag, index)
	}
	return Rule{Tag: tag, Kind: kind, Expr: re, Base: base, Index: index}, nil
}

func mustRule(tag string, kind Kind, expr string, base, index int) Rule {
	r, err := NewRule(tag, kind, expr, base, index)
	if err != nil {
		panic(err)
	}
	return r
}

// ChannelVariableRule matches legacy channel variables such as
// "brightness_temperature_4@ObsValue", whose base name is
// "brightness_temperature" and whose channel number is 4.
func ChannelVariableRule() Rule {
	return mustRule(ChannelRule, VariableKind, `^([A-Za-z0-9_]+)_(\d+)@([A-Za-z0-9_]+)$`, 1, 2)
}

// LegacyVariableRule matches any group-qualified legacy variable such as
// "station_id@MetaData", whose base name is "station_id".
func LegacyVariableRule() Rule {
	return mustRule(LegacyRule, VariableKind, `^([A-Za-z0-9_]+)@([A-Za-z0-9_]+)$`, 1, 0)
}

// LegacyGroupRule extracts the group qualifier of a legacy variable name,
// "MetaData" in "station_id@MetaData".
func LegacyGroupRule() Rule {
	return mustRule(GroupRule, GroupKind, `^[A-Za-z0-9_]+@([A-Za-z0-9_]+)$`, 1, 0)
}

// match returns the submatches of raw if r applies to it.
func (r Rule) match(raw string) ([]string, bool) {
	m := r.Expr.FindStringSubmatch(raw)
	return m, m != nil
}

func (r Rule) String() string {
	return fmt.Sprintf("%s(%v %s)", r.Tag, r.Kind, r.Expr)
}
