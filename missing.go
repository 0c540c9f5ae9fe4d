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
	"math"
)

// Type is the storage type of a variable's values.
type Type int

// These are the supported value types.
const (
	Char Type = iota + 1
	Int16
	Int32
	Int64
	Float32
	Float64
	Bool
	String
)

// cdlNames are the CDL spellings of each Type.
var cdlNames = map[Type]string{
	Char:    "char",
	Int16:   "short",
	Int32:   "int",
	Int64:   "int64",
	Float32: "float",
	Float64: "double",
	Bool:    "bool",
	String:  "string",
}

func (t Type) String() string {
	if n, ok := cdlNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType returns the Type with the given CDL name.
func ParseType(cdl string) (Type, error) {
	for t, n := range cdlNames {
		if n == cdl {
			return t, nil
		}
	}
	return 0, fmt.Errorf("obs2ioda: %q: %w", cdl, ErrUnknownType)
}

// MissingString marks an absent string value.
const MissingString = "*** MISSING ***"

var lowestFloat32 = float32(-math.MaxFloat32)

// MissingValue returns the sentinel that marks absent data of type t.
// The values match the conventions of the downstream data assimilation
// system. The dynamic type of the result is int16, int32, int64, float32,
// float64, bool, byte or string.
func MissingValue(t Type) (interface{}, error) {
	switch t {
	case Float32:
		f := float32(0.99)
		return lowestFloat32 * f, nil
	case Float64:
		f := float32(0.98)
		return float64(lowestFloat32 * f), nil
	case Int16:
		return int16(math.MinInt16 + 3), nil
	case Int32:
		return int32(math.MinInt32 + 5), nil
	case Int64:
		return int64(math.MinInt64 + 7), nil
	case Bool:
		return false, nil
	case Char:
		return byte(0), nil
	case String:
		return MissingString, nil
	default:
		return nil, fmt.Errorf("obs2ioda: %v: %w", t, ErrUnknownType)
	}
}

// MissingValueOf returns the missing value for the type with the given
// CDL name.
func MissingValueOf(cdl string) (interface{}, error) {
	t, err := ParseType(cdl)
	if err != nil {
		return nil, err
	}
	return MissingValue(t)
}
