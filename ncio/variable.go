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

package ncio

import (
	"fmt"
	"reflect"

	"github.com/NCAR/obs2ioda"
	"github.com/ctessum/sparse"
	"github.com/spf13/cast"
)

// variable buffers the values of one variable until the file is written.
// Numeric values are held as float64 and text values as strings.
type variable struct {
	name  string
	group string
	v     *obs2ioda.Variable
	typ   obs2ioda.Type

	values   interface{}
	channels map[int]interface{}
	fill     interface{}
	attrs    []attribute
}

func (fv *variable) text() bool {
	return fv.typ == obs2ioda.Char || fv.typ == obs2ioda.String
}

// convert checks that values suit the variable's type and returns them
// as []float64 or []string.
func (fv *variable) convert(values interface{}) (interface{}, error) {
	if fv.text() {
		s, ok := values.([]string)
		if !ok {
			return nil, fmt.Errorf("ncio: variable %q of type %v: values must be []string, not %T", fv.name, fv.typ, values)
		}
		return s, nil
	}
	f, err := floats(values)
	if err != nil {
		return nil, fmt.Errorf("ncio: variable %q of type %v: %v", fv.name, fv.typ, err)
	}
	return f, nil
}

// floats converts a slice of numbers or booleans to []float64.
func floats(values interface{}) ([]float64, error) {
	switch v := values.(type) {
	case []float64:
		return append([]float64(nil), v...), nil
	case []bool:
		o := make([]float64, len(v))
		for i, b := range v {
			if b {
				o[i] = 1
			}
		}
		return o, nil
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("values must be a slice, not %T", values)
	}
	o := make([]float64, rv.Len())
	for i := range o {
		x, err := cast.ToFloat64E(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		o[i] = x
	}
	return o, nil
}

func length(data interface{}) int {
	switch d := data.(type) {
	case []float64:
		return len(d)
	case []string:
		return len(d)
	}
	return 0
}

// maxLen returns the length of the longest of rows string values, at
// least 1. Rows without a value hold the fill value.
func (fv *variable) maxLen(rows int) int {
	n := 1
	s, _ := fv.values.([]string)
	for _, v := range s {
		if len(v) > n {
			n = len(v)
		}
	}
	if len(s) < rows {
		if m := len(fv.missing().(string)); m > n {
			n = m
		}
	}
	return n
}

// zero returns a value whose dynamic type selects the stored netCDF type.
func (fv *variable) zero() interface{} {
	switch fv.typ {
	case obs2ioda.Int16:
		return []int16{0}
	case obs2ioda.Int32:
		return []int32{0}
	case obs2ioda.Float32:
		return []float32{0}
	case obs2ioda.Bool:
		return []uint8{0}
	case obs2ioda.Char, obs2ioda.String:
		return ""
	default:
		return []float64{0}
	}
}

// fillValue converts a user fill value to the variable's buffered form.
func (fv *variable) fillValue(value interface{}) (interface{}, error) {
	if fv.text() {
		return cast.ToStringE(value)
	}
	return cast.ToFloat64E(value)
}

// missing returns the value written where the variable has no data.
func (fv *variable) missing() interface{} {
	if fv.fill != nil {
		return fv.fill
	}
	m, err := obs2ioda.MissingValue(fv.typ)
	if err != nil {
		panic(err)
	}
	switch v := m.(type) {
	case string:
		return v
	case byte:
		return string([]byte{v})
	}
	x, err := cast.ToFloat64E(m)
	if err != nil {
		panic(err)
	}
	return x
}

// fillAttribute returns the _FillValue attribute for a user fill value.
func (fv *variable) fillAttribute() interface{} {
	switch fv.typ {
	case obs2ioda.Char:
		s, _ := fv.fill.(string)
		if s == "" {
			return "\x00"
		}
		return s[:1]
	case obs2ioda.String:
		s, _ := fv.fill.(string)
		return s
	}
	x := fv.fill.(float64)
	switch fv.typ {
	case obs2ioda.Int16:
		return []int16{int16(x)}
	case obs2ioda.Int32:
		return []int32{int32(x)}
	case obs2ioda.Float32:
		return []float32{float32(x)}
	case obs2ioda.Bool:
		return []uint8{uint8(x)}
	}
	return []float64{x}
}

// materialize lays the buffered values out in an array of the given
// shape, filling gaps with the fill value, and returns the array in the
// form cdf writes. For a channel variable the last dimension is the
// channel.
func (fv *variable) materialize(shape []int) (interface{}, error) {
	if fv.text() {
		return fv.materializeText(shape)
	}
	a := sparse.ZerosDense(shape...)
	fill := fv.missing().(float64)
	for i := range a.Elements {
		a.Elements[i] = fill
	}
	if v, ok := fv.values.([]float64); ok {
		if len(v) != len(a.Elements) {
			return nil, fmt.Errorf("variable %s: %d values stored for shape %v", fv.name, len(v), shape)
		}
		copy(a.Elements, v)
	}
	nch := shape[len(shape)-1]
	for idx, data := range fv.channels {
		if idx >= nch {
			return nil, fmt.Errorf("variable %s: channel %d outside dimension of %d", fv.name, idx+1, nch)
		}
		d := data.([]float64)
		if len(d)*nch != len(a.Elements) {
			return nil, fmt.Errorf("variable %s: channel %d has %d values for shape %v", fv.name, idx+1, len(d), shape)
		}
		for i, x := range d {
			a.Elements[i*nch+idx] = x
		}
	}
	switch fv.typ {
	case obs2ioda.Int16:
		o := make([]int16, len(a.Elements))
		for i, x := range a.Elements {
			o[i] = int16(x)
		}
		return o, nil
	case obs2ioda.Int32:
		o := make([]int32, len(a.Elements))
		for i, x := range a.Elements {
			o[i] = int32(x)
		}
		return o, nil
	case obs2ioda.Float32:
		o := make([]float32, len(a.Elements))
		for i, x := range a.Elements {
			o[i] = float32(x)
		}
		return o, nil
	case obs2ioda.Bool:
		o := make([]uint8, len(a.Elements))
		for i, x := range a.Elements {
			if x != 0 {
				o[i] = 1
			}
		}
		return o, nil
	}
	return a.Elements, nil
}

// materializeText packs strings into fixed-width rows of the last
// dimension, padding with zero bytes.
func (fv *variable) materializeText(shape []int) (interface{}, error) {
	width := shape[len(shape)-1]
	rows := product(shape[:len(shape)-1])
	b := make([]byte, rows*width)
	values, ok := fv.values.([]string)
	if ok && len(values) != rows {
		return nil, fmt.Errorf("variable %s: %d strings stored for %d rows", fv.name, len(values), rows)
	}
	fill := fv.missing().(string)
	for i := 0; i < rows; i++ {
		s := fill
		if i < len(values) {
			s = values[i]
		}
		copy(b[i*width:(i+1)*width], s)
	}
	return string(b), nil
}

// attributeValue converts an attribute value to a type cdf can store.
func attributeValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []uint8, []int16, []int32, []float32, []float64:
		return v, nil
	case int8:
		return []int16{int16(v)}, nil
	case int16:
		return []int16{v}, nil
	case int32:
		return []int32{v}, nil
	case int:
		return []int32{int32(v)}, nil
	case float32:
		return []float32{v}, nil
	case float64:
		return []float64{v}, nil
	case bool:
		if v {
			return []uint8{1}, nil
		}
		return []uint8{0}, nil
	case []int8:
		o := make([]int16, len(v))
		for i, x := range v {
			o[i] = int16(x)
		}
		return o, nil
	case []int:
		o := make([]int32, len(v))
		for i, x := range v {
			o[i] = int32(x)
		}
		return o, nil
	case []string:
		return nil, fmt.Errorf("string array attributes are not supported")
	}
	f, err := cast.ToFloat64E(value)
	if err == nil {
		return []float64{f}, nil
	}
	s, err := floats(value)
	if err != nil {
		return nil, fmt.Errorf("unsupported attribute type %T", value)
	}
	return s, nil
}
