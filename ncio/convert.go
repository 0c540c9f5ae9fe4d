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
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"reflect"
	"sort"
	"strings"

	"github.com/NCAR/obs2ioda"
	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/sirupsen/logrus"
)

// ErrUnknownNames is returned by a strict conversion when the input uses
// names the schema does not declare.
var ErrUnknownNames = errors.New("names not declared in schema")

// A Report summarizes one conversion.
type Report struct {
	Input, Output string

	// Fingerprint identifies the schema the names were resolved with.
	Fingerprint string

	// Variables holds the stored names of the output variables.
	Variables []string

	// Channels is the size of the output channel dimension.
	Channels int

	// Created holds, by kind, the names that were not in the schema.
	Created map[obs2ioda.Kind][]string

	// Skipped holds input variables that could not be converted, with
	// the reason.
	Skipped []string
}

// A Converter rewrites IODA v1 files as v3 files.
type Converter struct {
	Library *Library

	// Strict makes a conversion fail if the input uses any name the
	// schema does not declare. The output file is removed.
	Strict bool
}

// Convert converts input to output with a default converter.
func Convert(ctx context.Context, l *Library, input, output string) (*Report, error) {
	c := &Converter{Library: l}
	return c.Convert(ctx, input, output)
}

// entry is one input variable read into memory.
type entry struct {
	group, name string
	typ         obs2ioda.Type
	dims        []string
	nums        []float64
	strs        []string
	attrs       api.AttributeMap
}

// Convert reads the netCDF classic or netCDF-4 file at input and writes
// its contents under v3 names to output.
func (c *Converter) Convert(ctx context.Context, input, output string) (_ *Report, err error) {
	defer func() { c.Library.Metrics.FileDone(err) }()
	nc, err := netcdf.Open(input)
	if err != nil {
		return nil, fmt.Errorf("ncio: opening %s: %v", input, err)
	}
	defer nc.Close()

	r := &Report{Input: input, Output: output, Created: make(map[obs2ioda.Kind][]string)}
	var (
		entries  []*entry
		groups   []string
		groupAtt = make(map[string]api.AttributeMap)
		dimOrder []string
		dimSize  = make(map[string]int)
	)
	err = walk(nc, "", func(g api.Group, gpath string) error {
		if gpath != "" {
			groups = append(groups, gpath)
		}
		groupAtt[gpath] = g.Attributes()
		for _, name := range g.ListVariables() {
			e, err := readEntry(g, gpath, name)
			if err != nil {
				r.Skipped = append(r.Skipped, fmt.Sprintf("%s: %v", path.Join(gpath, name), err))
				continue
			}
			shape := e.shape
			for i, d := range e.dims {
				if n, ok := dimSize[d]; ok && n != shape[i] {
					return fmt.Errorf("ncio: %s: dimension %s has lengths %d and %d", input, d, n, shape[i])
				} else if !ok {
					dimOrder = append(dimOrder, d)
					dimSize[d] = shape[i]
				}
			}
			entries = append(entries, e.entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l := c.Library
	h, err := l.Create(output)
	if err != nil {
		return nil, err
	}
	f, err := l.File(h)
	if err != nil {
		return nil, err
	}
	log := f.log()
	fail := func(err error) (*Report, error) {
		if cerr := l.Close(h); cerr != nil {
			log.WithError(cerr).Debug("ncio: closing failed conversion")
		}
		os.Remove(output)
		return nil, err
	}

	for _, g := range groups {
		parent, name := path.Split(g)
		if err := l.AddGroup(h, strings.TrimSuffix(parent, "/"), name); err != nil {
			return fail(err)
		}
	}
	for _, d := range dimOrder {
		if err := l.AddDim(h, "", d, dimSize[d]); err != nil {
			return fail(err)
		}
	}
	// Declare everything before storing values so that the channel
	// dimension has its final size.
	for _, e := range entries {
		if err := l.AddVar(h, e.group, e.name, e.typ, e.dims); err != nil {
			return fail(err)
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		var values interface{} = e.nums
		if e.typ == obs2ioda.String {
			values = e.strs
		}
		if err := l.PutVar(h, e.group, e.name, values); err != nil {
			return fail(err)
		}
		if err := c.putAttributes(h, e.group, e.name, e.attrs); err != nil {
			return fail(err)
		}
	}
	for _, g := range append([]string{""}, groups...) {
		if err := c.putAttributes(h, g, "", groupAtt[g]); err != nil {
			return fail(err)
		}
	}

	s := f.Session().Schema()
	r.Fingerprint = s.Fingerprint()
	r.Channels = f.Session().ChannelCount()
	f.Session().Root().Walk(func(p string, g *obs2ioda.Group) error {
		for _, v := range g.Variables() {
			r.Variables = append(r.Variables, path.Join(p, v.Name()))
		}
		return nil
	})
	var unknown []string
	for _, k := range obs2ioda.Kinds {
		for _, comp := range s.Placeholders(k) {
			r.Created[k] = append(r.Created[k], comp.Name())
			unknown = append(unknown, k.String()+" "+comp.Name())
		}
	}
	if c.Strict && len(unknown) > 0 {
		return fail(fmt.Errorf("ncio: %s: %w: %s", input, ErrUnknownNames, strings.Join(unknown, ", ")))
	}
	if err := l.Close(h); err != nil {
		os.Remove(output)
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"input":     input,
		"variables": len(r.Variables),
		"skipped":   len(r.Skipped),
	}).Info("ncio: converted file")
	return r, nil
}

// putAttributes replays an attribute map onto a variable, or onto a group
// if name is empty. A _FillValue attribute sets the fill value.
func (c *Converter) putAttributes(h int, group, name string, attrs api.AttributeMap) error {
	if attrs == nil {
		return nil
	}
	for _, k := range attrs.Keys() {
		v, ok := attrs.Get(k)
		if !ok {
			continue
		}
		if k == "_FillValue" && name != "" {
			if err := c.Library.SetFill(h, group, name, first(v)); err != nil {
				return err
			}
			continue
		}
		if err := c.Library.PutAtt(h, group, name, k, v); err != nil {
			return err
		}
	}
	return nil
}

// first returns the first element of a slice value, or v itself.
func first(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Len() > 0 {
		return rv.Index(0).Interface()
	}
	return v
}

// walk calls fn for g and then for each of its subgroups, depth first, in
// name order.
func walk(g api.Group, gpath string, fn func(api.Group, string) error) error {
	if err := fn(g, gpath); err != nil {
		return err
	}
	names := g.ListSubgroups()
	sort.Strings(names)
	for _, n := range names {
		sg, err := g.GetGroup(n)
		if err != nil {
			return fmt.Errorf("ncio: group %s: %v", path.Join(gpath, n), err)
		}
		if err := walk(sg, path.Join(gpath, n), fn); err != nil {
			return err
		}
	}
	return nil
}

// inputTypes maps CDL type names of input variables to stored types.
// Character arrays become strings, and types without a signed
// counterpart of the same width are widened.
var inputTypes = map[string]obs2ioda.Type{
	"byte":   obs2ioda.Int16,
	"ubyte":  obs2ioda.Int16,
	"char":   obs2ioda.String,
	"string": obs2ioda.String,
	"short":  obs2ioda.Int16,
	"ushort": obs2ioda.Int32,
	"int":    obs2ioda.Int32,
	"uint":   obs2ioda.Int64,
	"int64":  obs2ioda.Int64,
	"uint64": obs2ioda.Int64,
	"float":  obs2ioda.Float32,
	"double": obs2ioda.Float64,
}

type shapedEntry struct {
	*entry
	shape []int
}

func readEntry(g api.Group, gpath, name string) (shapedEntry, error) {
	vg, err := g.GetVarGetter(name)
	if err != nil {
		return shapedEntry{}, err
	}
	cdl := vg.Type()
	t, ok := inputTypes[cdl]
	if !ok {
		return shapedEntry{}, fmt.Errorf("unsupported type %s", cdl)
	}
	values, err := vg.Values()
	if err != nil {
		return shapedEntry{}, err
	}
	e := &entry{group: gpath, name: name, typ: t, attrs: vg.Attributes()}
	var shape []int
	if err := flatten(reflect.ValueOf(values), 0, &shape, e); err != nil {
		return shapedEntry{}, err
	}
	dims := vg.Dimensions()
	if cdl == "char" && len(dims) == len(shape)+1 {
		// The string length dimension is folded into the strings.
		dims = dims[:len(dims)-1]
	}
	if len(dims) == 0 {
		return shapedEntry{}, fmt.Errorf("scalar variables are not converted")
	}
	e.dims = dims
	if len(shape) != len(dims) {
		return shapedEntry{}, fmt.Errorf("values have %d dimensions, want %d", len(shape), len(dims))
	}
	for i, n := range shape {
		if n < 1 {
			return shapedEntry{}, fmt.Errorf("dimension %s is empty", dims[i])
		}
	}
	return shapedEntry{entry: e, shape: shape}, nil
}

// flatten appends the leaves of nested slices to e in row-major order
// and records the slice lengths at each depth in shape.
func flatten(v reflect.Value, depth int, shape *[]int, e *entry) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if len(*shape) == depth {
			*shape = append(*shape, v.Len())
		}
		for i := 0; i < v.Len(); i++ {
			if err := flatten(v.Index(i), depth+1, shape, e); err != nil {
				return err
			}
		}
	case reflect.String:
		e.strs = append(e.strs, strings.TrimRight(v.String(), "\x00"))
	case reflect.Bool:
		x := 0.
		if v.Bool() {
			x = 1
		}
		e.nums = append(e.nums, x)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.nums = append(e.nums, float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		e.nums = append(e.nums, float64(v.Uint()))
	case reflect.Float32, reflect.Float64:
		e.nums = append(e.nums, v.Float())
	case reflect.Interface:
		return flatten(v.Elem(), depth, shape, e)
	default:
		return fmt.Errorf("unsupported value type %v", v.Type())
	}
	return nil
}
