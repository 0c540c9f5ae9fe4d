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

// Package ncio writes IODA v3 observation containers. Names are resolved
// and placed by an obs2ioda.Session, values are buffered in memory, and
// the container is written as a netCDF classic file when it is closed.
//
// NetCDF classic files have no groups. A variable, dimension or attribute
// that belongs to a group is stored under its group path, so
// brightnessTemperature in group ObsValue is stored as
// "ObsValue/brightnessTemperature", and the global attribute "groups"
// lists every group.
package ncio

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/NCAR/obs2ioda"
	"github.com/ctessum/cdf"
	"github.com/sirupsen/logrus"
)

// TypeAttribute names the attribute that records the original type of
// variables whose type netCDF classic cannot store directly.
const TypeAttribute = "_Obs2iodaType"

// A File is an IODA container under construction.
type File struct {
	// Log receives a message when the file is written.
	Log logrus.FieldLogger

	path    string
	w       *os.File
	session *obs2ioda.Session

	vars  []*variable
	index map[string]*variable

	// attrs holds group attributes by group path. The root path is "".
	attrs map[string][]attribute
}

type attribute struct {
	name  string
	value interface{}
}

// setAttribute replaces the attribute called name or appends it.
func setAttribute(attrs []attribute, name string, value interface{}) []attribute {
	for i, a := range attrs {
		if a.name == name {
			attrs[i].value = value
			return attrs
		}
	}
	return append(attrs, attribute{name: name, value: value})
}

// Create creates the file at path. Names are resolved with s.
func Create(path string, s *obs2ioda.Schema) (*File, error) {
	w, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ncio: creating file: %v", err)
	}
	return &File{
		path:    path,
		w:       w,
		session: obs2ioda.NewSession(s),
		index:   make(map[string]*variable),
		attrs:   make(map[string][]attribute),
	}, nil
}

// Path returns the location of the file.
func (f *File) Path() string { return f.path }

// Session returns the session that assembles the file's layout.
func (f *File) Session() *obs2ioda.Session { return f.session }

func (f *File) log() logrus.FieldLogger {
	if f.Log == nil {
		return logrus.StandardLogger()
	}
	return f.Log
}

// groupPath returns the canonical form of a "/"-separated group path.
func (f *File) groupPath(group string) string {
	var parts []string
	for _, n := range strings.Split(group, "/") {
		if n != "" {
			parts = append(parts, f.session.ResolveName(obs2ioda.GroupKind, n))
		}
	}
	return strings.Join(parts, "/")
}

// placement returns the canonical path of the group a variable belongs in.
// A group encoded in a legacy variable name takes precedence.
func (f *File) placement(group, raw string) string {
	if g, ok := f.session.ResolveGroupOf(raw); ok {
		return g
	}
	return f.groupPath(group)
}

// AddGroup adds a group to the group at parent and returns its path.
func (f *File) AddGroup(parent, raw string) (string, error) {
	g, err := f.session.DeclareGroup(parent, raw)
	if err != nil {
		return "", fmt.Errorf("ncio: adding group %q: %w", raw, err)
	}
	return path.Join(f.groupPath(parent), g.Name()), nil
}

// AddDim adds a dimension to the group at path and returns its canonical
// name. Adding an existing dimension keeps its first size.
func (f *File) AddDim(group, raw string, size int) (string, error) {
	if size < 1 {
		return "", fmt.Errorf("ncio: dimension %q: size %d must be positive", raw, size)
	}
	d, err := f.session.DeclareDimension(group, raw, size)
	if err != nil {
		return "", fmt.Errorf("ncio: adding dimension %q: %w", raw, err)
	}
	return d.Name, nil
}

// dimension finds the canonical dimension name visible from the group at
// gpath, searching enclosing groups outward. It returns the stored name
// and the size.
func (f *File) dimension(gpath, name string) (string, int, error) {
	p := gpath
	for {
		if g, err := f.session.Group(p); err == nil {
			if d, err := g.Dimension(name); err == nil {
				return path.Join(p, d.Name), d.Size, nil
			}
		}
		if p == "" {
			break
		}
		if p = path.Dir(p); p == "." {
			p = ""
		}
	}
	return "", 0, fmt.Errorf("ncio: dimension %q in group %q: %w", name, gpath, obs2ioda.ErrDimensionNotFound)
}

// AddVar declares a variable of type t with the given dimensions. For a
// legacy name the group comes from the name and is created if missing.
// Declaring a further instance of a legacy channel variable only records
// the channel.
func (f *File) AddVar(group, raw string, t obs2ioda.Type, dims []string) error {
	if _, err := obs2ioda.MissingValue(t); err != nil {
		return fmt.Errorf("ncio: variable %q: %w", raw, err)
	}
	channel := f.session.IsChannelVariable(raw)
	if channel && (t == obs2ioda.Char || t == obs2ioda.String) {
		return fmt.Errorf("ncio: variable %q: text channel variables are not supported", raw)
	}
	if t == obs2ioda.Char && len(dims) == 0 {
		return fmt.Errorf("ncio: char variable %q needs a string length dimension", raw)
	}
	if len(dims) == 0 && !channel {
		return fmt.Errorf("ncio: variable %q has no dimensions", raw)
	}
	gpath := f.placement(group, raw)
	scope := gpath
	if _, err := f.session.Group(gpath); err != nil {
		// A group named by a legacy variable is created under the root.
		scope = ""
	}
	for _, d := range dims {
		if _, _, err := f.dimension(scope, f.session.ResolveName(obs2ioda.DimensionKind, d)); err != nil {
			return err
		}
	}
	v, err := f.session.DeclareVariable(group, raw, dims)
	if err != nil {
		return fmt.Errorf("ncio: adding variable: %w", err)
	}
	name := path.Join(gpath, v.Name())
	if fv, ok := f.index[name]; ok {
		if fv.typ != t {
			return fmt.Errorf("ncio: variable %q declared as %v and %v", name, fv.typ, t)
		}
		return nil
	}
	fv := &variable{name: name, group: gpath, v: v, typ: t}
	if v.IsChannel() {
		fv.channels = make(map[int]interface{})
	}
	f.vars = append(f.vars, fv)
	f.index[name] = fv
	return nil
}

// lookup returns the buffered variable raw refers to.
func (f *File) lookup(group, raw string) (*variable, string, error) {
	gpath := f.placement(group, raw)
	g, err := f.session.Group(gpath)
	if err != nil {
		return nil, "", fmt.Errorf("ncio: variable %q: %w", raw, err)
	}
	v, err := g.Variable(raw)
	if err != nil {
		return nil, "", fmt.Errorf("ncio: %w", err)
	}
	fv, ok := f.index[path.Join(gpath, v.Name())]
	if !ok {
		return nil, "", fmt.Errorf("ncio: variable %q was not added to the file", raw)
	}
	return fv, gpath, nil
}

// shape returns the current dimension sizes of fv.
func (f *File) shape(fv *variable) ([]int, error) {
	dims := fv.v.Dimensions()
	o := make([]int, len(dims))
	for i, d := range dims {
		_, n, err := f.dimension(fv.group, d)
		if err != nil {
			return nil, err
		}
		o[i] = n
	}
	return o, nil
}

func product(s []int) int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}

// PutVar stores the values of a variable. For an instance of a legacy
// channel variable the values fill that channel's slice. Text variables
// take a []string with one element per string.
func (f *File) PutVar(group, raw string, values interface{}) error {
	fv, _, err := f.lookup(group, raw)
	if err != nil {
		return err
	}
	shape, err := f.shape(fv)
	if err != nil {
		return err
	}
	data, err := fv.convert(values)
	if err != nil {
		return err
	}
	want := product(shape)
	if fv.typ == obs2ioda.Char {
		want = product(shape[:len(shape)-1])
	}
	if fv.v.IsChannel() && f.session.IsChannelVariable(raw) {
		idx, err := fv.v.ChannelIndex(raw)
		if err != nil {
			return fmt.Errorf("ncio: %w", err)
		}
		want = product(shape[:len(shape)-1])
		if n := length(data); n != want {
			return fmt.Errorf("ncio: variable %q channel %d: got %d values, want %d", fv.name, idx+1, n, want)
		}
		fv.channels[idx] = data
		return nil
	}
	if n := length(data); n != want {
		return fmt.Errorf("ncio: variable %q: got %d values, want %d", fv.name, n, want)
	}
	fv.values = data
	return nil
}

// PutAtt sets an attribute of a variable, or of the group at path if
// varRaw is empty.
func (f *File) PutAtt(group, varRaw, attRaw string, value interface{}) error {
	name := f.session.ResolveName(obs2ioda.AttributeKind, attRaw)
	val, err := attributeValue(value)
	if err != nil {
		return fmt.Errorf("ncio: attribute %q: %v", attRaw, err)
	}
	if varRaw == "" {
		gpath := f.groupPath(group)
		if _, err := f.session.Group(gpath); err != nil {
			return fmt.Errorf("ncio: attribute %q: %w", attRaw, err)
		}
		f.attrs[gpath] = setAttribute(f.attrs[gpath], name, val)
		return nil
	}
	fv, _, err := f.lookup(group, varRaw)
	if err != nil {
		return err
	}
	fv.attrs = setAttribute(fv.attrs, name, val)
	return nil
}

// SetFill sets the value written where a variable has no data. By default
// the type's missing value is used.
func (f *File) SetFill(group, raw string, value interface{}) error {
	fv, _, err := f.lookup(group, raw)
	if err != nil {
		return err
	}
	fill, err := fv.fillValue(value)
	if err != nil {
		return fmt.Errorf("ncio: fill value of %q: %v", fv.name, err)
	}
	fv.fill = fill
	return nil
}

// Close checks the assembled layout and writes the file.
func (f *File) Close() error {
	defer f.w.Close()
	if err := f.session.Check(); err != nil {
		return fmt.Errorf("ncio: %s: %w", f.path, err)
	}
	if err := f.write(); err != nil {
		return fmt.Errorf("ncio: writing %s: %v", f.path, err)
	}
	if err := f.w.Close(); err != nil {
		return fmt.Errorf("ncio: closing %s: %v", f.path, err)
	}
	f.log().WithFields(logrus.Fields{
		"file":      f.path,
		"variables": len(f.vars),
		"channels":  f.session.ChannelCount(),
	}).Info("ncio: wrote IODA file")
	return nil
}

func (f *File) write() error {
	var (
		dimNames []string
		dimSizes []int
		groups   []string
	)
	f.session.Root().Walk(func(p string, g *obs2ioda.Group) error {
		if p != "" {
			groups = append(groups, p)
		}
		for _, d := range g.Dimensions() {
			dimNames = append(dimNames, path.Join(p, d.Name))
			dimSizes = append(dimSizes, d.Size)
		}
		return nil
	})

	// Each string variable gets a character dimension as long as its
	// longest value.
	strlen := make(map[*variable]int)
	for _, fv := range f.vars {
		if fv.typ != obs2ioda.String {
			continue
		}
		shape, err := f.shape(fv)
		if err != nil {
			return err
		}
		n := fv.maxLen(product(shape))
		strlen[fv] = n
		name := fmt.Sprintf("nchars%d", n)
		if !contains(dimNames, name) {
			dimNames = append(dimNames, name)
			dimSizes = append(dimSizes, n)
		}
	}

	h := cdf.NewHeader(dimNames, dimSizes)
	global := append([]attribute(nil), f.attrs[""]...)
	global = setAttribute(global, "_ioda_layout", "ObsGroup")
	global = setAttribute(global, "_ioda_layout_version", []int32{0})
	global = setAttribute(global, "_schemaFingerprint", f.session.Schema().Fingerprint())
	if len(groups) > 0 {
		global = setAttribute(global, "groups", strings.Join(groups, ","))
	}
	for _, g := range groups {
		for _, a := range f.attrs[g] {
			global = setAttribute(global, path.Join(g, a.name), a.value)
		}
	}
	for _, a := range global {
		h.AddAttribute("", a.name, a.value)
	}

	shapes := make([][]int, len(f.vars))
	for i, fv := range f.vars {
		dims := fv.v.Dimensions()
		stored := make([]string, len(dims))
		for j, d := range dims {
			n, _, err := f.dimension(fv.group, d)
			if err != nil {
				return err
			}
			stored[j] = n
		}
		shape, err := f.shape(fv)
		if err != nil {
			return err
		}
		if n, ok := strlen[fv]; ok {
			stored = append(stored, fmt.Sprintf("nchars%d", n))
			shape = append(shape, n)
		}
		shapes[i] = shape
		h.AddVariable(fv.name, stored, fv.zero())
		attrs := append([]attribute(nil), fv.attrs...)
		if fv.fill != nil {
			attrs = setAttribute(attrs, "_FillValue", fv.fillAttribute())
		}
		switch fv.typ {
		case obs2ioda.Int64, obs2ioda.Bool, obs2ioda.String:
			attrs = setAttribute(attrs, TypeAttribute, fv.typ.String())
		}
		for _, a := range attrs {
			h.AddAttribute(fv.name, a.name, a.value)
		}
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return errs[0]
	}

	data := make([]interface{}, len(f.vars))
	for i, fv := range f.vars {
		d, err := fv.materialize(shapes[i])
		if err != nil {
			return err
		}
		data[i] = d
	}
	cf, err := cdf.Create(f.w, h)
	if err != nil {
		return err
	}
	for i, fv := range f.vars {
		// The writer reports io.EOF once the variable is full.
		if _, err := cf.Writer(fv.name, nil, nil).Write(data[i]); err != nil && err != io.EOF {
			return fmt.Errorf("variable %s: %v", fv.name, err)
		}
	}
	return cdf.UpdateNumRecs(f.w)
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
