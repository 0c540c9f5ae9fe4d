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
	"sync/atomic"

	"github.com/NCAR/obs2ioda"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Library gives access to files through integer handles. It is safe for
// concurrent use, although each handle should only be used by one
// goroutine at a time.
type Library struct {
	// Log is the parent logger of every file and schema. If nil,
	// logrus.StandardLogger is used.
	Log logrus.FieldLogger

	// Metrics, if non-nil, counts name resolutions.
	Metrics *obs2ioda.Metrics

	// NewSchema returns the schema for a newly created file. If nil, the
	// built-in schema with the legacy naming rules is used.
	NewSchema func() (*obs2ioda.Schema, error)

	files   *obs2ioda.Registry[*File]
	schemas *obs2ioda.Registry[*obs2ioda.Schema]
	next    atomic.Int64
}

// NewLibrary returns a library with no open files.
func NewLibrary() *Library {
	return &Library{
		files:   obs2ioda.NewRegistry[*File]("file"),
		schemas: obs2ioda.NewRegistry[*obs2ioda.Schema]("schema"),
	}
}

func (l *Library) log() logrus.FieldLogger {
	if l.Log == nil {
		return logrus.StandardLogger()
	}
	return l.Log
}

// Create creates the file at path and returns its handle.
func (l *Library) Create(path string) (int, error) {
	handle := int(l.next.Add(1))
	log := l.log().WithFields(logrus.Fields{
		"handle":  handle,
		"file":    path,
		"session": uuid.New().String(),
	})
	var s *obs2ioda.Schema
	if l.NewSchema != nil {
		var err error
		if s, err = l.NewSchema(); err != nil {
			return 0, fmt.Errorf("ncio: schema for %s: %v", path, err)
		}
	} else {
		s = obs2ioda.NewDefaultSchema(log)
	}
	s.Log = log
	s.Metrics = l.Metrics
	f, err := Create(path, s)
	if err != nil {
		return 0, err
	}
	f.Log = log
	if err := l.files.Add(handle, f); err != nil {
		f.w.Close()
		return 0, err
	}
	if err := l.schemas.Add(handle, s); err != nil {
		l.files.Remove(handle)
		f.w.Close()
		return 0, err
	}
	log.Debug("ncio: created file")
	return handle, nil
}

// File returns the file with the given handle.
func (l *Library) File(handle int) (*File, error) {
	return l.files.Get(handle)
}

// Schema returns the schema of the file with the given handle.
func (l *Library) Schema(handle int) (*obs2ioda.Schema, error) {
	return l.schemas.Get(handle)
}

// Session returns the layout session of the file with the given handle.
func (l *Library) Session(handle int) (*obs2ioda.Session, error) {
	f, err := l.files.Get(handle)
	if err != nil {
		return nil, err
	}
	return f.Session(), nil
}

// Close writes the file and releases its handle. The handle is released
// even if writing fails.
func (l *Library) Close(handle int) error {
	f, err := l.files.Remove(handle)
	if err != nil {
		return err
	}
	if _, err := l.schemas.Remove(handle); err != nil {
		l.log().WithField("handle", handle).Warn(err)
	}
	return f.Close()
}

// AddDim adds a dimension to a group of a file.
func (l *Library) AddDim(handle int, group, name string, size int) error {
	f, err := l.files.Get(handle)
	if err != nil {
		return err
	}
	_, err = f.AddDim(group, name, size)
	return err
}

// AddGroup adds a group to the group at parent.
func (l *Library) AddGroup(handle int, parent, name string) error {
	f, err := l.files.Get(handle)
	if err != nil {
		return err
	}
	_, err = f.AddGroup(parent, name)
	return err
}

// AddVar declares a variable. See File.AddVar.
func (l *Library) AddVar(handle int, group, name string, t obs2ioda.Type, dims []string) error {
	f, err := l.files.Get(handle)
	if err != nil {
		return err
	}
	return f.AddVar(group, name, t, dims)
}

// PutVar stores the values of a variable. See File.PutVar.
func (l *Library) PutVar(handle int, group, name string, values interface{}) error {
	f, err := l.files.Get(handle)
	if err != nil {
		return err
	}
	return f.PutVar(group, name, values)
}

// PutAtt sets an attribute. See File.PutAtt.
func (l *Library) PutAtt(handle int, group, varName, attName string, value interface{}) error {
	f, err := l.files.Get(handle)
	if err != nil {
		return err
	}
	return f.PutAtt(group, varName, attName, value)
}

// SetFill sets the fill value of a variable.
func (l *Library) SetFill(handle int, group, name string, value interface{}) error {
	f, err := l.files.Get(handle)
	if err != nil {
		return err
	}
	return f.SetFill(group, name, value)
}

// Handles returns the handles of the open files.
func (l *Library) Handles() []int { return l.files.Handles() }
