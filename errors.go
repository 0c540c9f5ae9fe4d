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
	"fmt"
	"strings"
)

var (
	// ErrDuplicateHandle is returned when a handle is added to a Registry
	// that already holds it.
	ErrDuplicateHandle = errors.New("handle already registered")

	// ErrUnknownHandle is returned when a handle that is not held by a
	// Registry is looked up or removed.
	ErrUnknownHandle = errors.New("handle not registered")

	ErrGroupNotFound     = errors.New("group not found")
	ErrDimensionNotFound = errors.New("dimension not found")
	ErrVariableNotFound  = errors.New("variable not found")

	// ErrInvalidDimension is returned when a dimension is added to a
	// variable whose declared dimension sets do not include it.
	ErrInvalidDimension = errors.New("dimension not valid for variable")

	ErrNotChannelVariable  = errors.New("not a channel variable")
	ErrVariableMismatch    = errors.New("name resolves to a different variable")
	ErrMissingChannelIndex = errors.New("no channel index found")
	ErrChannelGap          = errors.New("channel indices are not contiguous")

	ErrEmptyAliases = errors.New("empty alias list")
	ErrUnknownType  = errors.New("unknown data type")
)

// Errors holds the errors from several independent operations.
type Errors []error

func (e Errors) Error() string {
	s := make([]string, len(e))
	for i, err := range e {
		s[i] = err.Error()
	}
	return strings.Join(s, "; ")
}

// Unwrap allows errors.Is and errors.As to see every held error.
func (e Errors) Unwrap() []error { return e }

// Err returns nil if e is empty and e otherwise.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func variableError(name string, err error) error {
	return fmt.Errorf("obs2ioda: variable %q: %w", name, err)
}
