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
	"sort"
	"sync"
)

// A Registry associates integer handles with live resources such as open
// containers. A single lock guards every operation, so a Registry is safe
// for concurrent use.
type Registry[T any] struct {
	// name describes the resources in error messages.
	name string

	mu    sync.Mutex
	items map[int]T
}

// NewRegistry returns an empty registry of the named resources.
func NewRegistry[T any](name string) *Registry[T] {
	return &Registry[T]{name: name, items: make(map[int]T)}
}

// Add associates v with handle. It fails if handle is already held.
func (r *Registry[T]) Add(handle int, v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[handle]; ok {
		return fmt.Errorf("obs2ioda: %s %d: %w", r.name, handle, ErrDuplicateHandle)
	}
	r.items[handle] = v
	return nil
}

// Get returns the resource associated with handle.
func (r *Registry[T]) Get(handle int) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[handle]
	if !ok {
		return v, fmt.Errorf("obs2ioda: %s %d: %w", r.name, handle, ErrUnknownHandle)
	}
	return v, nil
}

// Remove drops handle and returns the resource it held.
func (r *Registry[T]) Remove(handle int) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[handle]
	if !ok {
		return v, fmt.Errorf("obs2ioda: %s %d: %w", r.name, handle, ErrUnknownHandle)
	}
	delete(r.items, handle)
	return v, nil
}

// Len returns the number of held handles.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Handles returns the held handles in increasing order.
func (r *Registry[T]) Handles() []int {
	r.mu.Lock()
	o := make([]int, 0, len(r.items))
	for h := range r.items {
		o = append(o, h)
	}
	r.mu.Unlock()
	sort.Ints(o)
	return o
}
