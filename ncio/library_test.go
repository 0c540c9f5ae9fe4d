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
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/NCAR/obs2ioda"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	l := NewLibrary()
	l.Log, _ = test.NewNullLogger()
	return l
}

func TestLibraryWorkflow(t *testing.T) {
	l := newTestLibrary(t)
	h, err := l.Create(filepath.Join(t.TempDir(), "amsua.nc"))
	require.NoError(t, err)

	require.NoError(t, l.AddDim(h, "", "nlocs", 10))
	require.NoError(t, l.AddDim(h, "", "nchans", 3))
	require.NoError(t, l.AddVar(h, "", "solar_zenith_angle@MetaData", obs2ioda.Float32, []string{"nlocs"}))
	for c := 1; c <= 3; c++ {
		raw := fmt.Sprintf("brightness_temperature_%d@ObsValue", c)
		require.NoError(t, l.AddVar(h, "", raw, obs2ioda.Float32, []string{"nlocs"}))
	}

	s, err := l.Session(h)
	require.NoError(t, err)
	md, err := s.Group("MetaData")
	require.NoError(t, err)
	_, err = md.Variable("solarZenithAngle")
	assert.NoError(t, err)
	ov, err := s.Group("ObsValue")
	require.NoError(t, err)
	bt, err := ov.Variable("brightnessTemperature")
	require.NoError(t, err)
	assert.Equal(t, 3, bt.ChannelCount())
	assert.Equal(t, []string{"Location", "Channel"}, bt.Dimensions())
	assert.Equal(t, 3, s.ChannelCount())

	schema, err := l.Schema(h)
	require.NoError(t, err)
	assert.Equal(t, "brightnessTemperature", schema.ResolveName(obs2ioda.VariableKind, "brightness_temperature_2@ObsValue"))

	for c := 1; c <= 3; c++ {
		v := make([]float32, 10)
		for i := range v {
			v[i] = float32(c)
		}
		require.NoError(t, l.PutVar(h, "", fmt.Sprintf("brightness_temperature_%d@ObsValue", c), v))
	}
	require.NoError(t, l.PutVar(h, "", "solar_zenith_angle@MetaData", make([]float64, 10)))
	require.NoError(t, l.Close(h))

	_, err = l.Schema(h)
	assert.True(t, errors.Is(err, obs2ioda.ErrUnknownHandle))
	assert.True(t, errors.Is(l.AddDim(h, "", "nlocs", 1), obs2ioda.ErrUnknownHandle))
	assert.True(t, errors.Is(l.Close(h), obs2ioda.ErrUnknownHandle))
}

func TestLibraryHandles(t *testing.T) {
	l := newTestLibrary(t)
	dir := t.TempDir()
	h1, err := l.Create(filepath.Join(dir, "a.nc"))
	require.NoError(t, err)
	h2, err := l.Create(filepath.Join(dir, "b.nc"))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, []int{h1, h2}, l.Handles())

	// The schemas are independent.
	s1, err := l.Schema(h1)
	require.NoError(t, err)
	s2, err := l.Schema(h2)
	require.NoError(t, err)
	s1.ResolveName(obs2ioda.VariableKind, "only_in_a")
	assert.Len(t, s1.Placeholders(obs2ioda.VariableKind), 1)
	assert.Empty(t, s2.Placeholders(obs2ioda.VariableKind))

	require.NoError(t, l.Close(h1))
	assert.Equal(t, []int{h2}, l.Handles())
	require.NoError(t, l.Close(h2))
	assert.Empty(t, l.Handles())

	_, err = l.Create(filepath.Join(dir, "missing", "c.nc"))
	assert.Error(t, err)
}

func TestLibraryConcurrent(t *testing.T) {
	l := newTestLibrary(t)
	dir := t.TempDir()
	const n = 16
	handles := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := l.Create(filepath.Join(dir, fmt.Sprintf("%d.nc", i)))
			if !assert.NoError(t, err) {
				return
			}
			handles[i] = h
			assert.NoError(t, l.AddDim(h, "", "nlocs", 2))
			assert.NoError(t, l.AddVar(h, "", "latitude@MetaData", obs2ioda.Float32, []string{"nlocs"}))
			assert.NoError(t, l.PutVar(h, "", "latitude@MetaData", []float32{1, 2}))
			assert.NoError(t, l.Close(h))
		}(i)
	}
	wg.Wait()
	seen := make(map[int]bool)
	for _, h := range handles {
		assert.False(t, seen[h], "handle %d reused", h)
		seen[h] = true
	}
	assert.Empty(t, l.Handles())
}

func TestLibraryNewSchema(t *testing.T) {
	l := newTestLibrary(t)
	l.NewSchema = func() (*obs2ioda.Schema, error) {
		return nil, errors.New("no schema")
	}
	_, err := l.Create(filepath.Join(t.TempDir(), "a.nc"))
	assert.Error(t, err)

	l.NewSchema = func() (*obs2ioda.Schema, error) {
		return obs2ioda.NewSchema(obs2ioda.DefaultDocument(), nil)
	}
	h, err := l.Create(filepath.Join(t.TempDir(), "b.nc"))
	require.NoError(t, err)
	s, err := l.Schema(h)
	require.NoError(t, err)
	assert.Empty(t, s.Rules(obs2ioda.VariableKind))
	require.NoError(t, l.Close(h))
}
