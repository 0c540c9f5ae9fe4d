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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStationIdentification(t *testing.T) {
	s := NewSession(testSchema(t))
	assert.Equal(t, "stationIdentification", s.ResolveName(VariableKind, "station_id@MetaData"))
	g, ok := s.ResolveGroupOf("station_id@MetaData")
	require.True(t, ok)
	assert.Equal(t, "MetaData", g)

	v, err := s.DeclareVariable("", "station_id@MetaData", []string{"nlocs"})
	require.NoError(t, err)
	assert.Equal(t, "stationIdentification", v.Name())
	assert.False(t, v.IsChannel())
	assert.Equal(t, []string{"Location"}, v.Dimensions())

	md, err := s.Group("MetaData")
	require.NoError(t, err)
	got, err := md.Variable("stationIdentification")
	require.NoError(t, err)
	assert.Same(t, v, got)
}

func TestSessionBrightnessTemperature(t *testing.T) {
	s := NewSession(testSchema(t))
	_, err := s.DeclareDimension("", "nlocs", 10)
	require.NoError(t, err)

	var v *Variable
	for i := 1; i <= 3; i++ {
		raw := fmt.Sprintf("brightness_temperature_%d@ObsValue", i)
		assert.True(t, s.IsChannelVariable(raw))
		var err error
		v, err = s.DeclareVariable("", raw, []string{"nlocs"})
		require.NoError(t, err)
		assert.Equal(t, "brightnessTemperature", v.Name())
		assert.Equal(t, i, v.ChannelCount())
		assert.Equal(t, i, s.ChannelCount())
	}
	obs, err := s.Group("ObsValue")
	require.NoError(t, err)
	assert.Len(t, obs.Variables(), 1)
	assert.Equal(t, []string{"Location", "Channel"}, v.Dimensions())

	i, err := s.ChannelIndexOf("brightness_temperature_2@ObsValue")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	d, err := s.Root().Dimension("nchans")
	require.NoError(t, err)
	assert.Equal(t, Dimension{Name: "Channel", Size: 3}, d)
	assert.NoError(t, s.Check())
}

func TestChannelIndexDeterminism(t *testing.T) {
	for _, n := range []int{1, 2, 7, 16} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			s := NewSession(testSchema(t))
			// Declare in reverse so that order does not matter.
			for i := n; i >= 1; i-- {
				_, err := s.DeclareChannelInstance(fmt.Sprintf("brightness_temperature_%d@ObsError", i))
				require.NoError(t, err)
			}
			for i := 1; i <= n; i++ {
				idx, err := s.ChannelIndexOf(fmt.Sprintf("brightness_temperature_%d@ObsError", i))
				require.NoError(t, err)
				assert.Equal(t, i-1, idx)
			}
			g, err := s.Group("ObsError")
			require.NoError(t, err)
			v, err := g.Variable("brightnessTemperature")
			require.NoError(t, err)
			assert.Equal(t, n, v.ChannelCount())
			assert.Equal(t, n, s.ChannelCount())
			assert.NoError(t, s.Check())
		})
	}
}

func TestRedeclareChannel(t *testing.T) {
	s := NewSession(testSchema(t))
	for i := 0; i < 3; i++ {
		n, err := s.DeclareChannelInstance("brightness_temperature_1@ObsValue")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	n, err := s.DeclareChannelInstance("brightness_temperature_2@ObsValue")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.DeclareChannelInstance("station_id@MetaData")
	assert.ErrorIs(t, err, ErrNotChannelVariable)
}

func TestChannelGap(t *testing.T) {
	s := NewSession(testSchema(t))
	for _, raw := range []string{"brightness_temperature_1@ObsValue", "brightness_temperature_3@ObsValue"} {
		_, err := s.DeclareChannelInstance(raw)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.ChannelCount())
	assert.ErrorIs(t, s.Check(), ErrChannelGap)
}

func TestChannelIndexMisuse(t *testing.T) {
	s := NewSession(testSchema(t))
	bt, err := s.DeclareVariable("", "brightness_temperature_1@ObsValue", nil)
	require.NoError(t, err)
	sid, err := s.DeclareVariable("", "station_id@MetaData", nil)
	require.NoError(t, err)

	_, err = bt.ChannelIndex("solar_zenith_angle@MetaData")
	assert.ErrorIs(t, err, ErrVariableMismatch)
	_, err = bt.ChannelIndex("brightnessTemperature")
	assert.ErrorIs(t, err, ErrMissingChannelIndex)
	_, err = sid.ChannelIndex("station_id@MetaData")
	assert.ErrorIs(t, err, ErrNotChannelVariable)
	_, err = sid.ChannelIndex("brightness_temperature_1@ObsValue")
	assert.ErrorIs(t, err, ErrVariableMismatch)

	_, err = s.ChannelIndexOf("station_id@MetaData")
	assert.ErrorIs(t, err, ErrNotChannelVariable)
}

func TestDimensionValidation(t *testing.T) {
	s := NewSession(testSchema(t))
	_, err := s.DeclareVariable("", "solar_zenith_angle@MetaData", []string{"nchans"})
	assert.ErrorIs(t, err, ErrInvalidDimension)
	md, err := s.Group("MetaData")
	require.NoError(t, err)
	_, err = md.Variable("solarZenithAngle")
	assert.ErrorIs(t, err, ErrVariableNotFound, "a rejected variable is not added")

	v, err := s.DeclareVariable("", "solar_zenith_angle@MetaData", []string{"nlocs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Location"}, v.Dimensions())
	assert.ErrorIs(t, v.AddDimension("nchans"), ErrInvalidDimension)
	assert.NoError(t, v.AddDimension("Location"))
	assert.Equal(t, []string{"Location"}, v.Dimensions())

	// Any set may supply the dimension.
	bt, err := s.DeclareVariable("", "brightness_temperature@ObsValue", []string{"Location", "nchans"})
	require.NoError(t, err)
	assert.False(t, bt.IsChannel())
	assert.Equal(t, []string{"Location", "Channel"}, bt.Dimensions())

	// Variables without declared sets accept anything.
	u, err := s.DeclareVariable("", "u@ObsValue", []string{"nlocs", "nvars"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Location", "nvars"}, u.Dimensions())
}

func TestGroupTree(t *testing.T) {
	s := NewSession(testSchema(t))
	g, err := s.DeclareGroup("", "ObsValue")
	require.NoError(t, err)
	again, err := s.DeclareGroup("", "ObsValue")
	require.NoError(t, err)
	assert.Same(t, g, again)

	sub, err := s.DeclareGroup("ObsValue", "Bias")
	require.NoError(t, err)
	got, err := s.Group("ObsValue/Bias")
	require.NoError(t, err)
	assert.Same(t, sub, got)

	_, err = s.DeclareGroup("Missing", "x")
	assert.ErrorIs(t, err, ErrGroupNotFound)
	_, err = s.DeclareVariable("Missing", "x", nil)
	assert.ErrorIs(t, err, ErrGroupNotFound)
	_, err = s.Root().Dimension("nlocs")
	assert.ErrorIs(t, err, ErrDimensionNotFound)

	d, err := s.DeclareDimension("ObsValue", "nlocs", 5)
	require.NoError(t, err)
	assert.Equal(t, Dimension{Name: "Location", Size: 5}, d)
	d, err = s.DeclareDimension("ObsValue", "Location", 9)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Size, "first declaration wins")
	assert.Len(t, g.Dimensions(), 1)

	_, err = s.DeclareVariable("ObsValue/Bias", "airTemperature", nil)
	require.NoError(t, err)
	var paths []string
	require.NoError(t, s.Root().Walk(func(p string, g *Group) error {
		paths = append(paths, fmt.Sprintf("%s:%d", p, len(g.Variables())))
		return nil
	}))
	assert.Equal(t, []string{":0", "ObsValue:0", "ObsValue/Bias:1"}, paths)
}

func TestDeclaredChannelDimension(t *testing.T) {
	s := NewSession(testSchema(t))
	_, err := s.DeclareDimension("", "nchans", 4)
	require.NoError(t, err)
	n, err := s.DeclareChannelInstance("brightness_temperature_1@ObsValue")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 4, s.ChannelCount(), "declared size is kept")

	// A channel dimension sized by consolidation grows when declared larger.
	s = NewSession(testSchema(t))
	_, err = s.DeclareChannelInstance("brightness_temperature_1@ObsValue")
	require.NoError(t, err)
	d, err := s.DeclareDimension("", "nchans", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Size)
	d, err = s.DeclareDimension("", "Channel", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Size)
	assert.NoError(t, s.Check())
}
