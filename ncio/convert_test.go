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
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NCAR/obs2ioda"
	"github.com/ctessum/cdf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type v1Var struct {
	name   string
	dims   []string
	values interface{}
	attrs  map[string]interface{}
}

// writeV1 writes a netCDF classic file laid out the way the v1
// converters wrote them.
func writeV1(t *testing.T, path string, extra ...v1Var) {
	t.Helper()
	vars := []v1Var{
		{name: "brightness_temperature_1@ObsValue", dims: []string{"nlocs"},
			values: []float32{280, 281, 282},
			attrs:  map[string]interface{}{"units": "K", "_FillValue": []float32{-999}}},
		{name: "brightness_temperature_2@ObsValue", dims: []string{"nlocs"},
			values: []float32{290, 291, 292}},
		{name: "sensor_channel@VarMetaData", dims: []string{"nchans"},
			values: []int32{7, 9}},
		{name: "station_id@MetaData", dims: []string{"nlocs", "nstring"},
			values: "ABCDEFGHIJ\x00\x00"},
		{name: "latitude@MetaData", dims: []string{"nlocs"},
			values: []float64{10, 20, 30}},
	}
	vars = append(vars, extra...)

	h := cdf.NewHeader([]string{"nlocs", "nchans", "nstring"}, []int{3, 2, 4})
	h.AddAttribute("", "satellite", "NOAA-20")
	h.AddAttribute("", "date_time", []int32{2024010100})
	for _, v := range vars {
		zero := v.values
		if _, ok := zero.(string); ok {
			zero = ""
		}
		h.AddVariable(v.name, v.dims, zero)
		for k, a := range v.attrs {
			h.AddAttribute(v.name, k, a)
		}
	}
	h.Define()

	fh, err := os.Create(path)
	require.NoError(t, err)
	defer fh.Close()
	f, err := cdf.Create(fh, h)
	require.NoError(t, err)
	for _, v := range vars {
		if _, err := f.Writer(v.name, nil, nil).Write(v.values); err != nil && err != io.EOF {
			require.NoError(t, err)
		}
	}
	require.NoError(t, cdf.UpdateNumRecs(fh))
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "amsua_n20_obs_2024010100.nc4")
	out := filepath.Join(dir, "amsua_n20_obs_2024010100.v3.nc")
	writeV1(t, in)

	r, err := Convert(context.Background(), newTestLibrary(t), in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Channels)
	assert.Empty(t, r.Skipped)
	assert.Empty(t, r.Created[obs2ioda.VariableKind])
	assert.ElementsMatch(t, []string{
		"ObsValue/brightnessTemperature",
		"VarMetaData/sensorChannelNumber",
		"MetaData/stationIdentification",
		"MetaData/latitude",
	}, r.Variables)

	nc := openNC(t, out)
	assert.Equal(t, r.Fingerprint, nc.Header.GetAttribute("", "_schemaFingerprint"))
	assert.Equal(t, "NOAA-20", nc.Header.GetAttribute("", "platform"))
	assert.Equal(t, []int32{2024010100}, nc.Header.GetAttribute("", "datetimeReference"))

	bt := "ObsValue/brightnessTemperature"
	assert.Equal(t, []string{"Location", "Channel"}, nc.Header.Dimensions(bt))
	assert.Equal(t, []float32{280, 290, 281, 291, 282, 292}, readVar(t, nc, bt))
	assert.Equal(t, "K", nc.Header.GetAttribute(bt, "units"))
	assert.Equal(t, []float32{-999}, nc.Header.GetAttribute(bt, "_FillValue"))

	assert.Equal(t, []string{"Channel"}, nc.Header.Dimensions("VarMetaData/sensorChannelNumber"))
	assert.Equal(t, []int32{7, 9}, readVar(t, nc, "VarMetaData/sensorChannelNumber"))
	assert.Equal(t, []float64{10, 20, 30}, readVar(t, nc, "MetaData/latitude"))

	sid := "MetaData/stationIdentification"
	assert.Equal(t, []string{"Location", "nchars4"}, nc.Header.Dimensions(sid))
	assert.Equal(t, []byte("ABCDEFGHIJ\x00\x00"), readVar(t, nc, sid))
}

func TestConvertStrict(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.nc")
	writeV1(t, in, v1Var{name: "mystery_flag@MetaData", dims: []string{"nlocs"}, values: []int16{1, 0, 1}})

	out := filepath.Join(dir, "lenient.nc")
	r, err := Convert(context.Background(), newTestLibrary(t), in, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"mystery_flag"}, r.Created[obs2ioda.VariableKind])
	assert.FileExists(t, out)

	out = filepath.Join(dir, "strict.nc")
	c := &Converter{Library: newTestLibrary(t), Strict: true}
	_, err = c.Convert(context.Background(), in, out)
	assert.True(t, errors.Is(err, ErrUnknownNames), "%v", err)
	assert.Contains(t, err.Error(), "mystery_flag")
	assert.NoFileExists(t, out)
	assert.Empty(t, c.Library.Handles())
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Convert(context.Background(), newTestLibrary(t), filepath.Join(dir, "none.nc"), filepath.Join(dir, "out.nc"))
	assert.Error(t, err)

	in := filepath.Join(dir, "in.nc")
	writeV1(t, in)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := newTestLibrary(t)
	_, err = Convert(ctx, l, in, filepath.Join(dir, "cancelled.nc"))
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
	assert.NoFileExists(t, filepath.Join(dir, "cancelled.nc"))
	assert.Empty(t, l.Handles())
}

func TestConvertMetrics(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.nc")
	writeV1(t, in, v1Var{name: "mystery_flag@MetaData", dims: []string{"nlocs"}, values: []int16{1, 0, 1}})

	reg := prometheus.NewRegistry()
	m, err := obs2ioda.NewMetrics(reg)
	require.NoError(t, err)
	l := newTestLibrary(t)
	l.Metrics = m

	_, err = Convert(context.Background(), l, in, filepath.Join(dir, "a.nc"))
	require.NoError(t, err)
	c := &Converter{Library: l, Strict: true}
	_, err = c.Convert(context.Background(), in, filepath.Join(dir, "b.nc"))
	require.Error(t, err)

	const want = `
# HELP obs2ioda_convert_files_total Total number of converted files
# TYPE obs2ioda_convert_files_total counter
obs2ioda_convert_files_total{status="converted"} 1
obs2ioda_convert_files_total{status="failed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "obs2ioda_convert_files_total"))
}
