/*
Copyright © 2026 the gwfdata authors.
This file is part of gwfdata.

gwfdata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gwfdata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gwfdata.  If not, see <http://www.gnu.org/licenses/>.
*/

package gwfdata

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
)

// era5Subset returns the subset of the test dataset for the box
// (-110, 49, -100, 54) on 2020-01-01 and 2020-01-02.
func era5Subset(t *testing.T, variables ...string) *SubsetResult {
	h := openERA5(t, variables...)
	box := BoundingBox{MinLon: -110, MinLat: 49, MaxLon: -100, MaxLat: 54}
	r, err := Select(context.Background(), h, mustTimeLimits(t, "2020-01-01", "2020-01-02"), Constraint{Box: &box}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func writeResult(t *testing.T, r *SubsetResult, path string) {
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := r.WriteNetCDF(f); err != nil {
		t.Fatal(err)
	}
}

func TestWriteNetCDF(t *testing.T) {
	r := era5Subset(t, "t2m", "u10")
	dir := testDir(t)
	path := filepath.Join(dir, "out.nc")
	writeResult(t, r, path)

	// The output is itself a dataset that can be subset.
	c := NewCatalog()
	c.Add("out", DatasetConfig{Path: path})
	h, err := Open(context.Background(), c, "out", []string{"t2m", "u10"})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if h.TimeUnits != era5TimeUnits {
		t.Errorf("time units: %s", h.TimeUnits)
	}
	if len(h.Time) != 2 || !h.Time[0].Equal(era5Times[1]) || !h.Time[1].Equal(era5Times[2]) {
		t.Errorf("time: %v", h.Time)
	}
	checkCoords(t, "latitude", r.LatCoord.Values, h.Lat)
	checkCoords(t, "longitude", r.LonCoord.Values, h.Lon)
	if h.Variable("t2m").Attributes["units"] != "K" {
		t.Errorf("t2m attributes: %v", h.Variable("t2m").Attributes)
	}

	vals, err := h.ReadWindow(h.Variable("t2m"), []int{0, 0, 0}, []int{2, 3, 6})
	if err != nil {
		t.Fatal(err)
	}
	for k, want := range r.Variable("t2m").Data.Elements {
		if want == float64(FillValue) {
			if vals[k] != want {
				t.Errorf("t2m element %d: want fill value, have %g", k, vals[k])
			}
			continue
		}
		if !approxEqual(vals[k], want, 1.0e-3) {
			t.Errorf("t2m element %d: want %g, have %g", k, want, vals[k])
		}
	}
}

func TestWriteNetCDF_deterministic(t *testing.T) {
	dir := testDir(t)
	var files [][]byte
	for i := 0; i < 3; i++ {
		r := era5Subset(t, "t2m", "u10")
		path := filepath.Join(dir, "out.nc")
		writeResult(t, r, path)
		b, err := ioutil.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		files = append(files, b)
	}
	for i := 1; i < len(files); i++ {
		if !bytes.Equal(files[0], files[i]) {
			t.Errorf("write %d differs from the first", i)
		}
	}
}

func TestWriteNetCDF_extraDimension(t *testing.T) {
	data := sparse.ZerosDense(1, 2, 1, 2)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	r := &SubsetResult{
		Dataset:   "test",
		Time:      era5Times[:1],
		TimeCoord: Coordinate{Name: "time", Values: []float64{0}, Attributes: map[string]interface{}{"units": "hours since 2019-12-31"}},
		LatCoord:  Coordinate{Name: "lat", Values: []float64{50}},
		LonCoord:  Coordinate{Name: "lon", Values: []float64{-100, -99}},
		Extra:     []Coordinate{{Name: "level", Values: []float64{1000, 850}}},
		Variables: []*ResultVariable{{Name: "ta", Dims: []string{"time", "level", "lat", "lon"}, Data: data}},
	}
	dims, lengths, err := r.dims()
	if err != nil {
		t.Fatal(err)
	}
	if len(dims) != 4 || dims[1] != "level" || lengths[1] != 2 {
		t.Errorf("dims: %v %v", dims, lengths)
	}
	path := filepath.Join(testDir(t), "level.nc")
	writeResult(t, r, path)

	bad := *r
	bad.Variables = []*ResultVariable{{Name: "ta", Dims: []string{"time", "lat", "lon"}, Data: data}}
	f, err := os.Create(filepath.Join(testDir(t), "bad.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := bad.WriteNetCDF(f); err == nil {
		t.Error("want error for data of the wrong rank")
	}
}

// Every variable of a single time step result has a fixed size, so each
// write ends exactly at the end of its variable.
func TestWriteNetCDF_singleStep(t *testing.T) {
	data := sparse.ZerosDense(1, 2, 2)
	copy(data.Elements, []float64{271.5, 272.5, 273.5, float64(FillValue)})
	r := &SubsetResult{
		Dataset:   "test",
		Time:      era5Times[1:2],
		TimeCoord: Coordinate{Name: "time", Values: []float64{1051896}, Attributes: map[string]interface{}{"units": era5TimeUnits}},
		LatCoord:  Coordinate{Name: "latitude", Values: []float64{50, 48}},
		LonCoord:  Coordinate{Name: "longitude", Values: []float64{-100, -98}},
		Variables: []*ResultVariable{{Name: "t2m", Dims: []string{"time", "latitude", "longitude"}, Data: data}},
	}
	path := filepath.Join(testDir(t), "single.nc")
	d := &Dispatcher{Log: testLogger(new(bytes.Buffer))}
	receipt, err := d.Dispatch(context.Background(), r, LocalFile, path)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Path != path || receipt.Bytes == 0 {
		t.Errorf("receipt: %+v", receipt)
	}

	c := NewCatalog()
	c.Add("single", DatasetConfig{Path: path})
	h, err := Open(context.Background(), c, "single", []string{"t2m"})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if len(h.Time) != 1 || !h.Time[0].Equal(era5Times[1]) {
		t.Errorf("time: %v", h.Time)
	}
	checkCoords(t, "longitude", []float64{-100, -98}, h.Lon)
	vals, err := h.ReadWindow(h.Variable("t2m"), []int{0, 0, 0}, []int{1, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	for k, want := range data.Elements {
		if !approxEqual(vals[k], want, 1.0e-3) && !(want == float64(FillValue) && vals[k] == want) {
			t.Errorf("t2m element %d: want %g, have %g", k, want, vals[k])
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := era5Subset(t, "t2m")
	b := era5Subset(t, "t2m")
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("equal subsets have different fingerprints")
	}
	c := era5Subset(t, "u10")
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different subsets have the same fingerprint")
	}
}
