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
	"context"
	"path/filepath"
	"testing"

	"github.com/scigolib/hdf5"
)

func h5Value(t, i, j int) float64 { return float64(t*1000 + i*50 + j%50) }

// writeHDF5 writes the grid of the netCDF test dataset as plain HDF5
// datasets, without dimension names.
func writeHDF5(t *testing.T, path string) {
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		t.Fatal(err)
	}
	write := func(name string, dims []uint64, data []float64) *hdf5.DatasetWriter {
		ds, err := fw.CreateDataset("/"+name, hdf5.Float64, dims)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if err := ds.Write(data); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
		return ds
	}
	u, err := parseTimeUnits(era5TimeUnits)
	if err != nil {
		t.Fatal(err)
	}
	times := make([]float64, len(era5Times))
	for i, tt := range era5Times {
		times[i] = u.encode(tt)
	}
	lat, lon := era5Lat(), era5Lon()
	write("time", []uint64{uint64(len(times))}, times)
	write("lat", []uint64{uint64(len(lat))}, lat)
	write("lon", []uint64{uint64(len(lon))}, lon)

	data := make([]float64, 0, len(times)*len(lat)*len(lon))
	for k := range times {
		for i := range lat {
			for j := range lon {
				data = append(data, h5Value(k, i, j))
			}
		}
	}
	pr := write("pr", []uint64{uint64(len(times)), uint64(len(lat)), uint64(len(lon))}, data)
	if err := pr.WriteAttribute("scale_factor", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_hdf5(t *testing.T) {
	path := filepath.Join(testDir(t), "ccrn.h5")
	writeHDF5(t, path)
	c := NewCatalog()
	c.Add("ccrn", DatasetConfig{
		Path:       path,
		LatVar:     "lat",
		LonVar:     "lon",
		TimeUnits:  era5TimeUnits,
		Dimensions: []string{"time", "lat", "lon"},
	})

	h, err := Open(context.Background(), c, "ccrn", []string{"pr"})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if h.Config.Format != FormatHDF5 {
		t.Errorf("format: %s", h.Config.Format)
	}
	if len(h.Time) != 4 || !h.Time[1].Equal(era5Times[1]) {
		t.Errorf("time: %v", h.Time)
	}

	box := BoundingBox{MinLon: -110, MinLat: 49, MaxLon: -100, MaxLat: 54}
	r, err := Select(context.Background(), h, mustTimeLimits(t, "2020-01-01", "2020-01-02"), Constraint{Box: &box}, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkCoords(t, "latitude", []float64{54, 52, 50}, r.LatCoord.Values)
	checkCoords(t, "longitude", []float64{-110, -108, -106, -104, -102, -100}, r.LonCoord.Values)
	v := r.Variable("pr")
	for tt := 0; tt < 2; tt++ {
		for i := 0; i < 3; i++ {
			for j := 0; j < 6; j++ {
				want := 0.5 * h5Value(tt+1, i+3, j+125)
				if have := v.Data.Get(tt, i, j); have != want {
					t.Errorf("pr[%d,%d,%d]: want %g, have %g", tt, i, j, want, have)
				}
			}
		}
	}
}

func TestHDF5Source_readWindow(t *testing.T) {
	path := filepath.Join(testDir(t), "ccrn.h5")
	writeHDF5(t, path)
	src, err := openHDF5(path, DatasetConfig{Dimensions: []string{"time", "lat", "lon"}})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	for _, w := range []struct{ start, count []int }{
		{[]int{1, 3, 125}, []int{1, 1, 3}},
		{[]int{3, 10, 178}, []int{1, 1, 2}},
		{[]int{0, 0, 0}, []int{2, 2, 2}},
	} {
		vals, err := src.ReadWindow("pr", w.start, w.count)
		if err != nil {
			t.Fatal(err)
		}
		k := 0
		for tt := w.start[0]; tt < w.start[0]+w.count[0]; tt++ {
			for i := w.start[1]; i < w.start[1]+w.count[1]; i++ {
				for j := w.start[2]; j < w.start[2]+w.count[2]; j++ {
					if want := h5Value(tt, i, j); vals[k] != want {
						t.Errorf("pr[%d,%d,%d]: want %g, have %g", tt, i, j, want, vals[k])
					}
					k++
				}
			}
		}
	}
	if _, err := src.ReadWindow("pr", []int{0, 0}, []int{1, 1}); err == nil {
		t.Error("want error for window of wrong rank")
	}
}
