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
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

const (
	era5TimeUnits = "hours since 1900-01-01 00:00:00.0"
	t2mFill       = -32767

	lccWKT = `PROJCS["North_America_Lambert_Conformal_Conic",GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-96.0],PARAMETER["Standard_Parallel_1",20.0],PARAMETER["Standard_Parallel_2",60.0],PARAMETER["Latitude_Of_Origin",40.0],UNIT["Meter",1.0]]`
)

// era5Times are the daily time steps of the test dataset.
var era5Times = []time.Time{
	time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC),
}

// era5Lat is descending, as in ERA5: 60, 58, ..., 40.
func era5Lat() []float64 {
	lat := make([]float64, 11)
	for i := range lat {
		lat[i] = 60 - 2*float64(i)
	}
	return lat
}

// era5Lon is 0, 2, ..., 358.
func era5Lon() []float64 {
	lon := make([]float64, 180)
	for j := range lon {
		lon[j] = 2 * float64(j)
	}
	return lon
}

// t2mPacked is the stored value of t2m at time step t, row i, and
// column j. One cell holds the fill value.
func t2mPacked(t, i, j int) int16 {
	if t == 1 && i == 5 && j == 126 {
		return t2mFill
	}
	return int16(t*1000 + i*50 + j%50)
}

// t2mValue is the unpacked value of t2m, or FillValue.
func t2mValue(t, i, j int) float64 {
	p := t2mPacked(t, i, j)
	if p == t2mFill {
		return float64(FillValue)
	}
	return 250 + 0.01*float64(p)
}

func u10Value(t, i, j int) float32 {
	return float32(t) + float32(i)*0.1 + float32(j)*0.001
}

// writeERA5 writes a netCDF classic file in the layout of an ERA5
// single-level download, holding the time steps era5Times[first:first+n].
func writeERA5(t *testing.T, path string, first, n int) {
	lat, lon := era5Lat(), era5Lon()
	ny, nx := len(lat), len(lon)
	h := cdf.NewHeader([]string{"longitude", "latitude", "time"}, []int{nx, ny, 0})
	h.AddAttribute("", "Conventions", "CF-1.6")
	h.AddAttribute("", "history", "test data")

	h.AddVariable("longitude", []string{"longitude"}, []float32{0})
	h.AddAttribute("longitude", "units", "degrees_east")
	h.AddAttribute("longitude", "long_name", "longitude")
	h.AddVariable("latitude", []string{"latitude"}, []float32{0})
	h.AddAttribute("latitude", "units", "degrees_north")
	h.AddAttribute("latitude", "long_name", "latitude")
	h.AddVariable("time", []string{"time"}, []int32{0})
	h.AddAttribute("time", "units", era5TimeUnits)
	h.AddAttribute("time", "long_name", "time")
	h.AddAttribute("time", "calendar", "gregorian")

	h.AddVariable("t2m", []string{"time", "latitude", "longitude"}, []int16{0})
	h.AddAttribute("t2m", "scale_factor", []float64{0.01})
	h.AddAttribute("t2m", "add_offset", []float64{250})
	h.AddAttribute("t2m", "_FillValue", []int16{t2mFill})
	h.AddAttribute("t2m", "missing_value", []int16{t2mFill})
	h.AddAttribute("t2m", "units", "K")
	h.AddAttribute("t2m", "long_name", "2 metre temperature")

	h.AddVariable("u10", []string{"time", "latitude", "longitude"}, []float32{0})
	h.AddAttribute("u10", "units", "m s**-1")
	h.AddAttribute("u10", "long_name", "10 metre U wind component")

	h.AddVariable("lsm", []string{"latitude", "longitude"}, []float32{0})
	h.AddAttribute("lsm", "units", "(0 - 1)")
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}
	write := func(v string, data interface{}) {
		if _, err := nc.Writer(v, nil, nil).Write(data); err != nil && err != io.EOF {
			t.Fatalf("writing %s: %v", v, err)
		}
	}
	lon32 := make([]float32, nx)
	for j, x := range lon {
		lon32[j] = float32(x)
	}
	lat32 := make([]float32, ny)
	for i, y := range lat {
		lat32[i] = float32(y)
	}
	write("longitude", lon32)
	write("latitude", lat32)

	ref := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]int32, n)
	t2m := make([]int16, 0, n*ny*nx)
	u10 := make([]float32, 0, n*ny*nx)
	for k := 0; k < n; k++ {
		tt := first + k
		times[k] = int32(era5Times[tt].Sub(ref).Hours())
		for i := 0; i < ny; i++ {
			for j := 0; j < nx; j++ {
				t2m = append(t2m, t2mPacked(tt, i, j))
				u10 = append(u10, u10Value(tt, i, j))
			}
		}
	}
	write("time", times)
	write("t2m", t2m)
	write("u10", u10)
	lsm := make([]float32, ny*nx)
	for i := range lsm {
		lsm[i] = float32(i % 2)
	}
	write("lsm", lsm)
	if err := cdf.UpdateNumRecs(f); err != nil {
		t.Fatal(err)
	}
}

// testDir creates a temporary directory that is removed when the test
// finishes.
func testDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "gwfdata_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// era5Catalog writes the test dataset and returns a catalog holding it
// as "era5".
func era5Catalog(t *testing.T) *Catalog {
	dir := testDir(t)
	path := filepath.Join(dir, "era5.nc")
	writeERA5(t, path, 0, len(era5Times))
	c := NewCatalog()
	c.Add("era5", DatasetConfig{Description: "test reanalysis", Format: FormatNetCDF3, Path: path})
	return c
}

type shapeRecord struct {
	geom.Polygon
	Name string
}

// writeShapefile writes polygons to a shapefile at path with the given
// .prj contents. If prj is empty no .prj file is written.
func writeShapefile(t *testing.T, path, prj string, polys ...geom.Polygon) {
	e, err := shp.NewEncoder(path, shapeRecord{})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range polys {
		if err := e.Encode(shapeRecord{Polygon: p, Name: "basin"}); err != nil {
			t.Fatal(err)
		}
	}
	e.Close()
	writePrj(t, path, prj)
}

// writePrj writes the .prj file for the shapefile at path, unless prj is
// empty.
func writePrj(t *testing.T, path, prj string) {
	if prj == "" {
		return
	}
	if err := ioutil.WriteFile(strings.TrimSuffix(path, ".shp")+".prj", []byte(prj), 0644); err != nil {
		t.Fatal(err)
	}
}

// rectangle returns a polygon with the given corners.
func rectangle(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY},
	}}
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
