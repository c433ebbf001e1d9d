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
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/gwf/gwfdata/internal/hash"
)

// Coordinate is a one-dimensional coordinate variable of a subset.
type Coordinate struct {
	Name       string
	Values     []float64
	Attributes map[string]interface{}
}

// ResultVariable is a data variable of a subset.
type ResultVariable struct {
	Name       string
	Dims       []string
	Attributes map[string]interface{}

	// Data holds unpacked values, with FillValue where data are missing
	// or outside the spatial constraint.
	Data *sparse.DenseArray
}

// SubsetResult is the in-memory result of a subset.
type SubsetResult struct {
	Dataset string

	// Time holds the selected time steps, which TimeCoord encodes in the
	// units of the source dataset.
	Time []time.Time

	TimeCoord, LatCoord, LonCoord Coordinate

	// Extra holds coordinate variables of any other dimensions.
	Extra []Coordinate

	// Variables are in request order.
	Variables []*ResultVariable

	// Attributes are global attributes.
	Attributes map[string]interface{}
}

// Variable returns the result variable with the given name, or nil.
func (r *SubsetResult) Variable(name string) *ResultVariable {
	for _, v := range r.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Fingerprint returns a key identifying the dataset, variables, and
// coordinates of r.
func (r *SubsetResult) Fingerprint() string {
	names := make([]string, len(r.Variables))
	for i, v := range r.Variables {
		names[i] = v.Name
	}
	return hash.Hash(struct {
		Dataset       string
		Variables     []string
		Time          []float64
		TimeUnits     string
		Lat, Lon      []float64
		SpatialLimits string
	}{
		Dataset:       r.Dataset,
		Variables:     names,
		Time:          r.TimeCoord.Values,
		TimeUnits:     fmt.Sprint(r.TimeCoord.Attributes["units"]),
		Lat:           r.LatCoord.Values,
		Lon:           r.LonCoord.Values,
		SpatialLimits: fmt.Sprint(r.Attributes["spatial_limits"]),
	})
}

// dims returns the dimensions of r in file order, with their lengths.
func (r *SubsetResult) dims() ([]string, []int, error) {
	names := []string{r.TimeCoord.Name}
	lengths := []int{len(r.Time)}
	var extra []string
	extraLen := make(map[string]int)
	for _, v := range r.Variables {
		shape := v.Data.Shape
		if len(shape) != len(v.Dims) {
			return nil, nil, fmt.Errorf("variable %s has %d dimensions but data of rank %d", v.Name, len(v.Dims), len(shape))
		}
		for i, d := range v.Dims {
			if d == r.TimeCoord.Name || d == r.LatCoord.Name || d == r.LonCoord.Name {
				continue
			}
			if l, ok := extraLen[d]; ok {
				if l != shape[i] {
					return nil, nil, fmt.Errorf("dimension %s has lengths %d and %d", d, l, shape[i])
				}
				continue
			}
			extraLen[d] = shape[i]
			extra = append(extra, d)
		}
	}
	for _, d := range extra {
		names = append(names, d)
		lengths = append(lengths, extraLen[d])
	}
	names = append(names, r.LatCoord.Name, r.LonCoord.Name)
	lengths = append(lengths, len(r.LatCoord.Values), len(r.LonCoord.Values))
	return names, lengths, nil
}

// addAttributes adds attributes to variable v of h in sorted order so
// that identical results produce identical files.
func addAttributes(h *cdf.Header, v string, attrs map[string]interface{}) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if val, ok := attributeValue(attrs[k]); ok {
			h.AddAttribute(v, k, val)
		}
	}
}

// WriteNetCDF writes r to f in netCDF classic format. Coordinates are
// written as double precision and data as single precision with a
// _FillValue attribute.
func (r *SubsetResult) WriteNetCDF(f *os.File) error {
	dims, lengths, err := r.dims()
	if err != nil {
		return fmt.Errorf("gwfdata: writing netCDF: %v", err)
	}
	h := cdf.NewHeader(dims, lengths)
	addAttributes(h, "", r.Attributes)

	coords := []Coordinate{r.TimeCoord}
	coords = append(coords, r.Extra...)
	coords = append(coords, r.LatCoord, r.LonCoord)
	for _, c := range coords {
		h.AddVariable(c.Name, []string{c.Name}, []float64{0})
		addAttributes(h, c.Name, c.Attributes)
	}
	for _, v := range r.Variables {
		h.AddVariable(v.Name, v.Dims, []float32{0})
		attrs := copyAttributes(v.Attributes)
		attrs["_FillValue"] = []float32{FillValue}
		addAttributes(h, v.Name, attrs)
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("gwfdata: writing netCDF: invalid header: %v", errs)
	}

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("gwfdata: writing netCDF header: %v", err)
	}
	for _, c := range coords {
		if len(c.Values) == 0 {
			continue
		}
		if err := writeVar(nc, c.Name, c.Values, len(c.Values)); err != nil {
			return err
		}
	}
	for _, v := range r.Variables {
		data32 := make([]float32, len(v.Data.Elements))
		for i, e := range v.Data.Elements {
			data32[i] = float32(e)
		}
		if len(data32) == 0 {
			continue
		}
		if err := writeVar(nc, v.Name, data32, len(data32)); err != nil {
			return err
		}
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		return fmt.Errorf("gwfdata: writing netCDF: %v", err)
	}
	return nil
}

// writeVar writes all n values of variable name. The cdf writer reports
// io.EOF when a write ends exactly at the end of a fixed-size variable,
// which is not an error if every value was written.
func writeVar(nc *cdf.File, name string, values interface{}, n int) error {
	written, err := nc.Writer(name, nil, nil).Write(values)
	if err == io.EOF && written == n {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("gwfdata: writing netCDF variable %s: %v", name, err)
	}
	if written != n {
		return fmt.Errorf("gwfdata: writing netCDF variable %s: wrote %d of %d values", name, written, n)
	}
	return nil
}
