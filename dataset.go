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
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ctessum/geom/proj"
	"gonum.org/v1/gonum/floats"
)

// FillValue is written in place of missing or masked data.
const FillValue float32 = 9.96921e36

// source is a single file of a dataset. Variable data are only read by
// ReadWindow; everything else reads metadata.
type source interface {
	Variables() []string
	Dimensions(v string) ([]string, error)
	Shape(v string) ([]int, error)
	Attributes(v string) (map[string]interface{}, error)

	// Coordinate reads all values of a one-dimensional variable.
	Coordinate(v string) ([]float64, error)

	// ReadWindow reads the hyperslab of v beginning at start with
	// count elements along each dimension, in row-major order.
	ReadWindow(v string, start, count []int) ([]float64, error)

	Close() error
}

// openers open a file of the given format.
var openers = map[string]func(path string, dc DatasetConfig) (source, error){
	FormatNetCDF3: openNetCDF3,
	FormatNetCDF4: openNetCDF4,
	FormatHDF5:    openHDF5,
}

// Variable describes a data variable of an open dataset.
type Variable struct {
	Name string

	// Dims and Shape give the dimension names and lengths. The length of
	// the time dimension covers all files of the dataset.
	Dims  []string
	Shape []int

	// Attributes holds the variable attributes except those that
	// describe packing or missing values, which are applied on read.
	Attributes map[string]interface{}

	timeVarying   bool
	scale, offset float64
	missing       []float64
}

// packingAttributes are consumed on read and not passed through.
var packingAttributes = map[string]bool{
	"scale_factor":  true,
	"add_offset":    true,
	"_FillValue":    true,
	"missing_value": true,
	"valid_min":     true,
	"valid_max":     true,
	"valid_range":   true,
}

// DatasetHandle is an open dataset. Only metadata and coordinates are
// held in memory; variable data are read on demand.
type DatasetHandle struct {
	ID     string
	Config DatasetConfig
	SR     *proj.SR

	// Time holds the time of each step across all files, and TimeUnits
	// the CF units of the first file.
	Time      []time.Time
	TimeUnits string

	TimeDim, LatDim, LonDim string
	Lat, Lon                []float64

	// Variables holds the requested variables in request order.
	Variables []*Variable

	units    timeUnits
	segments []segment
}

// segment is one file of a dataset and the range of time steps it holds.
type segment struct {
	path  string
	src   source
	first int
	n     int
}

// Open opens the dataset id from catalog c and checks that all of the
// given variables are present. Only metadata are read. The caller must
// call Close on the returned handle.
func Open(ctx context.Context, c *Catalog, id string, variables []string) (*DatasetHandle, error) {
	dc, err := c.Lookup(id)
	if err != nil {
		return nil, err
	}
	open, ok := openers[dc.Format]
	if !ok {
		return nil, fmt.Errorf("gwfdata: dataset %q: unsupported format %q", id, dc.Format)
	}
	files, err := dc.files()
	if err != nil {
		return nil, &DatasetNotFoundError{Dataset: id, Err: err}
	}
	sr, err := proj.Parse(dc.CRS)
	if err != nil {
		return nil, fmt.Errorf("gwfdata: dataset %q: parsing coordinate reference system: %v", id, err)
	}

	h := &DatasetHandle{ID: id, Config: dc, SR: sr}
	ok = false
	defer func() {
		if !ok {
			h.Close()
		}
	}()

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := open(path, dc)
		if err != nil {
			return nil, fmt.Errorf("gwfdata: dataset %q: opening %s: %v", id, path, err)
		}
		h.segments = append(h.segments, segment{path: path, src: src, first: len(h.Time)})
		if i == 0 {
			if err := h.readGrid(src); err != nil {
				return nil, err
			}
		} else if err := h.checkGrid(src, path); err != nil {
			return nil, err
		}
		if err := h.readTime(&h.segments[len(h.segments)-1]); err != nil {
			return nil, err
		}
	}
	for _, v := range variables {
		vv, err := h.variable(v)
		if err != nil {
			return nil, err
		}
		h.Variables = append(h.Variables, vv)
	}
	ok = true
	return h, nil
}

// Close closes all files of the dataset.
func (h *DatasetHandle) Close() error {
	var first error
	for _, s := range h.segments {
		if err := s.src.Close(); err != nil && first == nil {
			first = fmt.Errorf("gwfdata: closing %s: %v", s.path, err)
		}
	}
	h.segments = nil
	return first
}

// coordDim returns the dimension of one-dimensional coordinate variable v.
func coordDim(src source, v string) (string, error) {
	dims, err := src.Dimensions(v)
	if err != nil {
		return "", err
	}
	if len(dims) != 1 {
		return "", fmt.Errorf("coordinate variable %s has %d dimensions; expected 1", v, len(dims))
	}
	return dims[0], nil
}

func (h *DatasetHandle) readGrid(src source) error {
	dc := h.Config
	for _, v := range []string{dc.TimeVar, dc.LatVar, dc.LonVar} {
		if !hasVariable(src, v) {
			return &VariableNotFoundError{Dataset: h.ID, Variable: v, Reason: "coordinate variable not found"}
		}
	}
	var err error
	if h.TimeDim, err = coordDim(src, dc.TimeVar); err != nil {
		return fmt.Errorf("gwfdata: dataset %q: %v", h.ID, err)
	}
	if h.LatDim, err = coordDim(src, dc.LatVar); err != nil {
		return fmt.Errorf("gwfdata: dataset %q: %v", h.ID, err)
	}
	if h.LonDim, err = coordDim(src, dc.LonVar); err != nil {
		return fmt.Errorf("gwfdata: dataset %q: %v", h.ID, err)
	}
	if h.Lat, err = src.Coordinate(dc.LatVar); err != nil {
		return fmt.Errorf("gwfdata: dataset %q: reading %s: %v", h.ID, dc.LatVar, err)
	}
	if h.Lon, err = src.Coordinate(dc.LonVar); err != nil {
		return fmt.Errorf("gwfdata: dataset %q: reading %s: %v", h.ID, dc.LonVar, err)
	}
	if !monotonic(h.Lat) || !monotonic(h.Lon) {
		return fmt.Errorf("gwfdata: dataset %q: latitude and longitude must be strictly monotonic", h.ID)
	}
	return nil
}

// checkGrid checks that a further file of a dataset is on the same grid
// as the first.
func (h *DatasetHandle) checkGrid(src source, path string) error {
	lat, err := src.Coordinate(h.Config.LatVar)
	if err != nil {
		return fmt.Errorf("gwfdata: dataset %q: reading %s from %s: %v", h.ID, h.Config.LatVar, path, err)
	}
	lon, err := src.Coordinate(h.Config.LonVar)
	if err != nil {
		return fmt.Errorf("gwfdata: dataset %q: reading %s from %s: %v", h.ID, h.Config.LonVar, path, err)
	}
	if len(lat) != len(h.Lat) || len(lon) != len(h.Lon) ||
		!floats.EqualApprox(lat, h.Lat, 1.0e-9) || !floats.EqualApprox(lon, h.Lon, 1.0e-9) {
		return fmt.Errorf("gwfdata: dataset %q: grid of %s differs from that of %s", h.ID, path, h.segments[0].path)
	}
	return nil
}

func (h *DatasetHandle) readTime(s *segment) error {
	attrs, err := s.src.Attributes(h.Config.TimeVar)
	if err != nil {
		return fmt.Errorf("gwfdata: dataset %q: %v", h.ID, err)
	}
	unitStr := h.Config.TimeUnits
	if unitStr == "" {
		unitStr, _ = attrs["units"].(string)
	}
	units, err := parseTimeUnits(unitStr)
	if err != nil {
		return fmt.Errorf("gwfdata: dataset %q: %s: %v", h.ID, s.path, err)
	}
	if cal, ok := attrs["calendar"].(string); ok {
		if err := checkCalendar(cal); err != nil {
			return fmt.Errorf("gwfdata: dataset %q: %s: %v", h.ID, s.path, err)
		}
	}
	if h.TimeUnits == "" {
		h.TimeUnits = units.raw
		h.units = units
	}
	vals, err := s.src.Coordinate(h.Config.TimeVar)
	if err != nil {
		return fmt.Errorf("gwfdata: dataset %q: reading %s from %s: %v", h.ID, h.Config.TimeVar, s.path, err)
	}
	for _, v := range vals {
		t := units.decode(v)
		if n := len(h.Time); n > 0 && !t.After(h.Time[n-1]) {
			return fmt.Errorf("gwfdata: dataset %q: time steps are not increasing at %s in %s",
				h.ID, t.Format(time.RFC3339), s.path)
		}
		h.Time = append(h.Time, t)
	}
	s.n = len(vals)
	return nil
}

func hasVariable(src source, v string) bool {
	for _, vv := range src.Variables() {
		if vv == v {
			return true
		}
	}
	return false
}

// variable checks and describes requested variable v.
func (h *DatasetHandle) variable(v string) (*Variable, error) {
	src := h.segments[0].src
	if !hasVariable(src, v) {
		return nil, &VariableNotFoundError{Dataset: h.ID, Variable: v}
	}
	dims, err := src.Dimensions(v)
	if err != nil {
		return nil, fmt.Errorf("gwfdata: dataset %q: %v", h.ID, err)
	}
	n := len(dims)
	if n < 2 || dims[n-2] != h.LatDim || dims[n-1] != h.LonDim {
		return nil, &VariableNotFoundError{Dataset: h.ID, Variable: v,
			Reason: fmt.Sprintf("dimensions %v do not end with (%s, %s)", dims, h.LatDim, h.LonDim)}
	}
	shape, err := src.Shape(v)
	if err != nil {
		return nil, fmt.Errorf("gwfdata: dataset %q: %v", h.ID, err)
	}
	attrs, err := src.Attributes(v)
	if err != nil {
		return nil, fmt.Errorf("gwfdata: dataset %q: %v", h.ID, err)
	}
	vv := &Variable{
		Name:        v,
		Dims:        dims,
		Shape:       shape,
		Attributes:  make(map[string]interface{}),
		timeVarying: dims[0] == h.TimeDim,
		scale:       1,
	}
	if vv.timeVarying {
		vv.Shape[0] = len(h.Time)
	}
	for k, a := range attrs {
		if !packingAttributes[k] {
			vv.Attributes[k] = a
		}
	}
	if f, ok := firstFloat(attrs["scale_factor"]); ok {
		vv.scale = f
	}
	if f, ok := firstFloat(attrs["add_offset"]); ok {
		vv.offset = f
	}
	for _, k := range []string{"_FillValue", "missing_value"} {
		if vals, err := toFloat64s(attrs[k]); err == nil {
			vv.missing = append(vv.missing, vals...)
		}
	}
	return vv, nil
}

// GriddedVariables returns the sorted names of the variables of h that
// can be subset: those whose last two dimensions are latitude and
// longitude.
func (h *DatasetHandle) GriddedVariables() []string {
	if len(h.segments) == 0 {
		return nil
	}
	src := h.segments[0].src
	var names []string
	for _, v := range src.Variables() {
		dims, err := src.Dimensions(v)
		if err != nil {
			continue
		}
		n := len(dims)
		if n >= 2 && dims[n-2] == h.LatDim && dims[n-1] == h.LonDim {
			names = append(names, v)
		}
	}
	sort.Strings(names)
	return names
}

// Variable returns the open variable with the given name, or nil.
func (h *DatasetHandle) Variable(name string) *Variable {
	for _, v := range h.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// ReadWindow reads a hyperslab of variable v, unpacking values and
// replacing missing values with FillValue. For time-varying variables the
// first index is a time step of the whole dataset, which may span files.
func (h *DatasetHandle) ReadWindow(v *Variable, start, count []int) ([]float64, error) {
	if len(start) != len(v.Dims) || len(count) != len(v.Dims) {
		return nil, fmt.Errorf("gwfdata: reading %s: window rank does not match variable rank %d", v.Name, len(v.Dims))
	}
	var raw []float64
	if !v.timeVarying {
		var err error
		if raw, err = h.segments[0].src.ReadWindow(v.Name, start, count); err != nil {
			return nil, fmt.Errorf("gwfdata: reading %s from %s: %v", v.Name, h.segments[0].path, err)
		}
	} else {
		lo, hi := start[0], start[0]+count[0]
		for _, s := range h.segments {
			a, b := maxInt(lo, s.first), minInt(hi, s.first+s.n)
			if a >= b {
				continue
			}
			st := append([]int{a - s.first}, start[1:]...)
			ct := append([]int{b - a}, count[1:]...)
			vals, err := s.src.ReadWindow(v.Name, st, ct)
			if err != nil {
				return nil, fmt.Errorf("gwfdata: reading %s from %s: %v", v.Name, s.path, err)
			}
			raw = append(raw, vals...)
		}
	}
	fill := float64(FillValue)
	for i, x := range raw {
		if math.IsNaN(x) || v.isMissing(x) {
			raw[i] = fill
			continue
		}
		raw[i] = x*v.scale + v.offset
	}
	return raw, nil
}

func (v *Variable) isMissing(x float64) bool {
	for _, m := range v.missing {
		if x == m || (m != 0 && math.Abs(x-m) <= math.Abs(m)*1.0e-7) {
			return true
		}
	}
	return false
}

// Coverage returns the first and last time of the dataset.
func (h *DatasetHandle) Coverage() (time.Time, time.Time) {
	if len(h.Time) == 0 {
		return time.Time{}, time.Time{}
	}
	return h.Time[0], h.Time[len(h.Time)-1]
}

func monotonic(x []float64) bool {
	if len(x) < 2 {
		return len(x) == 1
	}
	inc := x[1] > x[0]
	for i := 1; i < len(x); i++ {
		if (inc && x[i] <= x[i-1]) || (!inc && x[i] >= x[i-1]) {
			return false
		}
	}
	return true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
