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

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// coordTolerance is the tolerance used when comparing cell centres with
// the bounds of a constraint, in degrees.
const coordTolerance = 1.0e-9

// Constraint is the spatial part of a subset. At most one field may be
// set; if neither is, the full extent of the dataset is kept.
type Constraint struct {
	Box       *BoundingBox
	Shapefile string
}

func (c Constraint) String() string {
	switch {
	case c.Box != nil:
		return c.Box.String()
	case c.Shapefile != "":
		return "shapefile " + c.Shapefile
	}
	return "full extent"
}

// Selection holds the time steps and grid cells chosen for a subset.
type Selection struct {
	TimeStart, TimeCount int

	// Rows and Cols hold the latitude and longitude indices of the
	// selected cells in output order.
	Rows, Cols []int

	// Lat and Lon are the output coordinates. Longitudes are expressed
	// in the frame of the constraint.
	Lat, Lon []float64

	// Mask marks the selected cells of the len(Rows) by len(Cols) output
	// grid. A nil Mask selects all cells.
	Mask []bool
}

// selectTime returns the range of time steps within tl.
func selectTime(h *DatasetHandle, tl TimeLimits) (start, count int, err error) {
	lo := sort.Search(len(h.Time), func(i int) bool { return !h.Time[i].Before(tl.Start) })
	hi := sort.Search(len(h.Time), func(i int) bool { return h.Time[i].After(tl.End) })
	if hi <= lo {
		first, last := h.Coverage()
		return 0, 0, &EmptyTimeRangeError{Dataset: h.ID, Start: tl.Start, End: tl.End,
			CoverageStart: first, CoverageEnd: last}
	}
	return lo, hi - lo, nil
}

// wrapLon shifts longitude lon by a whole multiple of 360 into
// [base, base+360), within coordTolerance of base. Longitudes already in
// that range are returned unchanged.
func wrapLon(lon, base float64) float64 {
	lo, hi := base-coordTolerance, base+360-coordTolerance
	if lon >= lo && lon < hi {
		return lon
	}
	w := lon - 360*math.Floor((lon-lo)/360)
	for w < lo {
		w += 360
	}
	for w >= hi {
		w -= 360
	}
	return w
}

// selectBox returns the rows and columns whose cell centres are within b,
// bounds included. Longitudes are compared in the frame of b.
func selectBox(h *DatasetHandle, b BoundingBox) (rows, cols []int, lat, lon []float64) {
	for i, y := range h.Lat {
		if y >= b.MinLat-coordTolerance && y <= b.MaxLat+coordTolerance {
			rows = append(rows, i)
			lat = append(lat, y)
		}
	}
	type col struct {
		j   int
		lon float64
	}
	var cc []col
	for j, x := range h.Lon {
		w := wrapLon(x, b.MinLon)
		if w <= b.MaxLon+coordTolerance {
			cc = append(cc, col{j: j, lon: w})
		}
	}
	sort.SliceStable(cc, func(a, b int) bool { return cc[a].lon < cc[b].lon })
	for _, c := range cc {
		cols = append(cols, c.j)
		lon = append(lon, c.lon)
	}
	return rows, cols, lat, lon
}

// SelectCells chooses the time steps and grid cells of h that satisfy tl
// and c. A shapefile constraint is checked against the dataset coordinate
// reference system before any geometry is read.
func SelectCells(h *DatasetHandle, tl TimeLimits, c Constraint) (*Selection, error) {
	if c.Box != nil && c.Shapefile != "" {
		return nil, &ConfigurationError{Field: "space_lims", Err: fmt.Errorf("space_lims and esri_shapefile are mutually exclusive")}
	}
	s := new(Selection)
	var err error
	if s.TimeStart, s.TimeCount, err = selectTime(h, tl); err != nil {
		return nil, err
	}
	switch {
	case c.Box != nil:
		s.Rows, s.Cols, s.Lat, s.Lon = selectBox(h, *c.Box)
	case c.Shapefile != "":
		shp, err := loadShapefile(c.Shapefile, h)
		if err != nil {
			return nil, err
		}
		if err := s.selectShape(h, shp); err != nil {
			return nil, err
		}
	default:
		for i := range h.Lat {
			s.Rows = append(s.Rows, i)
		}
		for j := range h.Lon {
			s.Cols = append(s.Cols, j)
		}
		s.Lat = append([]float64(nil), h.Lat...)
		s.Lon = append([]float64(nil), h.Lon...)
	}
	if len(s.Rows) == 0 || len(s.Cols) == 0 {
		return nil, &EmptySpatialSelectionError{Dataset: h.ID, Constraint: c.String()}
	}
	return s, nil
}

// selectShape selects the cells whose centres are inside or on the edge
// of any polygon, and trims rows and columns with no selected cells.
func (s *Selection) selectShape(h *DatasetHandle, shp *shapeIndex) error {
	b := shp.bounds
	rows, cols, lat, lon := selectBox(h, BoundingBox{MinLon: b.Min.X, MinLat: b.Min.Y, MaxLon: b.Max.X, MaxLat: b.Max.Y})
	mask := make([]bool, len(rows)*len(cols))
	rowUsed := make([]bool, len(rows))
	colUsed := make([]bool, len(cols))
	for i, y := range lat {
		for j, x := range lon {
			if shp.contains(geom.Point{X: x, Y: y}) {
				mask[i*len(cols)+j] = true
				rowUsed[i] = true
				colUsed[j] = true
			}
		}
	}
	for i := range rows {
		if !rowUsed[i] {
			continue
		}
		s.Rows = append(s.Rows, rows[i])
		s.Lat = append(s.Lat, lat[i])
	}
	var keepCols []int
	for j := range cols {
		if !colUsed[j] {
			continue
		}
		keepCols = append(keepCols, j)
		s.Cols = append(s.Cols, cols[j])
		s.Lon = append(s.Lon, lon[j])
	}
	for i := range rows {
		if !rowUsed[i] {
			continue
		}
		for _, j := range keepCols {
			s.Mask = append(s.Mask, mask[i*len(cols)+j])
		}
	}
	return nil
}

// runs splits a list of indices into runs of consecutive increasing
// values, returned as (output offset, first index, length) triples.
func runs(idx []int) [][3]int {
	var r [][3]int
	for k := 0; k < len(idx); {
		n := 1
		for k+n < len(idx) && idx[k+n] == idx[k]+n {
			n++
		}
		r = append(r, [3]int{k, idx[k], n})
		k += n
	}
	return r
}

// Select reads the subset of h given by tl and c. Data are read one time
// step of one variable at a time, and each such chunk advances p.
func Select(ctx context.Context, h *DatasetHandle, tl TimeLimits, c Constraint, p *Progress) (*SubsetResult, error) {
	s, err := SelectCells(h, tl, c)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, v := range h.Variables {
		if v.timeVarying {
			total += s.TimeCount
		} else {
			total++
		}
	}
	p.Start(total)
	defer p.Done()

	r := newSubsetResult(h, s, tl, c)
	rowRuns, colRuns := runs(s.Rows), runs(s.Cols)
	R, C := len(s.Rows), len(s.Cols)
	fill := float64(FillValue)
	for _, v := range h.Variables {
		n := len(v.Dims)
		middle := v.Shape[:n-2]
		first := 0
		if v.timeVarying {
			middle = v.Shape[1 : n-2]
			first = 1
		}
		outShape := append([]int(nil), middle...)
		steps := 1
		if v.timeVarying {
			steps = s.TimeCount
			outShape = append([]int{steps}, outShape...)
		}
		outShape = append(outShape, R, C)
		data := sparse.ZerosDense(outShape...)
		M := product(middle)

		start := make([]int, n)
		count := make([]int, n)
		for k, l := range middle {
			count[first+k] = l
		}
		for t := 0; t < steps; t++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if v.timeVarying {
				start[0], count[0] = s.TimeStart+t, 1
			}
			for _, rr := range rowRuns {
				for _, cr := range colRuns {
					start[n-2], count[n-2] = rr[1], rr[2]
					start[n-1], count[n-1] = cr[1], cr[2]
					vals, err := h.ReadWindow(v, start, count)
					if err != nil {
						return nil, err
					}
					if len(vals) != M*rr[2]*cr[2] {
						return nil, fmt.Errorf("gwfdata: reading %s: got %d values; expected %d", v.Name, len(vals), M*rr[2]*cr[2])
					}
					for m := 0; m < M; m++ {
						for i := 0; i < rr[2]; i++ {
							oi := rr[0] + i
							for j := 0; j < cr[2]; j++ {
								oj := cr[0] + j
								x := vals[(m*rr[2]+i)*cr[2]+j]
								if s.Mask != nil && !s.Mask[oi*C+oj] {
									x = fill
								}
								data.Elements[((t*M+m)*R+oi)*C+oj] = x
							}
						}
					}
				}
			}
			p.Add(1)
		}
		r.Variables = append(r.Variables, &ResultVariable{
			Name:       v.Name,
			Dims:       append([]string(nil), v.Dims...),
			Attributes: copyAttributes(v.Attributes),
			Data:       data,
		})
	}
	return r, nil
}

func newSubsetResult(h *DatasetHandle, s *Selection, tl TimeLimits, c Constraint) *SubsetResult {
	src := h.segments[0].src
	attrs := func(v string) map[string]interface{} {
		a, err := src.Attributes(v)
		if err != nil {
			return map[string]interface{}{}
		}
		out := make(map[string]interface{})
		for k, val := range a {
			if !packingAttributes[k] {
				out[k] = val
			}
		}
		return out
	}
	r := &SubsetResult{
		Dataset: h.ID,
		Time:    append([]time.Time(nil), h.Time[s.TimeStart:s.TimeStart+s.TimeCount]...),
		TimeCoord: Coordinate{
			Name:       h.TimeDim,
			Attributes: attrs(h.Config.TimeVar),
		},
		LatCoord: Coordinate{Name: h.LatDim, Values: s.Lat, Attributes: attrs(h.Config.LatVar)},
		LonCoord: Coordinate{Name: h.LonDim, Values: s.Lon, Attributes: attrs(h.Config.LonVar)},
		Attributes: map[string]interface{}{
			"Conventions":    "CF-1.6",
			"source_dataset": h.ID,
			"history":        "subset with gwfdata " + Version,
			"time_limits":    formatTime(tl.Start) + "/" + formatTime(tl.End),
			"spatial_limits": c.String(),
		},
	}
	r.TimeCoord.Attributes["units"] = h.TimeUnits
	for _, t := range r.Time {
		r.TimeCoord.Values = append(r.TimeCoord.Values, h.units.encode(t))
	}
	seen := map[string]bool{h.TimeDim: true, h.LatDim: true, h.LonDim: true}
	for _, v := range h.Variables {
		for _, d := range v.Dims {
			if seen[d] {
				continue
			}
			seen[d] = true
			if !hasVariable(src, d) {
				continue
			}
			if dd, err := src.Dimensions(d); err != nil || len(dd) != 1 || dd[0] != d {
				continue
			}
			vals, err := src.Coordinate(d)
			if err != nil {
				continue
			}
			r.Extra = append(r.Extra, Coordinate{Name: d, Values: vals, Attributes: attrs(d)})
		}
	}
	return r
}

func copyAttributes(a map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
