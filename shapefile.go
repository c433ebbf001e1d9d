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
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
	"gonum.org/v1/gonum/floats"
)

// shapeIndex holds the polygons of a shapefile in a spatial index.
type shapeIndex struct {
	path   string
	tree   *rtree.Rtree
	bounds *geom.Bounds
	n      int
}

// loadShapefile reads the polygons in the shapefile at path. The
// coordinate reference system in the accompanying .prj file must match
// that of h; this is checked before any shapes are read.
func loadShapefile(path string, h *DatasetHandle) (idx *shapeIndex, err error) {
	defer func() {
		if r := recover(); r != nil {
			idx, err = nil, &InvalidGeometryError{Path: path, Err: fmt.Errorf("%v", r)}
		}
	}()
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, &InvalidGeometryError{Path: path, Err: err}
	}
	defer d.Close()

	sr, err := d.SR()
	if err != nil {
		return nil, &CRSMismatchError{Dataset: h.ID, Shapefile: path,
			DatasetCRS: h.Config.CRS, ShapefileCRS: fmt.Sprintf("unreadable: %v", err)}
	}
	if !sameCRS(sr, h.SR) {
		return nil, &CRSMismatchError{Dataset: h.ID, Shapefile: path,
			DatasetCRS: describeSR(h.SR), ShapefileCRS: describeSR(sr)}
	}

	switch d.GeometryType {
	case goshp.POLYGON, goshp.POLYGONM, goshp.POLYGONZ:
	default:
		return nil, &InvalidGeometryError{Path: path,
			Err: fmt.Errorf("shape type %d is not a polygon type", d.GeometryType)}
	}

	idx = &shapeIndex{path: path, tree: rtree.NewTree(25, 50), bounds: geom.NewBounds()}
	for {
		g, _, more := d.DecodeRowFields()
		if !more {
			break
		}
		var p geom.Polygonal
		switch t := g.(type) {
		case nil:
			continue // Null shape.
		case geom.Polygon:
			p = t
		case geom.MultiPolygon:
			p = t
		default:
			return nil, &InvalidGeometryError{Path: path, Err: fmt.Errorf("unsupported geometry %T", g)}
		}
		if len(p.Polygons()) == 0 || p.Bounds().Empty() {
			continue
		}
		idx.tree.Insert(p)
		idx.bounds.Extend(p.Bounds())
		idx.n++
	}
	if err := d.Error(); err != nil {
		return nil, &InvalidGeometryError{Path: path, Err: err}
	}
	if idx.n == 0 {
		return nil, &InvalidGeometryError{Path: path, Err: fmt.Errorf("no polygons found")}
	}
	return idx, nil
}

// contains returns whether p is inside or on the edge of any polygon.
func (s *shapeIndex) contains(p geom.Point) bool {
	for _, g := range s.tree.SearchIntersect(p.Bounds()) {
		if p.Within(g.(geom.Polygonal)) != geom.Outside {
			return true
		}
	}
	return false
}

// sameCRS returns whether a and b describe the same coordinate reference
// system: the same projection with the same parameters, and the same
// datum or ellipsoid.
func sameCRS(a, b *proj.SR) bool {
	if a == nil || b == nil {
		return false
	}
	if !strings.EqualFold(a.Name, b.Name) {
		return false
	}
	params := [][2]float64{
		{a.Lat0, b.Lat0}, {a.Lat1, b.Lat1}, {a.Lat2, b.Lat2}, {a.LatTS, b.LatTS},
		{a.Long0, b.Long0}, {a.X0, b.X0}, {a.Y0, b.Y0}, {a.K0, b.K0},
		{a.FromGreenwich, b.FromGreenwich},
	}
	if a.Name != "longlat" {
		params = append(params, [2]float64{a.ToMeter, b.ToMeter})
	}
	for _, p := range params {
		if !sameParam(p[0], p[1]) {
			return false
		}
	}
	da, db := strings.ToLower(a.DatumCode), strings.ToLower(b.DatumCode)
	if da != "" && db != "" && da != "none" && db != "none" {
		return da == db
	}
	return sameParam(a.A, b.A) && sameParam(a.B, b.B)
}

// sameParam compares projection parameters. Unset parameters are NaN or
// zero depending on how the projection was specified, so NaN and zero
// are taken to be equal.
func sameParam(a, b float64) bool {
	if math.IsNaN(a) {
		a = 0
	}
	if math.IsNaN(b) {
		b = 0
	}
	return floats.EqualWithinAbsOrRel(a, b, 1.0e-10, 1.0e-9)
}

func describeSR(sr *proj.SR) string {
	if sr.DatumCode != "" {
		return fmt.Sprintf("%s, datum %s", sr.Name, sr.DatumCode)
	}
	return sr.Name
}
