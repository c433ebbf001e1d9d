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
	"sort"
	"strings"

	"github.com/scigolib/hdf5"
)

// h5Source reads plain HDF5 files. HDF5 datasets carry no dimension
// names, so every data variable is assumed to have the dimensions given
// in the catalog, and dimension lengths are taken from the coordinate
// datasets of the same names.
type h5Source struct {
	f        *hdf5.File
	datasets map[string]*hdf5.Dataset
	dims     []string
	coords   map[string][]float64

	// data caches whole data variables. Hyperslab reads of contiguous
	// datasets are not reliable, so windows are cut from full reads.
	data map[string][]float64
}

func openHDF5(path string, dc DatasetConfig) (source, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	s := &h5Source{
		f:        f,
		datasets: make(map[string]*hdf5.Dataset),
		dims:     dc.Dimensions,
		coords:   make(map[string][]float64),
		data:     make(map[string][]float64),
	}
	f.Walk(func(p string, obj hdf5.Object) {
		if ds, ok := obj.(*hdf5.Dataset); ok {
			s.datasets[strings.TrimPrefix(p, "/")] = ds
		}
	})
	for _, d := range s.dims {
		if _, ok := s.datasets[d]; !ok {
			f.Close()
			return nil, fmt.Errorf("no coordinate dataset for dimension %s", d)
		}
		if _, err := s.Coordinate(d); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *h5Source) Variables() []string {
	names := make([]string, 0, len(s.datasets))
	for n := range s.datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *h5Source) isDim(v string) bool {
	for _, d := range s.dims {
		if d == v {
			return true
		}
	}
	return false
}

func (s *h5Source) Dimensions(v string) ([]string, error) {
	if _, ok := s.datasets[v]; !ok {
		return nil, fmt.Errorf("no dataset %s", v)
	}
	if s.isDim(v) {
		return []string{v}, nil
	}
	return append([]string(nil), s.dims...), nil
}

func (s *h5Source) Shape(v string) ([]int, error) {
	dims, err := s.Dimensions(v)
	if err != nil {
		return nil, err
	}
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = len(s.coords[d])
	}
	return shape, nil
}

func (s *h5Source) Attributes(v string) (map[string]interface{}, error) {
	ds, ok := s.datasets[v]
	if !ok {
		return nil, fmt.Errorf("no dataset %s", v)
	}
	names, err := ds.ListAttributes()
	if err != nil {
		return nil, fmt.Errorf("listing attributes of %s: %v", v, err)
	}
	attrs := make(map[string]interface{})
	for _, n := range names {
		val, err := ds.ReadAttribute(n)
		if err != nil {
			return nil, fmt.Errorf("reading attribute %s of %s: %v", n, v, err)
		}
		attrs[n] = val
	}
	return attrs, nil
}

func (s *h5Source) Coordinate(v string) ([]float64, error) {
	if c, ok := s.coords[v]; ok {
		return c, nil
	}
	ds, ok := s.datasets[v]
	if !ok {
		return nil, fmt.Errorf("no dataset %s", v)
	}
	vals, err := ds.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v", v, err)
	}
	if s.isDim(v) {
		s.coords[v] = vals
	}
	return vals, nil
}

func (s *h5Source) ReadWindow(v string, start, count []int) ([]float64, error) {
	ds, ok := s.datasets[v]
	if !ok {
		return nil, fmt.Errorf("no dataset %s", v)
	}
	if s.isDim(v) {
		c, err := s.Coordinate(v)
		if err != nil {
			return nil, err
		}
		return gather(c, []int{len(c)}, start, count)
	}
	shape, err := s.Shape(v)
	if err != nil {
		return nil, err
	}
	if len(start) != len(shape) || len(count) != len(shape) {
		return nil, fmt.Errorf("window rank does not match variable %s rank %d", v, len(shape))
	}
	vals, ok := s.data[v]
	if !ok {
		if vals, err = ds.Read(); err != nil {
			return nil, fmt.Errorf("reading %s: %v", v, err)
		}
		if len(vals) != product(shape) {
			return nil, fmt.Errorf("dataset %s has %d values; dimensions %v have lengths %v", v, len(vals), s.dims, shape)
		}
		s.data[v] = vals
	}
	return gather(vals, shape, start, count)
}

func (s *h5Source) Close() error { return s.f.Close() }
