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

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// ncSource reads netCDF-4 files, and classic files as well.
type ncSource struct {
	g       api.Group
	getters map[string]api.VarGetter
}

func openNetCDF4(path string, _ DatasetConfig) (source, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	return &ncSource{g: g, getters: make(map[string]api.VarGetter)}, nil
}

func (s *ncSource) getter(v string) (api.VarGetter, error) {
	if vg, ok := s.getters[v]; ok {
		return vg, nil
	}
	vg, err := s.g.GetVarGetter(v)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %v", v, err)
	}
	s.getters[v] = vg
	return vg, nil
}

func (s *ncSource) Variables() []string { return s.g.ListVariables() }

func (s *ncSource) Dimensions(v string) ([]string, error) {
	vg, err := s.getter(v)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), vg.Dimensions()...), nil
}

func (s *ncSource) Shape(v string) ([]int, error) {
	vg, err := s.getter(v)
	if err != nil {
		return nil, err
	}
	dims := vg.Dimensions()
	lengths := vg.Shape()
	if len(lengths) != len(dims) {
		return nil, fmt.Errorf("variable %s: %d dimension lengths for dimensions %v", v, len(lengths), dims)
	}
	shape := make([]int, len(lengths))
	for i, l := range lengths {
		shape[i] = int(l)
	}
	return shape, nil
}

func (s *ncSource) Attributes(v string) (map[string]interface{}, error) {
	vg, err := s.getter(v)
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]interface{})
	am := vg.Attributes()
	if am == nil {
		return attrs, nil
	}
	for _, k := range am.Keys() {
		if val, ok := am.Get(k); ok {
			attrs[k] = val
		}
	}
	return attrs, nil
}

func (s *ncSource) Coordinate(v string) ([]float64, error) {
	vg, err := s.getter(v)
	if err != nil {
		return nil, err
	}
	vals, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v", v, err)
	}
	return toFloat64s(vals)
}

// ReadWindow reads whole slabs along the first dimension and then
// extracts the window from them.
func (s *ncSource) ReadWindow(v string, start, count []int) ([]float64, error) {
	vg, err := s.getter(v)
	if err != nil {
		return nil, err
	}
	shape, err := s.Shape(v)
	if err != nil {
		return nil, err
	}
	if len(start) != len(shape) || len(count) != len(shape) {
		return nil, fmt.Errorf("window rank does not match variable %s rank %d", v, len(shape))
	}
	if len(shape) == 0 {
		return s.Coordinate(v)
	}
	if start[0] < 0 || count[0] < 0 || start[0]+count[0] > shape[0] {
		return nil, fmt.Errorf("window start %v count %v out of bounds for %s%v", start, count, v, shape)
	}
	if count[0] == 0 {
		return nil, nil
	}
	slab, err := vg.GetSlice(int64(start[0]), int64(start[0]+count[0]))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v", v, err)
	}
	vals, err := toFloat64s(slab)
	if err != nil {
		return nil, err
	}
	if n := count[0] * product(shape[1:]); len(vals) != n {
		return nil, fmt.Errorf("reading %s: slab has %d values; want %d", v, len(vals), n)
	}
	slabShape := append([]int{count[0]}, shape[1:]...)
	slabStart := append([]int{0}, start[1:]...)
	return gather(vals, slabShape, slabStart, count)
}

func (s *ncSource) Close() error {
	s.g.Close()
	return nil
}
