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
	"os"

	"github.com/ctessum/cdf"
)

// cdfSource reads netCDF classic and 64-bit offset files.
type cdfSource struct {
	f       *os.File
	nc      *cdf.File
	numRecs int
}

func openNetCDF3(path string, _ DatasetConfig) (source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading netCDF header: %v", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &cdfSource{f: f, nc: nc, numRecs: int(nc.Header.NumRecs(fi.Size()))}, nil
}

func (s *cdfSource) Variables() []string { return s.nc.Header.Variables() }

func (s *cdfSource) Dimensions(v string) ([]string, error) {
	if !hasVariable(s, v) {
		return nil, fmt.Errorf("no variable %s", v)
	}
	return s.nc.Header.Dimensions(v), nil
}

func (s *cdfSource) Shape(v string) ([]int, error) {
	if !hasVariable(s, v) {
		return nil, fmt.Errorf("no variable %s", v)
	}
	l := append([]int(nil), s.nc.Header.Lengths(v)...)
	if s.nc.Header.IsRecordVariable(v) {
		l[0] = s.numRecs
	}
	return l, nil
}

func (s *cdfSource) Attributes(v string) (map[string]interface{}, error) {
	attrs := make(map[string]interface{})
	for _, a := range s.nc.Header.Attributes(v) {
		attrs[a] = s.nc.Header.GetAttribute(v, a)
	}
	return attrs, nil
}

func (s *cdfSource) Coordinate(v string) ([]float64, error) {
	shape, err := s.Shape(v)
	if err != nil {
		return nil, err
	}
	return s.ReadWindow(v, make([]int, len(shape)), shape)
}

// ReadWindow reads the hyperslab one row at a time, because the cdf
// readers cover contiguous ranges of the file.
func (s *cdfSource) ReadWindow(v string, start, count []int) ([]float64, error) {
	shape, err := s.Shape(v)
	if err != nil {
		return nil, err
	}
	if len(start) != len(shape) || len(count) != len(shape) {
		return nil, fmt.Errorf("window rank does not match variable %s rank %d", v, len(shape))
	}
	for i := range shape {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > shape[i] {
			return nil, fmt.Errorf("window start %v count %v out of bounds for %s%v", start, count, v, shape)
		}
	}
	out := make([]float64, 0, product(count))
	if len(shape) == 0 {
		r := s.nc.Reader(v, nil, nil)
		buf := r.Zero(1)
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("reading %s: %v", v, err)
		}
		return toFloat64s(buf)
	}
	last := len(shape) - 1
	begin := make([]int, len(shape))
	end := make([]int, len(shape))
	err = forEachRow(start, count, func(idx []int) error {
		copy(begin, idx)
		copy(end, idx)
		end[last] = idx[last] + count[last] - 1
		r := s.nc.Reader(v, begin, end)
		buf := r.Zero(count[last])
		if _, err := r.Read(buf); err != nil {
			return fmt.Errorf("reading %s at %v: %v", v, begin, err)
		}
		vals, err := toFloat64s(buf)
		if err != nil {
			return err
		}
		out = append(out, vals...)
		return nil
	})
	return out, err
}

func (s *cdfSource) Close() error { return s.f.Close() }
