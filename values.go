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
	"reflect"
)

// toFloat64s converts a numeric scalar, slice, or nested slice, as
// returned by the file readers, to a flat []float64.
func toFloat64s(v interface{}) ([]float64, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("no value")
	case []float64:
		return append([]float64(nil), x...), nil
	case []float32:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case []int8:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case []uint16:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case []uint32:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case []uint64:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return []float64{rv.Float()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []float64{float64(rv.Int())}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return []float64{float64(rv.Uint())}, nil
	case reflect.Slice, reflect.Array:
		var out []float64
		for i := 0; i < rv.Len(); i++ {
			e, err := toFloat64s(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, e...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %T to numbers", v)
}

func firstFloat(v interface{}) (float64, bool) {
	f, err := toFloat64s(v)
	if err != nil || len(f) == 0 {
		return 0, false
	}
	return f[0], true
}

// attributeValue converts an attribute value to one of the types that
// can be stored in a netCDF classic file: string, []uint8, []int16,
// []int32, []float32, or []float64. ok is false if v cannot be stored.
func attributeValue(v interface{}) (out interface{}, ok bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []string:
		if len(x) == 1 {
			return x[0], true
		}
		return nil, false
	case []uint8, []int16, []int32, []float32, []float64:
		return x, true
	case int16:
		return []int16{x}, true
	case int32:
		return []int32{x}, true
	case float32:
		return []float32{x}, true
	case float64:
		return []float64{x}, true
	}
	f, err := toFloat64s(v)
	if err != nil {
		return nil, false
	}
	return f, true
}

// product returns the product of the elements of x.
func product(x []int) int {
	n := 1
	for _, e := range x {
		n *= e
	}
	return n
}

// forEachRow calls fn with the index of the first element of each row of
// the hyperslab given by start and count, where a row runs along the last
// dimension. idx must not be retained by fn.
func forEachRow(start, count []int, fn func(idx []int) error) error {
	n := len(start)
	if n == 0 {
		return fn(nil)
	}
	for _, c := range count {
		if c <= 0 {
			return nil
		}
	}
	idx := append([]int(nil), start...)
	for {
		if err := fn(idx); err != nil {
			return err
		}
		d := n - 2
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < start[d]+count[d] {
				break
			}
			idx[d] = start[d]
		}
		if d < 0 {
			return nil
		}
	}
}

// gather extracts the hyperslab given by start and count from data, a
// row-major array with the given shape.
func gather(data []float64, shape, start, count []int) ([]float64, error) {
	if len(data) != product(shape) {
		return nil, fmt.Errorf("have %d values for shape %v", len(data), shape)
	}
	for i := range shape {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > shape[i] {
			return nil, fmt.Errorf("window start %v count %v out of bounds for shape %v", start, count, shape)
		}
	}
	if len(shape) == 0 {
		return append([]float64(nil), data...), nil
	}
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	out := make([]float64, 0, product(count))
	last := len(shape) - 1
	err := forEachRow(start, count, func(idx []int) error {
		off := 0
		for i, j := range idx {
			off += j * strides[i]
		}
		out = append(out, data[off:off+count[last]]...)
		return nil
	})
	return out, err
}
