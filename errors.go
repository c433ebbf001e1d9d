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
	"time"
)

// ConfigurationError is returned when a subset request is malformed:
// missing or invalid fields, conflicting spatial constraints, or input
// that cannot be parsed.
type ConfigurationError struct {
	// Field is the name of the offending request field, if known.
	Field string
	// Value is the offending value, if any.
	Value interface{}
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("gwfdata: invalid configuration: %v", e.Err)
	}
	if e.Value == nil {
		return fmt.Sprintf("gwfdata: invalid configuration: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("gwfdata: invalid configuration: %s=%v: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DatasetNotFoundError is returned when a dataset identifier is not in the
// catalog or its files cannot be found.
type DatasetNotFoundError struct {
	Dataset string
	Err     error
}

func (e *DatasetNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gwfdata: dataset %q not found: %v", e.Dataset, e.Err)
	}
	return fmt.Sprintf("gwfdata: dataset %q not found", e.Dataset)
}

func (e *DatasetNotFoundError) Unwrap() error { return e.Err }

// VariableNotFoundError is returned when a requested variable is not
// present in a dataset.
type VariableNotFoundError struct {
	Dataset, Variable string
	Reason            string
}

func (e *VariableNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("gwfdata: variable %q in dataset %q: %s", e.Variable, e.Dataset, e.Reason)
	}
	return fmt.Sprintf("gwfdata: variable %q not found in dataset %q", e.Variable, e.Dataset)
}

// EmptyTimeRangeError is returned when no time step of a dataset falls
// within the requested time limits.
type EmptyTimeRangeError struct {
	Dataset    string
	Start, End time.Time
	// CoverageStart and CoverageEnd give the time span of the dataset.
	CoverageStart, CoverageEnd time.Time
}

func (e *EmptyTimeRangeError) Error() string {
	return fmt.Sprintf("gwfdata: no time steps of dataset %q between %s and %s; dataset covers %s to %s",
		e.Dataset, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339),
		e.CoverageStart.Format(time.RFC3339), e.CoverageEnd.Format(time.RFC3339))
}

// InvalidGeometryError is returned when a shapefile cannot be read or does
// not contain usable polygon geometry.
type InvalidGeometryError struct {
	Path string
	Err  error
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("gwfdata: invalid geometry in %s: %v", e.Path, e.Err)
}

func (e *InvalidGeometryError) Unwrap() error { return e.Err }

// CRSMismatchError is returned when the coordinate reference system of a
// shapefile differs from that of the dataset it is applied to.
type CRSMismatchError struct {
	Dataset   string
	Shapefile string
	// DatasetCRS and ShapefileCRS describe the two reference systems.
	DatasetCRS, ShapefileCRS string
}

func (e *CRSMismatchError) Error() string {
	return fmt.Sprintf("gwfdata: shapefile %s coordinate reference system (%s) does not match dataset %q (%s)",
		e.Shapefile, e.ShapefileCRS, e.Dataset, e.DatasetCRS)
}

// EmptySpatialSelectionError is returned when a spatial constraint does not
// contain the centre of any grid cell of the dataset.
type EmptySpatialSelectionError struct {
	Dataset    string
	Constraint string
}

func (e *EmptySpatialSelectionError) Error() string {
	return fmt.Sprintf("gwfdata: %s selects no grid cells of dataset %q", e.Constraint, e.Dataset)
}

// UnsupportedReturnMethodError is returned for an unknown return method.
type UnsupportedReturnMethodError struct {
	Method string
}

func (e *UnsupportedReturnMethodError) Error() string {
	return fmt.Sprintf("gwfdata: unsupported return method %q", e.Method)
}

// TransferError is returned when a remote transfer fails.
type TransferError struct {
	Destination string
	Err         error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("gwfdata: transfer to %s failed: %v", e.Destination, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
