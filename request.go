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
	"time"

	"github.com/gwf/gwfdata/internal/hash"
)

// ReturnMethod specifies how a subset is delivered.
type ReturnMethod string

const (
	// LocalFile writes the subset to a file on the local file system.
	LocalFile ReturnMethod = "local-file"
	// RemoteTransfer stages the subset locally and hands it to a
	// transfer backend.
	RemoteTransfer ReturnMethod = "remote-transfer"
	// Globus is a named remote transfer. The staged subset is handed to
	// the configured transfer backend like RemoteTransfer.
	Globus ReturnMethod = "globus"
)

// ParseReturnMethod returns the return method named by s.
func ParseReturnMethod(s string) (ReturnMethod, error) {
	m := ReturnMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.valid() {
		return "", &UnsupportedReturnMethodError{Method: s}
	}
	return m, nil
}

func (m ReturnMethod) valid() bool {
	switch m {
	case LocalFile, RemoteTransfer, Globus:
		return true
	}
	return false
}

// Remote returns whether m delivers the subset through a transfer backend.
func (m ReturnMethod) Remote() bool {
	return m == RemoteTransfer || m == Globus
}

// TimeLimits is an inclusive time range.
type TimeLimits struct {
	Start, End time.Time
}

// Contains returns whether t is within the limits, bounds included.
func (tl TimeLimits) Contains(t time.Time) bool {
	return !t.Before(tl.Start) && !t.After(tl.End)
}

// BoundingBox is a rectangular region in longitude and latitude.
type BoundingBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("bounding box (%g, %g, %g, %g)", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

func (b BoundingBox) validate() error {
	for _, v := range []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("coordinates must be finite")
		}
	}
	if b.MinLon >= b.MaxLon {
		return fmt.Errorf("minimum longitude %g must be less than maximum longitude %g", b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("minimum latitude %g must be less than maximum latitude %g", b.MinLat, b.MaxLat)
	}
	if b.MinLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("latitudes must be within [-90, 90]")
	}
	if b.MinLon < -360 || b.MaxLon > 360 || b.MaxLon-b.MinLon > 360 {
		return fmt.Errorf("longitudes must be within [-360, 360] and span at most 360 degrees")
	}
	return nil
}

// SubsetRequest holds the parameters of one subsetting operation.
// It is immutable once created; use NewSubsetRequest or one of the
// From* adapters to create one.
type SubsetRequest struct {
	dataset      string
	variables    []string
	timeLims     TimeLimits
	spaceLims    *BoundingBox
	shapefile    string
	returnMethod ReturnMethod
	slurmJob     bool

	spaceSet, shapeSet bool
}

// RequestOption sets an optional field of a SubsetRequest.
type RequestOption func(*SubsetRequest)

// WithSpaceLims restricts the subset to the given bounding box.
func WithSpaceLims(b BoundingBox) RequestOption {
	return func(r *SubsetRequest) {
		r.spaceLims = &b
		r.spaceSet = true
	}
}

// WithShapefile restricts the subset to the polygons in the ESRI shapefile
// at path.
func WithShapefile(path string) RequestOption {
	return func(r *SubsetRequest) {
		r.shapefile = path
		r.shapeSet = true
	}
}

// WithSlurmJob marks the request as running inside a SLURM allocation.
func WithSlurmJob(slurmJob bool) RequestOption {
	return func(r *SubsetRequest) {
		r.slurmJob = slurmJob
	}
}

// NewSubsetRequest validates its arguments and returns a new request.
// Any validation failure is returned as a *ConfigurationError.
func NewSubsetRequest(dataset string, variables []string, timeLims TimeLimits, returnMethod ReturnMethod, opts ...RequestOption) (*SubsetRequest, error) {
	r := &SubsetRequest{
		dataset:      strings.TrimSpace(dataset),
		variables:    append([]string(nil), variables...),
		timeLims:     TimeLimits{Start: timeLims.Start.UTC(), End: timeLims.End.UTC()},
		returnMethod: returnMethod,
	}
	for _, o := range opts {
		o(r)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	r.spaceSet, r.shapeSet = false, false
	return r, nil
}

func (r *SubsetRequest) validate() error {
	if r.dataset == "" {
		return &ConfigurationError{Field: "dataset", Err: fmt.Errorf("dataset must be specified")}
	}
	if len(r.variables) == 0 {
		return &ConfigurationError{Field: "variables", Err: fmt.Errorf("at least one variable must be specified")}
	}
	seen := make(map[string]bool)
	for _, v := range r.variables {
		if strings.TrimSpace(v) == "" {
			return &ConfigurationError{Field: "variables", Value: r.variables, Err: fmt.Errorf("variable names must not be empty")}
		}
		if seen[v] {
			return &ConfigurationError{Field: "variables", Value: v, Err: fmt.Errorf("variable listed more than once")}
		}
		seen[v] = true
	}
	if r.timeLims.Start.IsZero() || r.timeLims.End.IsZero() {
		return &ConfigurationError{Field: "time_lims", Err: fmt.Errorf("start and end must both be specified")}
	}
	if r.timeLims.Start.After(r.timeLims.End) {
		return &ConfigurationError{Field: "time_lims", Value: r.timeLims.Start.Format(time.RFC3339),
			Err: fmt.Errorf("start is after end %s", r.timeLims.End.Format(time.RFC3339))}
	}
	if r.spaceSet && r.shapeSet {
		return &ConfigurationError{Field: "space_lims", Err: fmt.Errorf("space_lims and esri_shapefile are mutually exclusive")}
	}
	if r.spaceLims != nil {
		if err := r.spaceLims.validate(); err != nil {
			return &ConfigurationError{Field: "space_lims", Value: *r.spaceLims, Err: err}
		}
	}
	if r.shapeSet && strings.TrimSpace(r.shapefile) == "" {
		return &ConfigurationError{Field: "esri_shapefile", Err: fmt.Errorf("path must not be empty")}
	}
	if !r.returnMethod.valid() {
		return &ConfigurationError{Field: "return_method", Value: string(r.returnMethod),
			Err: &UnsupportedReturnMethodError{Method: string(r.returnMethod)}}
	}
	return nil
}

// Dataset returns the dataset identifier.
func (r *SubsetRequest) Dataset() string { return r.dataset }

// Variables returns the requested variable names in request order.
func (r *SubsetRequest) Variables() []string { return append([]string(nil), r.variables...) }

// TimeLims returns the inclusive time range.
func (r *SubsetRequest) TimeLims() TimeLimits { return r.timeLims }

// SpaceLims returns the bounding box and whether one was set.
func (r *SubsetRequest) SpaceLims() (BoundingBox, bool) {
	if r.spaceLims == nil {
		return BoundingBox{}, false
	}
	return *r.spaceLims, true
}

// Shapefile returns the path of the ESRI shapefile, or "" if none was set.
func (r *SubsetRequest) Shapefile() string { return r.shapefile }

// ReturnMethod returns the delivery method.
func (r *SubsetRequest) ReturnMethod() ReturnMethod { return r.returnMethod }

// SlurmJob returns whether the request runs inside a SLURM allocation.
func (r *SubsetRequest) SlurmJob() bool { return r.slurmJob }

// Fingerprint returns a key that is the same for requests with equal fields.
func (r *SubsetRequest) Fingerprint() string {
	return hash.Hash(r.wire())
}

func (r *SubsetRequest) String() string {
	var constraint string
	switch {
	case r.spaceLims != nil:
		constraint = r.spaceLims.String()
	case r.shapefile != "":
		constraint = "shapefile " + r.shapefile
	default:
		constraint = "full extent"
	}
	return fmt.Sprintf("%s %v %s to %s, %s, %s", r.dataset, r.variables,
		r.timeLims.Start.Format(time.RFC3339), r.timeLims.End.Format(time.RFC3339),
		constraint, r.returnMethod)
}

var timeLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{layout: time.RFC3339Nano},
	{layout: "2006-01-02T15:04:05"},
	{layout: "2006-01-02 15:04:05"},
	{layout: "2006-01-02T15:04"},
	{layout: "2006-01-02 15:04"},
	{layout: "2006-01-02", dateOnly: true},
	{layout: "20060102", dateOnly: true},
}

// ParseTimeLimits parses the start and end of a time range. Times without
// an offset are taken to be UTC. An end given as a date only covers the
// whole of that day.
func ParseTimeLimits(start, end string) (TimeLimits, error) {
	s, _, err := parseTime(start)
	if err != nil {
		return TimeLimits{}, &ConfigurationError{Field: "time_lims.start", Value: start, Err: err}
	}
	e, dateOnly, err := parseTime(end)
	if err != nil {
		return TimeLimits{}, &ConfigurationError{Field: "time_lims.end", Value: end, Err: err}
	}
	if dateOnly {
		e = e.Add(24*time.Hour - time.Nanosecond)
	}
	return TimeLimits{Start: s, End: e}, nil
}

func parseTime(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("empty timestamp")
	}
	for _, l := range timeLayouts {
		if t, err := time.ParseInLocation(l.layout, s, time.UTC); err == nil {
			return t.UTC(), l.dateOnly, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp format %q", s)
}

// formatTime formats t so that parseTime returns the same instant.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
