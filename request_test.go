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
	"errors"
	"testing"
	"time"
)

func TestNewSubsetRequest(t *testing.T) {
	tl := TimeLimits{
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	box := BoundingBox{MinLon: -110, MinLat: 49, MaxLon: -100, MaxLat: 54}

	r, err := NewSubsetRequest("era5", []string{"t2m", "u10"}, tl, LocalFile, WithSpaceLims(box))
	if err != nil {
		t.Fatal(err)
	}
	if r.Dataset() != "era5" {
		t.Errorf("dataset: %s", r.Dataset())
	}
	if v := r.Variables(); len(v) != 2 || v[0] != "t2m" || v[1] != "u10" {
		t.Errorf("variables: %v", v)
	}
	if b, ok := r.SpaceLims(); !ok || b != box {
		t.Errorf("space_lims: %v, %v", b, ok)
	}
	if r.Shapefile() != "" {
		t.Errorf("shapefile: %s", r.Shapefile())
	}

	// The returned variables are a copy.
	r.Variables()[0] = "x"
	if r.Variables()[0] != "t2m" {
		t.Error("request was modified through Variables")
	}

	tests := []struct {
		name      string
		dataset   string
		variables []string
		tl        TimeLimits
		method    ReturnMethod
		opts      []RequestOption
		field     string
	}{
		{name: "no dataset", variables: []string{"t2m"}, tl: tl, method: LocalFile, field: "dataset"},
		{name: "no variables", dataset: "era5", tl: tl, method: LocalFile, field: "variables"},
		{name: "duplicate variable", dataset: "era5", variables: []string{"t2m", "t2m"}, tl: tl, method: LocalFile, field: "variables"},
		{name: "empty variable", dataset: "era5", variables: []string{""}, tl: tl, method: LocalFile, field: "variables"},
		{name: "reversed time", dataset: "era5", variables: []string{"t2m"}, tl: TimeLimits{Start: tl.End, End: tl.Start}, method: LocalFile, field: "time_lims"},
		{name: "no time", dataset: "era5", variables: []string{"t2m"}, method: LocalFile, field: "time_lims"},
		{name: "both constraints", dataset: "era5", variables: []string{"t2m"}, tl: tl, method: LocalFile,
			opts: []RequestOption{WithSpaceLims(box), WithShapefile("basin.shp")}, field: "space_lims"},
		{name: "reversed box", dataset: "era5", variables: []string{"t2m"}, tl: tl, method: LocalFile,
			opts: []RequestOption{WithSpaceLims(BoundingBox{MinLon: -100, MinLat: 49, MaxLon: -110, MaxLat: 54})}, field: "space_lims"},
		{name: "latitude out of range", dataset: "era5", variables: []string{"t2m"}, tl: tl, method: LocalFile,
			opts: []RequestOption{WithSpaceLims(BoundingBox{MinLon: -100, MinLat: -95, MaxLon: -90, MaxLat: 54})}, field: "space_lims"},
		{name: "empty shapefile", dataset: "era5", variables: []string{"t2m"}, tl: tl, method: LocalFile,
			opts: []RequestOption{WithShapefile(" ")}, field: "esri_shapefile"},
		{name: "bad method", dataset: "era5", variables: []string{"t2m"}, tl: tl, method: "carrier-pigeon", field: "return_method"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewSubsetRequest(test.dataset, test.variables, test.tl, test.method, test.opts...)
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("want *ConfigurationError, have %v", err)
			}
			if ce.Field != test.field {
				t.Errorf("field: want %s, have %s", test.field, ce.Field)
			}
		})
	}
}

func TestNewSubsetRequest_badMethodUnwraps(t *testing.T) {
	tl := TimeLimits{Start: time.Unix(0, 0), End: time.Unix(3600, 0)}
	_, err := NewSubsetRequest("era5", []string{"t2m"}, tl, "ftp")
	var ue *UnsupportedReturnMethodError
	if !errors.As(err, &ue) {
		t.Fatalf("want *UnsupportedReturnMethodError, have %v", err)
	}
	if ue.Method != "ftp" {
		t.Errorf("method: %s", ue.Method)
	}
}

func TestParseReturnMethod(t *testing.T) {
	for s, want := range map[string]ReturnMethod{
		"local-file":      LocalFile,
		" Local-File ":    LocalFile,
		"remote-transfer": RemoteTransfer,
		"globus":          Globus,
	} {
		have, err := ParseReturnMethod(s)
		if err != nil {
			t.Errorf("%q: %v", s, err)
		}
		if have != want {
			t.Errorf("%q: want %s, have %s", s, want, have)
		}
	}
	if _, err := ParseReturnMethod("email"); err == nil {
		t.Error("want error for unknown method")
	}
	if LocalFile.Remote() || !Globus.Remote() || !RemoteTransfer.Remote() {
		t.Error("Remote is wrong")
	}
}

func TestParseTimeLimits(t *testing.T) {
	tests := []struct {
		start, end string
		want       TimeLimits
	}{
		{
			start: "2020-01-01", end: "2020-01-02",
			want: TimeLimits{
				Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2020, 1, 2, 23, 59, 59, 999999999, time.UTC),
			},
		},
		{
			start: "2020-01-01T06:00:00Z", end: "2020-01-01 18:00",
			want: TimeLimits{
				Start: time.Date(2020, 1, 1, 6, 0, 0, 0, time.UTC),
				End:   time.Date(2020, 1, 1, 18, 0, 0, 0, time.UTC),
			},
		},
		{
			start: "2020-01-01T00:00:00-06:00", end: "20200102",
			want: TimeLimits{
				Start: time.Date(2020, 1, 1, 6, 0, 0, 0, time.UTC),
				End:   time.Date(2020, 1, 2, 23, 59, 59, 999999999, time.UTC),
			},
		},
	}
	for _, test := range tests {
		have, err := ParseTimeLimits(test.start, test.end)
		if err != nil {
			t.Errorf("%s/%s: %v", test.start, test.end, err)
			continue
		}
		if !have.Start.Equal(test.want.Start) || !have.End.Equal(test.want.End) {
			t.Errorf("%s/%s: want %v, have %v", test.start, test.end, test.want, have)
		}
	}

	_, err := ParseTimeLimits("yesterday", "2020-01-01")
	var ce *ConfigurationError
	if !errors.As(err, &ce) || ce.Field != "time_lims.start" {
		t.Errorf("want configuration error for start, have %v", err)
	}
}

func TestTimeLimitsContains(t *testing.T) {
	tl, err := ParseTimeLimits("2020-01-01", "2020-01-02")
	if err != nil {
		t.Fatal(err)
	}
	for tt, want := range map[time.Time]bool{
		time.Date(2019, 12, 31, 23, 0, 0, 0, time.UTC): false,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC):    true,
		time.Date(2020, 1, 2, 23, 0, 0, 0, time.UTC):   true,
		time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC):    false,
	} {
		if have := tl.Contains(tt); have != want {
			t.Errorf("%v: want %v, have %v", tt, want, have)
		}
	}
}
