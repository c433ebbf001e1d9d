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
	"encoding/json"
	"errors"
	"io/ioutil"
	"path/filepath"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

const era5JSON = `{
  "dataset": "era5",
  "variables": ["t2m"],
  "time_lims": {"start": "2020-01-01", "end": "2020-01-02"},
  "space_lims": [-110, 49, -100, 54],
  "return_method": "local-file",
  "slurm_job": false
}`

const era5YAML = `dataset: era5
variables: [t2m]
time_lims:
  start: "2020-01-01"
  end: "2020-01-02"
space_lims: [-110, 49, -100, 54]
return_method: local-file
slurm_job: false
`

const era5HCL = `
dataset   = "era5"
variables = ["t2m"]
time_lims {
  start = "2020-01-01"
  end   = "2020-01-02"
}
space_lims    = [-110, 49, -100, 54]
return_method = "local-file"
`

func era5Dict() map[string]interface{} {
	return map[string]interface{}{
		"dataset":       "era5",
		"variables":     []interface{}{"t2m"},
		"time_lims":     []interface{}{"2020-01-01", "2020-01-02"},
		"space_lims":    []interface{}{-110, 49.0, "-100", 54},
		"return_method": "LOCAL-FILE",
		"slurm_job":     "false",
	}
}

func checkERA5Request(t *testing.T, r *SubsetRequest) {
	t.Helper()
	want, err := ParseTimeLimits("2020-01-01", "2020-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if r.Dataset() != "era5" || len(r.Variables()) != 1 || r.Variables()[0] != "t2m" {
		t.Errorf("dataset and variables: %v", r)
	}
	if tl := r.TimeLims(); !tl.Start.Equal(want.Start) || !tl.End.Equal(want.End) {
		t.Errorf("time_lims: want %v, have %v", want, tl)
	}
	if b, ok := r.SpaceLims(); !ok || b != (BoundingBox{MinLon: -110, MinLat: 49, MaxLon: -100, MaxLat: 54}) {
		t.Errorf("space_lims: %v", b)
	}
	if r.ReturnMethod() != LocalFile || r.SlurmJob() {
		t.Errorf("return_method and slurm_job: %v", r)
	}
}

func TestFromFormats(t *testing.T) {
	fromJSON, err := FromJSON([]byte(era5JSON))
	if err != nil {
		t.Fatal(err)
	}
	checkERA5Request(t, fromJSON)

	fromYAML, err := FromYAML([]byte(era5YAML))
	if err != nil {
		t.Fatal(err)
	}
	checkERA5Request(t, fromYAML)

	fromHCL, err := FromHCL([]byte(era5HCL), "request.hcl")
	if err != nil {
		t.Fatal(err)
	}
	checkERA5Request(t, fromHCL)

	fromDict, err := FromDict(era5Dict())
	if err != nil {
		t.Fatal(err)
	}
	checkERA5Request(t, fromDict)

	want := fromJSON.Fingerprint()
	for name, r := range map[string]*SubsetRequest{"yaml": fromYAML, "hcl": fromHCL, "dict": fromDict} {
		if have := r.Fingerprint(); have != want {
			t.Errorf("%s: fingerprint %s differs from JSON %s", name, have, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	r, err := FromJSON([]byte(era5JSON))
	if err != nil {
		t.Fatal(err)
	}
	want := r.Fingerprint()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := FromJSON(b)
	if err != nil {
		t.Fatalf("%v: %s", err, b)
	}
	if r2.Fingerprint() != want {
		t.Errorf("JSON round trip changed request: %s", b)
	}

	b, err = yaml.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	r3, err := FromYAML(b)
	if err != nil {
		t.Fatalf("%v: %s", err, b)
	}
	if r3.Fingerprint() != want {
		t.Errorf("YAML round trip changed request: %s", b)
	}

	r4, err := FromDict(r.ToDict())
	if err != nil {
		t.Fatal(err)
	}
	if r4.Fingerprint() != want {
		t.Errorf("dictionary round trip changed request: %v", r.ToDict())
	}

	// Each round-tripped request produces the same subset.
	c := era5Catalog(t)
	wantResult := subsetFor(t, c, r)
	for name, req := range map[string]*SubsetRequest{"JSON": r2, "YAML": r3, "dictionary": r4} {
		have := subsetFor(t, c, req)
		if have.Fingerprint() != wantResult.Fingerprint() {
			t.Errorf("%s: result fingerprint differs", name)
		}
		if !reflect.DeepEqual(have.Time, wantResult.Time) ||
			!reflect.DeepEqual(have.LatCoord, wantResult.LatCoord) ||
			!reflect.DeepEqual(have.LonCoord, wantResult.LonCoord) {
			t.Errorf("%s: result coordinates differ", name)
		}
		if len(have.Variables) != 1 || !reflect.DeepEqual(have.Variables[0].Data, wantResult.Variables[0].Data) {
			t.Errorf("%s: result data differ", name)
		}
	}
}

// subsetFor selects the subset described by r from c.
func subsetFor(t *testing.T, c *Catalog, r *SubsetRequest) *SubsetResult {
	t.Helper()
	ctx := context.Background()
	h, err := Open(ctx, c, r.Dataset(), r.Variables())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	var con Constraint
	if b, ok := r.SpaceLims(); ok {
		con.Box = &b
	}
	res, err := Select(ctx, h, r.TimeLims(), con, nil)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestFromJSON_timeList(t *testing.T) {
	r, err := FromJSON([]byte(`{"dataset": "era5", "variables": ["t2m", "u10"],
		"time_lims": ["2020-01-01T00:00:00", "2020-01-01T12:00:00"],
		"esri_shapefile": "basin.shp", "return_method": "globus", "slurm_job": true}`))
	if err != nil {
		t.Fatal(err)
	}
	if r.Shapefile() != "basin.shp" || r.ReturnMethod() != Globus || !r.SlurmJob() {
		t.Errorf("request: %v", r)
	}
	if _, ok := r.SpaceLims(); ok {
		t.Error("space_lims should not be set")
	}
}

func TestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		f    func() (*SubsetRequest, error)
	}{
		{"json both constraints", func() (*SubsetRequest, error) {
			return FromJSON([]byte(`{"dataset": "era5", "variables": ["t2m"],
				"time_lims": ["2020-01-01", "2020-01-02"], "space_lims": [-110, 49, -100, 54],
				"esri_shapefile": "basin.shp", "return_method": "local-file"}`))
		}},
		{"json unknown field", func() (*SubsetRequest, error) {
			return FromJSON([]byte(`{"dataset": "era5", "variables": ["t2m"], "colour": "red",
				"time_lims": ["2020-01-01", "2020-01-02"], "return_method": "local-file"}`))
		}},
		{"json trailing data", func() (*SubsetRequest, error) {
			return FromJSON([]byte(`{"dataset": "era5", "variables": ["t2m"],
				"time_lims": ["2020-01-01", "2020-01-02"], "return_method": "local-file"} {}`))
		}},
		{"json three space_lims", func() (*SubsetRequest, error) {
			return FromJSON([]byte(`{"dataset": "era5", "variables": ["t2m"],
				"time_lims": ["2020-01-01", "2020-01-02"], "space_lims": [-110, 49, -100],
				"return_method": "local-file"}`))
		}},
		{"json three time_lims", func() (*SubsetRequest, error) {
			return FromJSON([]byte(`{"dataset": "era5", "variables": ["t2m"],
				"time_lims": ["2020-01-01", "2020-01-02", "2020-01-03"], "return_method": "local-file"}`))
		}},
		{"yaml both constraints", func() (*SubsetRequest, error) {
			return FromYAML([]byte(era5YAML + "esri_shapefile: basin.shp\n"))
		}},
		{"yaml unknown field", func() (*SubsetRequest, error) {
			return FromYAML([]byte(era5YAML + "colour: red\n"))
		}},
		{"yaml bad method", func() (*SubsetRequest, error) {
			return FromYAML([]byte(`dataset: era5
variables: [t2m]
time_lims: ["2020-01-01", "2020-01-02"]
return_method: fax
`))
		}},
		{"hcl missing dataset", func() (*SubsetRequest, error) {
			return FromHCL([]byte(`variables = ["t2m"]
return_method = "local-file"
time_lims {
  start = "2020-01-01"
  end = "2020-01-02"
}`), "request.hcl")
		}},
		{"dict unknown field", func() (*SubsetRequest, error) {
			d := era5Dict()
			d["colour"] = "red"
			return FromDict(d)
		}},
		{"dict bad variables", func() (*SubsetRequest, error) {
			d := era5Dict()
			d["variables"] = []interface{}{"t2m", 3}
			return FromDict(d)
		}},
		{"dict both constraints", func() (*SubsetRequest, error) {
			d := era5Dict()
			d["esri_shapefile"] = "basin.shp"
			return FromDict(d)
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r, err := test.f()
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("want *ConfigurationError, have %v (%v)", err, r)
			}
		})
	}
}

func TestFromFile(t *testing.T) {
	dir := testDir(t)
	for name, contents := range map[string]string{
		"request.json": era5JSON,
		"request.yaml": era5YAML,
		"request.yml":  era5YAML,
		"request.hcl":  era5HCL,
	} {
		path := filepath.Join(dir, name)
		if err := ioutil.WriteFile(path, []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
		r, err := FromFile(path)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		checkERA5Request(t, r)
	}

	path := filepath.Join(dir, "request.txt")
	if err := ioutil.WriteFile(path, []byte(era5JSON), 0644); err != nil {
		t.Fatal(err)
	}
	var ce *ConfigurationError
	if _, err := FromFile(path); !errors.As(err, &ce) {
		t.Errorf("unknown extension: want *ConfigurationError, have %v", err)
	}
	if _, err := FromFile(filepath.Join(dir, "missing.json")); !errors.As(err, &ce) {
		t.Errorf("missing file: want *ConfigurationError, have %v", err)
	}
}
