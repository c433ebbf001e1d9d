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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// requestConfig is the serialized form of a SubsetRequest shared by the
// JSON, YAML and dictionary adapters.
type requestConfig struct {
	Dataset       string         `json:"dataset" yaml:"dataset"`
	Variables     []string       `json:"variables" yaml:"variables"`
	TimeLims      timeLimsConfig `json:"time_lims" yaml:"time_lims"`
	SpaceLims     []float64      `json:"space_lims,omitempty" yaml:"space_lims,omitempty"`
	ESRIShapefile string         `json:"esri_shapefile,omitempty" yaml:"esri_shapefile,omitempty"`
	ReturnMethod  string         `json:"return_method" yaml:"return_method"`
	SlurmJob      bool           `json:"slurm_job" yaml:"slurm_job"`
}

// timeLimsConfig may be given either as {"start": ..., "end": ...} or as
// a two-element list.
type timeLimsConfig struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

func (t *timeLimsConfig) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		return t.fromList(list)
	}
	type plain timeLimsConfig
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	return d.Decode((*plain)(t))
}

func (t *timeLimsConfig) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.SequenceNode {
		var list []string
		if err := n.Decode(&list); err != nil {
			return err
		}
		return t.fromList(list)
	}
	type plain timeLimsConfig
	return n.Decode((*plain)(t))
}

func (t *timeLimsConfig) fromList(list []string) error {
	if len(list) != 2 {
		return fmt.Errorf("time_lims must have exactly 2 elements; got %d", len(list))
	}
	t.Start, t.End = list[0], list[1]
	return nil
}

// request validates c and converts it to a SubsetRequest.
func (c *requestConfig) request() (*SubsetRequest, error) {
	tl, err := ParseTimeLimits(c.TimeLims.Start, c.TimeLims.End)
	if err != nil {
		return nil, err
	}
	var opts []RequestOption
	if c.SpaceLims != nil {
		if len(c.SpaceLims) != 4 {
			return nil, &ConfigurationError{Field: "space_lims", Value: c.SpaceLims,
				Err: fmt.Errorf("must have 4 elements (min_lon, min_lat, max_lon, max_lat)")}
		}
		opts = append(opts, WithSpaceLims(BoundingBox{
			MinLon: c.SpaceLims[0], MinLat: c.SpaceLims[1],
			MaxLon: c.SpaceLims[2], MaxLat: c.SpaceLims[3],
		}))
	}
	if c.ESRIShapefile != "" {
		opts = append(opts, WithShapefile(c.ESRIShapefile))
	}
	opts = append(opts, WithSlurmJob(c.SlurmJob))
	return NewSubsetRequest(c.Dataset, c.Variables, tl,
		ReturnMethod(strings.ToLower(strings.TrimSpace(c.ReturnMethod))), opts...)
}

func (r *SubsetRequest) wire() requestConfig {
	c := requestConfig{
		Dataset:       r.dataset,
		Variables:     append([]string(nil), r.variables...),
		TimeLims:      timeLimsConfig{Start: formatTime(r.timeLims.Start), End: formatTime(r.timeLims.End)},
		ESRIShapefile: r.shapefile,
		ReturnMethod:  string(r.returnMethod),
		SlurmJob:      r.slurmJob,
	}
	if r.spaceLims != nil {
		c.SpaceLims = []float64{r.spaceLims.MinLon, r.spaceLims.MinLat, r.spaceLims.MaxLon, r.spaceLims.MaxLat}
	}
	return c
}

// FromJSON creates a SubsetRequest from a JSON document.
func FromJSON(b []byte) (*SubsetRequest, error) {
	var c requestConfig
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	if err := d.Decode(&c); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("parsing JSON request: %v", err)}
	}
	if _, err := d.Token(); err != io.EOF {
		return nil, &ConfigurationError{Err: fmt.Errorf("parsing JSON request: unexpected data after request")}
	}
	return c.request()
}

// FromYAML creates a SubsetRequest from a YAML document.
func FromYAML(b []byte) (*SubsetRequest, error) {
	var c requestConfig
	d := yaml.NewDecoder(bytes.NewReader(b))
	d.KnownFields(true)
	if err := d.Decode(&c); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("parsing YAML request: %v", err)}
	}
	return c.request()
}

// requestHCL is the HCL form of a request. time_lims is a block:
//
//	dataset   = "era5"
//	variables = ["t2m"]
//	time_lims {
//	  start = "2020-01-01"
//	  end   = "2020-01-02"
//	}
//	return_method = "local-file"
type requestHCL struct {
	Dataset       string      `hcl:"dataset"`
	Variables     []string    `hcl:"variables"`
	TimeLims      timeLimsHCL `hcl:"time_lims,block"`
	SpaceLims     []float64   `hcl:"space_lims,optional"`
	ESRIShapefile string      `hcl:"esri_shapefile,optional"`
	ReturnMethod  string      `hcl:"return_method"`
	SlurmJob      bool        `hcl:"slurm_job,optional"`
}

type timeLimsHCL struct {
	Start string `hcl:"start"`
	End   string `hcl:"end"`
}

// FromHCL creates a SubsetRequest from an HCL document. filename is used
// in error messages only.
func FromHCL(b []byte, filename string) (*SubsetRequest, error) {
	p := hclparse.NewParser()
	f, diags := p.ParseHCL(b, filename)
	if diags.HasErrors() {
		return nil, &ConfigurationError{Err: fmt.Errorf("parsing HCL request: %w", diags)}
	}
	var h requestHCL
	if diags = gohcl.DecodeBody(f.Body, nil, &h); diags.HasErrors() {
		return nil, &ConfigurationError{Err: fmt.Errorf("decoding HCL request: %w", diags)}
	}
	c := requestConfig{
		Dataset:       h.Dataset,
		Variables:     h.Variables,
		TimeLims:      timeLimsConfig{Start: h.TimeLims.Start, End: h.TimeLims.End},
		SpaceLims:     h.SpaceLims,
		ESRIShapefile: h.ESRIShapefile,
		ReturnMethod:  h.ReturnMethod,
		SlurmJob:      h.SlurmJob,
	}
	return c.request()
}

// FromDict creates a SubsetRequest from a map such as one decoded from a
// generic configuration source.
func FromDict(m map[string]interface{}) (*SubsetRequest, error) {
	var c requestConfig
	for k, v := range m {
		var err error
		switch k {
		case "dataset":
			c.Dataset, err = cast.ToStringE(v)
		case "variables":
			c.Variables, err = toStringSlice(v)
		case "time_lims":
			c.TimeLims, err = toTimeLims(v)
		case "space_lims":
			if v != nil {
				c.SpaceLims, err = toFloat64Slice(v)
			}
		case "esri_shapefile":
			if v != nil {
				c.ESRIShapefile, err = cast.ToStringE(v)
			}
		case "return_method":
			c.ReturnMethod, err = cast.ToStringE(v)
		case "slurm_job":
			c.SlurmJob, err = cast.ToBoolE(v)
		default:
			err = fmt.Errorf("unknown field")
		}
		if err != nil {
			return nil, &ConfigurationError{Field: k, Value: v, Err: err}
		}
	}
	return c.request()
}

func toStringSlice(v interface{}) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...), nil
	case []interface{}:
		out := make([]string, len(s))
		for i, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not a string", i, e)
			}
			out[i] = str
		}
		return out, nil
	}
	return nil, fmt.Errorf("%T is not a list of strings", v)
}

func toFloat64Slice(v interface{}) ([]float64, error) {
	switch s := v.(type) {
	case []float64:
		return append([]float64(nil), s...), nil
	case []interface{}:
		out := make([]float64, len(s))
		for i, e := range s {
			f, err := cast.ToFloat64E(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %v", i, err)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("%T is not a list of numbers", v)
}

func toTimeLims(v interface{}) (timeLimsConfig, error) {
	var t timeLimsConfig
	switch s := v.(type) {
	case []string, []interface{}:
		list, err := toStringSlice(s)
		if err != nil {
			return t, err
		}
		return t, t.fromList(list)
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return t, err
	}
	for k, val := range m {
		str, err := cast.ToStringE(val)
		if err != nil {
			return t, fmt.Errorf("%s: %v", k, err)
		}
		switch k {
		case "start":
			t.Start = str
		case "end":
			t.End = str
		default:
			return t, fmt.Errorf("unknown field %q", k)
		}
	}
	return t, nil
}

// FromFile reads a request from a file, choosing the format by file
// extension: .json, .yaml, .yml, or .hcl.
func FromFile(path string) (*SubsetRequest, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("reading request file: %v", err)}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FromJSON(b)
	case ".yaml", ".yml":
		return FromYAML(b)
	case ".hcl":
		return FromHCL(b, path)
	}
	return nil, &ConfigurationError{Err: fmt.Errorf("request file %s: unknown format %q", path, filepath.Ext(path))}
}

// MarshalJSON encodes r in the form read by FromJSON.
func (r *SubsetRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

// MarshalYAML encodes r in the form read by FromYAML.
func (r *SubsetRequest) MarshalYAML() (interface{}, error) {
	return r.wire(), nil
}

// ToDict returns r in the form read by FromDict.
func (r *SubsetRequest) ToDict() map[string]interface{} {
	c := r.wire()
	m := map[string]interface{}{
		"dataset":       c.Dataset,
		"variables":     c.Variables,
		"time_lims":     map[string]interface{}{"start": c.TimeLims.Start, "end": c.TimeLims.End},
		"return_method": c.ReturnMethod,
		"slurm_job":     c.SlurmJob,
	}
	if c.SpaceLims != nil {
		m["space_lims"] = c.SpaceLims
	}
	if c.ESRIShapefile != "" {
		m["esri_shapefile"] = c.ESRIShapefile
	}
	return m
}
