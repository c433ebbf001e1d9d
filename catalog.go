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
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// File formats understood by Open.
const (
	FormatNetCDF3 = "netcdf3"
	FormatNetCDF4 = "netcdf4"
	FormatHDF5    = "hdf5"
)

// DefaultCRS is the coordinate reference system assumed for datasets that
// do not specify one.
const DefaultCRS = "+proj=longlat +datum=WGS84"

// DatasetConfig describes where a dataset is stored and how to read it.
type DatasetConfig struct {
	Description string `toml:"description"`

	// Format is one of "netcdf3", "netcdf4", or "hdf5". If it is empty
	// the format is guessed from the file extension.
	Format string `toml:"format"`

	// Path is the location of the dataset files. It may contain
	// environment variables and glob patterns; files matching a pattern
	// are concatenated along the time dimension in lexical order.
	Path string `toml:"path"`

	// CRS is the coordinate reference system of the dataset grid in
	// PROJ4 or WKT format.
	CRS string `toml:"crs"`

	// TimeVar, LatVar, and LonVar are the names of the coordinate variables.
	TimeVar string `toml:"time_var"`
	LatVar  string `toml:"lat_var"`
	LonVar  string `toml:"lon_var"`

	// TimeUnits overrides the units attribute of the time variable,
	// e.g., "hours since 1900-01-01 00:00:00".
	TimeUnits string `toml:"time_units"`

	// Dimensions lists the dimension names of data variables in storage
	// order. It is only used for HDF5 files, which do not name dimensions.
	Dimensions []string `toml:"dimensions"`
}

func (dc DatasetConfig) withDefaults() DatasetConfig {
	if dc.CRS == "" {
		dc.CRS = DefaultCRS
	}
	if dc.TimeVar == "" {
		dc.TimeVar = "time"
	}
	if dc.LatVar == "" {
		dc.LatVar = "latitude"
	}
	if dc.LonVar == "" {
		dc.LonVar = "longitude"
	}
	if dc.Format == "" {
		switch strings.ToLower(filepath.Ext(dc.Path)) {
		case ".h5", ".hdf5", ".he5":
			dc.Format = FormatHDF5
		case ".nc4":
			dc.Format = FormatNetCDF4
		default:
			dc.Format = FormatNetCDF3
		}
	}
	dc.Format = strings.ToLower(dc.Format)
	if len(dc.Dimensions) == 0 {
		dc.Dimensions = []string{dc.TimeVar, dc.LatVar, dc.LonVar}
	}
	return dc
}

// files returns the files that make up the dataset, in time order.
func (dc DatasetConfig) files() ([]string, error) {
	path := os.ExpandEnv(dc.Path)
	if path == "" {
		return nil, fmt.Errorf("no path configured")
	}
	files, err := filepath.Glob(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %s", path)
	}
	sort.Strings(files)
	return files, nil
}

// Catalog holds the datasets available for subsetting, keyed by
// identifier.
type Catalog struct {
	Datasets map[string]DatasetConfig `toml:"dataset"`
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{Datasets: make(map[string]DatasetConfig)}
}

// LoadCatalog reads a catalog in TOML format, e.g.:
//
//	[dataset.era5]
//	format = "netcdf3"
//	path = "${GWF_DATA}/era5/era5_*.nc"
func LoadCatalog(r io.Reader) (*Catalog, error) {
	c := NewCatalog()
	md, err := toml.DecodeReader(r, c)
	if err != nil {
		return nil, fmt.Errorf("gwfdata: reading dataset catalog: %v", err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		return nil, fmt.Errorf("gwfdata: reading dataset catalog: unknown keys %v", u)
	}
	for id, dc := range c.Datasets {
		if dc.Path == "" {
			return nil, fmt.Errorf("gwfdata: reading dataset catalog: dataset %q has no path", id)
		}
	}
	return c, nil
}

// LoadCatalogFile reads a TOML catalog from the named file. Environment
// variables in filename are expanded.
func LoadCatalogFile(filename string) (*Catalog, error) {
	f, err := os.Open(os.ExpandEnv(filename))
	if err != nil {
		return nil, fmt.Errorf("gwfdata: opening dataset catalog: %v", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Add adds or replaces a dataset.
func (c *Catalog) Add(id string, dc DatasetConfig) {
	if c.Datasets == nil {
		c.Datasets = make(map[string]DatasetConfig)
	}
	c.Datasets[id] = dc
}

// Lookup returns the configuration of dataset id with defaults filled in.
func (c *Catalog) Lookup(id string) (DatasetConfig, error) {
	dc, ok := c.Datasets[id]
	if !ok {
		return DatasetConfig{}, &DatasetNotFoundError{Dataset: id}
	}
	return dc.withDefaults(), nil
}

// IDs returns the dataset identifiers in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Datasets))
	for id := range c.Datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
