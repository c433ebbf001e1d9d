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

package gwfutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gwf/gwfdata"
	"github.com/gwf/gwfdata/cloud"
	"github.com/joho/godotenv"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// loadEnvFiles loads the given files into the environment, without
// overriding variables that are already set. Missing files are skipped.
func loadEnvFiles(files []string) error {
	for _, f := range files {
		f = os.ExpandEnv(f)
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("gwfdata: loading environment file %s: %v", f, err)
		}
	}
	return nil
}

func setLogLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("gwfdata: invalid log_level: %v", err)
	}
	logrus.SetLevel(l)
	return nil
}

func loadCatalog(cfg *viper.Viper) (*gwfdata.Catalog, error) {
	f := os.ExpandEnv(cfg.GetString("catalog"))
	if f == "" {
		return nil, fmt.Errorf(`gwfdata: you need to specify a catalog file (for example: --catalog="catalog.toml")`)
	}
	return gwfdata.LoadCatalogFile(f)
}

// getString returns the configuration value for key, or the value of
// the environment variable env if the configuration value is empty.
func getString(cfg *viper.Viper, key, env string) string {
	if s := cast.ToString(cfg.Get(key)); s != "" {
		return s
	}
	return os.Getenv(env)
}

// minioConfig returns the object store configuration, or nil if no
// credentials are configured.
func minioConfig(cfg *viper.Viper) (*cloud.MinIOConfig, error) {
	c := cloud.MinIOConfig{
		Endpoint:      getString(cfg, "minio.endpoint", "MINIO_ENDPOINT"),
		AccessKey:     getString(cfg, "minio.access_key", "MINIO_ACCESS_KEY"),
		SecretKey:     getString(cfg, "minio.secret_key", "MINIO_SECRET_KEY"),
		Region:        getString(cfg, "minio.region", "MINIO_REGION"),
		UseSSL:        cast.ToBool(cfg.Get("minio.use_ssl")),
		CreateBuckets: cast.ToBool(cfg.Get("minio.create_buckets")),
	}
	if s := os.Getenv("MINIO_USE_SSL"); s != "" && !cfg.IsSet("minio.use_ssl") {
		useSSL, err := cast.ToBoolE(s)
		if err != nil {
			return nil, fmt.Errorf("gwfdata: invalid MINIO_USE_SSL: %v", err)
		}
		c.UseSSL = useSSL
	}
	if c.AccessKey == "" && c.SecretKey == "" {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("gwfdata: %v", err)
	}
	return &c, nil
}

// NewEngine creates a subset engine from the information in cfg. Remote
// transfers are retried up to the configured number of times.
func NewEngine(cfg *viper.Viper) (*gwfdata.Engine, error) {
	c, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	mc, err := minioConfig(cfg)
	if err != nil {
		return nil, err
	}
	var m *cloud.MinIOTransferer
	if mc != nil {
		if m, err = cloud.NewMinIOTransferer(*mc); err != nil {
			return nil, err
		}
	}
	log := logrus.StandardLogger()
	return &gwfdata.Engine{
		Catalog:       c,
		Transfer:      WithRetry(cloud.NewTransferers(m), cast.ToInt(cfg.Get("retries")), log),
		Fetch:         cloud.Download,
		StagingDir:    os.ExpandEnv(cast.ToString(cfg.Get("staging_dir"))),
		ProgressEvery: cast.ToInt(cfg.Get("progress_every")),
		Log:           log,
	}, nil
}

// batchJobs reads the given request files and assigns each an output
// location within outdir.
func batchJobs(files []string, outdir string) ([]gwfdata.Job, error) {
	jobs := make([]gwfdata.Job, len(files))
	seen := make(map[string]string)
	for i, f := range files {
		req, err := gwfdata.FromFile(os.ExpandEnv(f))
		if err != nil {
			return nil, fmt.Errorf("%s: %v", f, err)
		}
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)) + ".nc"
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("gwfdata: requests %s and %s would write to the same output %s", prev, f, name)
		}
		seen[name] = f
		jobs[i] = gwfdata.Job{Request: req, Destination: joinDestination(outdir, name)}
	}
	return jobs, nil
}

// joinDestination appends name to a local directory or remote address.
func joinDestination(dir, name string) string {
	if i := strings.Index(dir, "://"); i >= 0 {
		return dir[:i+3] + path.Join(dir[i+3:], name)
	}
	return filepath.Join(dir, name)
}

func printReceipts(cmd *cobra.Command, results []gwfdata.JobResult) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDESTINATION\tBYTES\tSHA256\tERROR")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "-\t-\t-\t-\t%v\n", r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t\n", r.Receipt.ID, r.Receipt.Destination, r.Receipt.Bytes, r.Receipt.SHA256)
	}
	w.Flush()
}

// inspect writes a description of dataset id to w.
func inspect(w io.Writer, c *gwfdata.Catalog, id string) error {
	ctx := context.Background()
	meta, err := gwfdata.Open(ctx, c, id, nil)
	if err != nil {
		return err
	}
	names := meta.GriddedVariables()
	meta.Close()
	h, err := gwfdata.Open(ctx, c, id, names)
	if err != nil {
		return err
	}
	defer h.Close()

	first, last := h.Coverage()
	fmt.Fprintf(w, "dataset:     %s\n", h.ID)
	if h.Config.Description != "" {
		fmt.Fprintf(w, "description: %s\n", h.Config.Description)
	}
	fmt.Fprintf(w, "format:      %s\n", h.Config.Format)
	fmt.Fprintf(w, "crs:         %s\n", h.Config.CRS)
	fmt.Fprintf(w, "time:        %s to %s (%d steps, %s)\n",
		first.Format(time.RFC3339), last.Format(time.RFC3339), len(h.Time), h.TimeUnits)
	fmt.Fprintf(w, "latitude:    %g to %g (%d)\n", h.Lat[0], h.Lat[len(h.Lat)-1], len(h.Lat))
	fmt.Fprintf(w, "longitude:   %g to %g (%d)\n", h.Lon[0], h.Lon[len(h.Lon)-1], len(h.Lon))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nVARIABLE\tDIMENSIONS\tUNITS\tLONG NAME")
	for _, v := range h.Variables {
		fmt.Fprintf(tw, "%s\t%v\t%v\t%v\n", v.Name, v.Dims, attr(v.Attributes, "units"), attr(v.Attributes, "long_name"))
	}
	return tw.Flush()
}

func attr(a map[string]interface{}, key string) string {
	v, ok := a[key]
	if !ok {
		return ""
	}
	return cast.ToString(v)
}
