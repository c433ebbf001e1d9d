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

// Package gwfutil contains the command-line interface for gwfdata.
package gwfutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gwf/gwfdata"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to gwfdata.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "env_files",
			usage: `
              env_files lists files of KEY=value pairs to load into the
              environment before configuration is read. Missing files are
              ignored.`,
			defaultVal: []string{".env"},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log_level",
			usage: `
              log_level sets the logging verbosity: one of debug, info,
              warn, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "catalog",
			usage: `
              catalog is the path to the TOML file describing the available
              datasets. It can include environment variables.`,
			shorthand:  "c",
			defaultVal: "catalog.toml",
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags(), datasetsCmd.Flags(), inspectCmd.Flags()},
		},
		{
			name: "request",
			usage: `
              request is the path to a subset request file in JSON, YAML, or
              HCL format.`,
			shorthand:  "r",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output is where the subset should be delivered. For the
              local-file return method it is a file path or an existing
              directory; for remote-transfer it is a gs://, s3://, file://,
              or minio:// address. It can include environment variables.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags()},
		},
		{
			name: "outdir",
			usage: `
              outdir is the directory or remote address prefix that batch
              outputs are written to, one file per request.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of requests to process concurrently.
              Zero selects the number of allocated CPUs.`,
			shorthand:  "w",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{batchCmd.Flags()},
		},
		{
			name: "retries",
			usage: `
              retries is the maximum number of times a failed remote transfer
              is attempted again. Other failures are not retried.`,
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "staging_dir",
			usage: `
              staging_dir is where outputs are staged before remote
              transfer. The default is the system temporary directory, or
              $SLURM_TMPDIR for Slurm jobs.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "progress_every",
			usage: `
              progress_every is the number of chunks (one time step of one
              variable) between progress messages. Zero disables progress
              messages.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "minio.endpoint",
			usage: `
              minio.endpoint is the host:port of the default S3-compatible
              object store for minio:// destinations.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "minio.access_key",
			usage: `
              minio.access_key is the object store access key. It defaults
              to $MINIO_ACCESS_KEY.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "minio.secret_key",
			usage: `
              minio.secret_key is the object store secret key. It defaults
              to $MINIO_SECRET_KEY.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "minio.region",
			usage: `
              minio.region is the object store region.`,
			defaultVal: "us-east-1",
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "minio.use_ssl",
			usage: `
              minio.use_ssl specifies whether to connect to the object
              store over TLS.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "minio.create_buckets",
			usage: `
              minio.create_buckets specifies whether to create missing
              destination buckets.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{subsetCmd.Flags(), batchCmd.Flags()},
		},
		{
			name: "dataset",
			usage: `
              dataset is the identifier of the catalog dataset to inspect.`,
			shorthand:  "d",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GWFDATA")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(subsetCmd)
	Root.AddCommand(batchCmd)
	Root.AddCommand(datasetsCmd)
	Root.AddCommand(inspectCmd)
}

// setConfig loads environment files and then finds and reads in the
// configuration file, if there is one.
func setConfig() error {
	if err := loadEnvFiles(Cfg.GetStringSlice("env_files")); err != nil {
		return err
	}
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gwfdata: problem reading configuration file: %v", err)
		}
	}
	return setLogLevel(Cfg.GetString("log_level"))
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gwfdata",
	Short: "Subset gridded meteorological forcing data.",
	Long: `gwfdata extracts subsets of gridded meteorological forcing datasets
(e.g., ERA5) by variable, time range, and bounding box or watershed shapefile,
and delivers them as netCDF files locally or to remote storage.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GWFDATA_var' where 'var' is the
name of the variable to be set, with '.' replaced by '_'.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of gwfdata.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("gwfdata v%s\n", gwfdata.Version)
	},
	DisableAutoGenTag: true,
}

// subsetCmd carries out a single subset request.
var subsetCmd = &cobra.Command{
	Use:   "subset",
	Short: "Subset a dataset.",
	Long: `subset carries out the subset request in the file given by --request
and delivers the result to --output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reqFile := Cfg.GetString("request")
		if reqFile == "" && len(args) == 1 {
			reqFile = args[0]
		}
		if reqFile == "" {
			return fmt.Errorf("gwfdata: you need to specify a request file (for example: --request=request.yaml)")
		}
		req, err := gwfdata.FromFile(os.ExpandEnv(reqFile))
		if err != nil {
			return err
		}
		e, err := NewEngine(Cfg)
		if err != nil {
			return err
		}
		r, err := e.Run(context.Background(), req, os.ExpandEnv(Cfg.GetString("output")))
		if err != nil {
			return err
		}
		printReceipts(cmd, []gwfdata.JobResult{{Receipt: r}})
		return nil
	},
	DisableAutoGenTag: true,
}

// batchCmd carries out several subset requests concurrently.
var batchCmd = &cobra.Command{
	Use:   "batch request1.json [request2.yaml ...]",
	Short: "Subset datasets for several requests.",
	Long: `batch carries out each of the given request files on a pool of
workers, writing one output per request to --outdir. A failed request does
not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := NewEngine(Cfg)
		if err != nil {
			return err
		}
		jobs, err := batchJobs(args, os.ExpandEnv(Cfg.GetString("outdir")))
		if err != nil {
			return err
		}
		results := e.RunAll(context.Background(), jobs, Cfg.GetInt("workers"))
		printReceipts(cmd, results)
		var failed int
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("gwfdata: %d of %d requests failed", failed, len(results))
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the available datasets.",
	Long:  `datasets lists the datasets described in the catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCatalog(Cfg)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFORMAT\tDESCRIPTION")
		for _, id := range c.IDs() {
			dc, err := c.Lookup(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", id, dc.Format, dc.Description)
		}
		return w.Flush()
	},
	DisableAutoGenTag: true,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe a dataset.",
	Long: `inspect prints the variables, dimensions, grid, and time coverage of
the dataset given by --dataset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := Cfg.GetString("dataset")
		if id == "" && len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return fmt.Errorf("gwfdata: you need to specify a dataset (for example: --dataset=era5)")
		}
		c, err := loadCatalog(Cfg)
		if err != nil {
			return err
		}
		return inspect(cmd.OutOrStdout(), c, id)
	},
	DisableAutoGenTag: true,
}
